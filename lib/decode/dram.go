package decode

import (
	"github.com/ValentinKolb/nvboot/lib/nvram"
)

// Well-known keys of a DRAM timing store.
const (
	KeyName             = "name"
	KeyVersion          = "version"
	KeyDDRCConfig       = "ddrc_cfg"
	KeyDDRPHYConfig     = "ddrphy_cfg"
	KeyFSPMessagePrefix = "fsp_msg"
	KeyDDRPHYTrainedCSR = "ddrphy_trained_csr"
	KeyDDRPHYPIE        = "ddrphy_pie"
	KeyFSPTable         = "fsp_table"

	// MaxFSPMessages is the number of fsp_msg_N keys probed.
	MaxFSPMessages = 4
	// FSPTableLen is the exact number of integers in fsp_table.
	FSPTableLen = 4
)

// DRAMTiming is the structured record handed to the DRAM initializer.
type DRAMTiming struct {
	Name             string              `json:"name" yaml:"name"`
	Version          string              `json:"version" yaml:"version"`
	DDRCConfig       []ConfigPair        `json:"ddrc_cfg" yaml:"ddrc_cfg"`
	DDRPHYConfig     []ConfigPair        `json:"ddrphy_cfg" yaml:"ddrphy_cfg"`
	FSPMessages      []SpeedPoint        `json:"fsp_msg" yaml:"fsp_msg"`
	DDRPHYTrainedCSR []ConfigPair        `json:"ddrphy_trained_csr" yaml:"ddrphy_trained_csr"`
	DDRPHYPIE        []ConfigPair        `json:"ddrphy_pie" yaml:"ddrphy_pie"`
	FSPTable         [FSPTableLen]uint32 `json:"fsp_table" yaml:"fsp_table"`
}

// LoadDRAMTiming decodes every well-known key. The first failing key aborts
// the decode; a partially filled record is never returned.
func LoadDRAMTiming(rng nvram.Range) (*DRAMTiming, error) {
	t := &DRAMTiming{}
	var err error

	if t.Name, err = String(rng, KeyName); err != nil {
		return nil, fail(KeyName, err)
	}
	if t.Version, err = String(rng, KeyVersion); err != nil {
		return nil, fail(KeyVersion, err)
	}
	log.Infof("dram_timing: %s [%s]", t.Name, t.Version)

	if t.DDRCConfig, err = ConfigPairs(rng, KeyDDRCConfig); err != nil {
		return nil, fail(KeyDDRCConfig, err)
	}
	if t.DDRPHYConfig, err = ConfigPairs(rng, KeyDDRPHYConfig); err != nil {
		return nil, fail(KeyDDRPHYConfig, err)
	}
	if t.FSPMessages, err = SpeedPoints(rng, KeyFSPMessagePrefix, MaxFSPMessages); err != nil {
		return nil, fail(KeyFSPMessagePrefix, err)
	}
	if t.DDRPHYTrainedCSR, err = ConfigPairs(rng, KeyDDRPHYTrainedCSR); err != nil {
		return nil, fail(KeyDDRPHYTrainedCSR, err)
	}
	if t.DDRPHYPIE, err = ConfigPairs(rng, KeyDDRPHYPIE); err != nil {
		return nil, fail(KeyDDRPHYPIE, err)
	}

	table, err := U32Array(rng, KeyFSPTable)
	if err != nil {
		return nil, fail(KeyFSPTable, err)
	}
	if len(table) != FSPTableLen {
		return nil, fail(KeyFSPTable, nvram.NewError(nvram.RetCInvalidLength, KeyFSPTable, "expected exactly 4 integers"))
	}
	copy(t.FSPTable[:], table)

	return t, nil
}

// Entries returns the records that encode t, in the canonical key order.
func (t *DRAMTiming) Entries() []nvram.Entry {
	entries := []nvram.Entry{
		nvram.NewEntry(KeyName, EncodeString(t.Name)),
		nvram.NewEntry(KeyVersion, EncodeString(t.Version)),
		nvram.NewEntry(KeyDDRCConfig, EncodeConfigPairs(t.DDRCConfig)),
		nvram.NewEntry(KeyDDRPHYConfig, EncodeConfigPairs(t.DDRPHYConfig)),
	}
	for i, sp := range t.FSPMessages {
		entries = append(entries, nvram.NewEntry(SpeedPointKey(KeyFSPMessagePrefix, i), EncodeSpeedPoint(sp)))
	}
	return append(entries,
		nvram.NewEntry(KeyDDRPHYTrainedCSR, EncodeConfigPairs(t.DDRPHYTrainedCSR)),
		nvram.NewEntry(KeyDDRPHYPIE, EncodeConfigPairs(t.DDRPHYPIE)),
		nvram.NewEntry(KeyFSPTable, EncodeU32Array(t.FSPTable[:])),
	)
}

func fail(key string, err error) error {
	log.Errorf("dram_timing: %q invalid: %s", key, nvram.Code(err))
	return err
}
