package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("decode")

const (
	// u32Size is the wire size of one integer.
	u32Size = 4
	// pairSize is the wire size of one (address, value) pair.
	pairSize = 8
	// speedPointHeaderSize covers the rate and firmware-type fields.
	speedPointHeaderSize = 8
)

// ConfigPair is a register address and the value to program into it.
type ConfigPair struct {
	Addr  uint32 `json:"addr" yaml:"addr"`
	Value uint32 `json:"value" yaml:"value"`
}

// SpeedPoint describes one DRAM frequency set point: the data rate, the
// training firmware type and the PHY configuration for that rate.
type SpeedPoint struct {
	Rate   uint32       `json:"rate" yaml:"rate"`
	FWType uint32       `json:"fw_type" yaml:"fw_type"`
	Config []ConfigPair `json:"config" yaml:"config"`
}

// --------------------------------------------------------------------------
// Typed Accessors
// --------------------------------------------------------------------------

func find(rng nvram.Range, key string) (nvram.Entry, error) {
	e, ok := rng.Find(key)
	if !ok {
		return nvram.Entry{}, nvram.NewError(nvram.RetCNotFound, key, "")
	}
	return e, nil
}

// String decodes a NUL-terminated string value. The returned string is an
// owned copy without its terminator, unlike the wire value which carries it.
func String(rng nvram.Range, key string) (string, error) {
	e, err := find(rng, key)
	if err != nil {
		return "", err
	}
	if len(e.Value) < 1 {
		return "", nvram.NewError(nvram.RetCTruncated, key, "empty value")
	}
	if e.Value[len(e.Value)-1] != 0 {
		return "", nvram.NewError(nvram.RetCNotNullTerminated, key, "")
	}
	return string(e.Value[:len(e.Value)-1]), nil
}

// U32Array decodes a value made of 4-byte little-endian integers.
func U32Array(rng nvram.Range, key string) ([]uint32, error) {
	e, err := find(rng, key)
	if err != nil {
		return nil, err
	}
	if err := checkUnit(key, len(e.Value), u32Size); err != nil {
		return nil, err
	}
	return u32s(e.Value), nil
}

// ConfigPairs decodes a value made of 8-byte (address, value) records.
func ConfigPairs(rng nvram.Range, key string) ([]ConfigPair, error) {
	e, err := find(rng, key)
	if err != nil {
		return nil, err
	}
	if err := checkUnit(key, len(e.Value), pairSize); err != nil {
		return nil, err
	}
	return pairs(e.Value), nil
}

// SpeedPoints decodes the descriptors stored under prefix_0, prefix_1, ...
// up to maxCount entries. Probing stops at the first missing index, so the result
// has one element per key actually present.
func SpeedPoints(rng nvram.Range, prefix string, maxCount int) ([]SpeedPoint, error) {
	var result []SpeedPoint
	for i := 0; i < maxCount; i++ {
		key := SpeedPointKey(prefix, i)
		e, ok := rng.Find(key)
		if !ok {
			break
		}
		if err := checkUnit(key, len(e.Value), pairSize); err != nil {
			return nil, err
		}
		result = append(result, SpeedPoint{
			Rate:   binary.LittleEndian.Uint32(e.Value[0:]),
			FWType: binary.LittleEndian.Uint32(e.Value[4:]),
			Config: pairs(e.Value[speedPointHeaderSize:]),
		})
	}
	if len(result) == 0 {
		return nil, nvram.NewError(nvram.RetCInvalidLength, SpeedPointKey(prefix, 0), "no speed point present")
	}
	log.Debugf("%s: %d speed points", prefix, len(result))
	return result, nil
}

// SpeedPointKey returns the key of the descriptor at index.
func SpeedPointKey(prefix string, index int) string {
	return fmt.Sprintf("%s_%d", prefix, index)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// checkUnit rejects lengths below one unit or not a multiple of it.
func checkUnit(key string, n, unit int) error {
	if n < unit || n%unit != 0 {
		return nvram.NewError(nvram.RetCInvalidLength, key,
			fmt.Sprintf("length %d is not a positive multiple of %d", n, unit))
	}
	return nil
}

func u32s(b []byte) []uint32 {
	out := make([]uint32, len(b)/u32Size)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*u32Size:])
	}
	return out
}

func pairs(b []byte) []ConfigPair {
	out := make([]ConfigPair, len(b)/pairSize)
	for i := range out {
		out[i] = ConfigPair{
			Addr:  binary.LittleEndian.Uint32(b[i*pairSize:]),
			Value: binary.LittleEndian.Uint32(b[i*pairSize+4:]),
		}
	}
	return out
}
