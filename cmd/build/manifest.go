package build

import (
	"crypto/ed25519"
	"fmt"

	"github.com/ValentinKolb/nvboot/cmd/util"
	"github.com/ValentinKolb/nvboot/lib/decode"
	"github.com/ValentinKolb/nvboot/lib/device"
	"github.com/ValentinKolb/nvboot/lib/export"
	"github.com/ValentinKolb/nvboot/lib/integrity"
	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/ValentinKolb/nvboot/lib/platform"
	"github.com/ValentinKolb/nvboot/lib/store"
	"github.com/ValentinKolb/nvboot/lib/store/nvstore"
	"github.com/hashicorp/go-multierror"
)

// Layout selects where and how a manifest is written to the device.
type Layout string

const (
	// LayoutStore commits the entries into the A/B key/value store.
	LayoutStore Layout = "store"
	// LayoutNVRAM writes a single NVRAM image into the DRAM configuration region.
	LayoutNVRAM Layout = "nvram"
	// LayoutPlatform wraps an NVRAM image in a platform header.
	LayoutPlatform Layout = "platform"
)

// Manifest describes the content of an image.
type Manifest struct {
	Layout  Layout             `yaml:"layout"`
	Name    string             `yaml:"name"`
	Counter uint32             `yaml:"counter"`
	DRAM    *decode.DRAMTiming `yaml:"dram"`
	Entries []ManifestEntry    `yaml:"entries"`
}

// ManifestEntry is one key with exactly one typed value.
type ManifestEntry struct {
	Key        string              `yaml:"key"`
	String     *string             `yaml:"string"`
	U32        []uint32            `yaml:"u32"`
	Pairs      []decode.ConfigPair `yaml:"pairs"`
	SpeedPoint *decode.SpeedPoint  `yaml:"speed_point"`
	Hex        *string             `yaml:"hex"`
}

// ParseManifest decodes a YAML manifest and checks it for consistency.
func ParseManifest(b []byte) (*Manifest, error) {
	s, err := export.New("yaml")
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := s.Deserialize(b, m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if m.Layout == "" {
		m.Layout = LayoutStore
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate reports every problem of the manifest at once.
func (m *Manifest) Validate() error {
	var result *multierror.Error

	switch m.Layout {
	case LayoutStore, LayoutNVRAM:
	case LayoutPlatform:
		if m.Name == "" {
			result = multierror.Append(result, fmt.Errorf("platform layout needs a name"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown layout %q", m.Layout))
	}

	for i, e := range m.Entries {
		if err := store.CheckKey(e.Key); err != nil {
			result = multierror.Append(result, fmt.Errorf("entry %d: %w", i, err))
		}
		if n := e.values(); n != 1 {
			result = multierror.Append(result, fmt.Errorf("entry %d (%s): need exactly one value, got %d", i, e.Key, n))
		}
	}

	return result.ErrorOrNil()
}

// BuildEntries returns the records of the manifest: the DRAM record first,
// followed by the explicit entries in manifest order.
func (m *Manifest) BuildEntries() ([]nvram.Entry, error) {
	var entries []nvram.Entry
	if m.DRAM != nil {
		entries = append(entries, m.DRAM.Entries()...)
	}
	for _, e := range m.Entries {
		value, err := e.encode()
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Key, err)
		}
		entries = append(entries, nvram.NewEntry(e.Key, value))
	}
	return entries, nil
}

func (e ManifestEntry) values() int {
	n := 0
	for _, set := range []bool{e.String != nil, e.U32 != nil, e.Pairs != nil, e.SpeedPoint != nil, e.Hex != nil} {
		if set {
			n++
		}
	}
	return n
}

func (e ManifestEntry) encode() ([]byte, error) {
	switch {
	case e.String != nil:
		return decode.EncodeString(*e.String), nil
	case e.U32 != nil:
		return decode.EncodeU32Array(e.U32), nil
	case e.Pairs != nil:
		return decode.EncodeConfigPairs(e.Pairs), nil
	case e.SpeedPoint != nil:
		return decode.EncodeSpeedPoint(*e.SpeedPoint), nil
	case e.Hex != nil:
		return util.ParseHex(*e.Hex)
	}
	return nil, fmt.Errorf("no value")
}

// --------------------------------------------------------------------------
// Writing
// --------------------------------------------------------------------------

// Target describes where the layouts are placed on the device.
type Target struct {
	Layout         nvstore.Layout
	NVRAMRegion    store.Region
	PlatformOffset int64
	// SignKey, when set, signs the platform blob.
	SignKey ed25519.PrivateKey
}

// Written is the outcome of Write.
type Written struct {
	Region    store.Region `json:"region" yaml:"region"`
	Entries   int          `json:"entries" yaml:"entries"`
	Signature []byte       `json:"-" yaml:"-"`
}

// Write places the manifest on dev according to its layout.
func Write(dev device.RawStore, m *Manifest, t Target) (Written, error) {
	entries, err := m.BuildEntries()
	if err != nil {
		return Written{}, err
	}
	if t.SignKey != nil && m.Layout != LayoutPlatform {
		return Written{}, fmt.Errorf("only the platform layout can be signed")
	}

	switch m.Layout {
	case LayoutStore:
		return writeStore(dev, entries, t.Layout)
	case LayoutNVRAM:
		image := nvram.MarshalImage(entries, m.Counter)
		if err := writeImage(dev, image, t.NVRAMRegion); err != nil {
			return Written{}, err
		}
		return Written{Region: t.NVRAMRegion, Entries: len(entries)}, nil
	case LayoutPlatform:
		blob := nvram.MarshalImage(entries, m.Counter)
		image := platform.BuildImage(m.Name, blob)
		r := store.Region{Offset: t.PlatformOffset, Size: dev.Size() - t.PlatformOffset}
		if err := writeImage(dev, image, r); err != nil {
			return Written{}, err
		}
		w := Written{Region: store.Region{Offset: r.Offset, Size: int64(len(image))}, Entries: len(entries)}
		if t.SignKey != nil {
			w.Signature = ed25519.Sign(t.SignKey, blob)
		}
		return w, nil
	}
	return Written{}, fmt.Errorf("unknown layout %q", m.Layout)
}

// writeStore commits the entries on top of whatever the store holds.
func writeStore(dev device.RawStore, entries []nvram.Entry, layout nvstore.Layout) (Written, error) {
	s, err := nvstore.Open(dev, layout)
	if err != nil {
		return Written{}, err
	}
	for _, e := range entries {
		if err := s.Set(e.KeyString(), e.Value); err != nil {
			return Written{}, err
		}
	}
	if err := s.Commit(); err != nil {
		return Written{}, err
	}
	info, err := s.GetInfo()
	if err != nil {
		return Written{}, err
	}
	return Written{Region: info.Regions[info.ActiveRegion], Entries: info.Entries}, nil
}

func writeImage(dev device.RawStore, image []byte, r store.Region) error {
	if r.Size < 0 || int64(len(image)) > r.Size {
		return nvram.NewError(nvram.RetCSizeExceeded, "image",
			fmt.Sprintf("%d bytes do not fit into 0x%x bytes at 0x%x", len(image), r.Size, r.Offset))
	}
	if _, err := dev.WriteAt(image, r.Offset); err != nil {
		return err
	}
	return dev.Sync()
}

// Verify checks a written platform image the way the boot flow does.
func Verify(dev device.RawStore, offset int64, pub ed25519.PublicKey, sig []byte) error {
	opts := platform.DefaultOptions()
	opts.Offset = offset
	if pub != nil {
		v, err := integrity.NewEd25519Verifier(pub)
		if err != nil {
			return err
		}
		opts.Gate.Verifier = v
		opts.Signature = &integrity.Signature{KeyName: "build", Value: sig}
	}
	_, err := platform.Load(dev, opts)
	return err
}
