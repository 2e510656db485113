package build

import (
	"crypto/ed25519"
	"fmt"
	"testing"

	"github.com/ValentinKolb/nvboot/lib/common"
	"github.com/ValentinKolb/nvboot/lib/decode"
	"github.com/ValentinKolb/nvboot/lib/device/engines/mem"
	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/ValentinKolb/nvboot/lib/platform"
	"github.com/ValentinKolb/nvboot/lib/store/nvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestYAML = `
layout: %s
name: sdb8000
counter: 7
dram:
  name: sdb8000-lpddr4
  version: "2"
  ddrc_cfg:
    - {addr: 0x3d400304, value: 1}
  ddrphy_cfg:
    - {addr: 0x100a0, value: 0}
  fsp_msg:
    - rate: 3000
      fw_type: 0
      config:
        - {addr: 0xd0000, value: 0}
  ddrphy_trained_csr:
    - {addr: 0x200b2, value: 0}
  ddrphy_pie:
    - {addr: 0xd0000, value: 0}
  fsp_table: [3000, 400, 100, 0]
entries:
  - key: SYS_BOOT_PART
    string: rootfs1
  - key: board_rev
    u32: [3]
  - key: extra_regs
    pairs:
      - {addr: 0x10, value: 0x20}
  - key: fsp_msg_1
    speed_point: {rate: 400, fw_type: 0, config: []}
  - key: mac
    hex: "00 11 22 33 44 55"
`

func manifest(t *testing.T, layout Layout) *Manifest {
	t.Helper()
	m, err := ParseManifest([]byte(fmt.Sprintf(manifestYAML, layout)))
	require.NoError(t, err)
	return m
}

func target() Target {
	conf := common.DefaultBootConfig()
	return Target{
		Layout:         conf.Layout,
		NVRAMRegion:    conf.NVRAMRegion,
		PlatformOffset: conf.PlatformOffset,
	}
}

func TestParseManifest(t *testing.T) {
	m := manifest(t, LayoutStore)
	assert.Equal(t, LayoutStore, m.Layout)
	assert.Equal(t, uint32(7), m.Counter)
	require.NotNil(t, m.DRAM)
	assert.Equal(t, [4]uint32{3000, 400, 100, 0}, m.DRAM.FSPTable)
	require.Len(t, m.Entries, 5)

	entries, err := m.BuildEntries()
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, "mac", last.KeyString())
	assert.Equal(t, []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}, last.Value)
}

func TestParseManifestDefaultsToStore(t *testing.T) {
	m, err := ParseManifest([]byte("entries:\n  - key: a\n    string: b\n"))
	require.NoError(t, err)
	assert.Equal(t, LayoutStore, m.Layout)
}

func TestManifestValidation(t *testing.T) {
	_, err := ParseManifest([]byte(`
layout: platform
entries:
  - key: ""
    string: x
  - key: both
    string: x
    u32: [1]
  - key: none
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "platform layout needs a name")
	assert.Contains(t, msg, "entry 0")
	assert.Contains(t, msg, "need exactly one value, got 2")
	assert.Contains(t, msg, "need exactly one value, got 0")

	_, err = ParseManifest([]byte("layout: tarball\n"))
	assert.ErrorContains(t, err, `unknown layout "tarball"`)
}

func TestWriteStore(t *testing.T) {
	dev := mem.NewMemDevice(common.DefaultDeviceSize, nil)
	w, err := Write(dev, manifest(t, LayoutStore), target())
	require.NoError(t, err)
	assert.Equal(t, nvstore.DefaultLayout().Regions[0], w.Region)

	s, err := nvstore.Open(dev, nvstore.DefaultLayout())
	require.NoError(t, err)
	rng, err := s.Range()
	require.NoError(t, err)

	label, err := decode.String(rng, "SYS_BOOT_PART")
	require.NoError(t, err)
	assert.Equal(t, "rootfs1", label)

	timing, err := decode.LoadDRAMTiming(rng)
	require.NoError(t, err)
	// fsp_msg_1 comes from the explicit entries
	require.Len(t, timing.FSPMessages, 2)
	assert.Equal(t, uint32(400), timing.FSPMessages[1].Rate)

	// a second build lands in the other region
	w, err = Write(dev, manifest(t, LayoutStore), target())
	require.NoError(t, err)
	assert.Equal(t, nvstore.DefaultLayout().Regions[1], w.Region)
}

func TestWriteNVRAM(t *testing.T) {
	dev := mem.NewMemDevice(common.DefaultDeviceSize, nil)
	_, err := Write(dev, manifest(t, LayoutNVRAM), target())
	require.NoError(t, err)

	timing, err := platform.LoadNVRAM(dev, target().NVRAMRegion)
	require.NoError(t, err)
	assert.Equal(t, "sdb8000-lpddr4", timing.Name)
}

func TestWritePlatform(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	key := ed25519.NewKeyFromSeed(seed)
	pub := key.Public().(ed25519.PublicKey)

	tg := target()
	tg.SignKey = key

	dev := mem.NewMemDevice(common.DefaultDeviceSize, nil)
	w, err := Write(dev, manifest(t, LayoutPlatform), tg)
	require.NoError(t, err)
	require.Len(t, w.Signature, ed25519.SignatureSize)

	require.NoError(t, Verify(dev, tg.PlatformOffset, pub, w.Signature))
	require.NoError(t, Verify(dev, tg.PlatformOffset, nil, nil))

	bad := append([]byte(nil), w.Signature...)
	bad[0] ^= 0xff
	err = Verify(dev, tg.PlatformOffset, pub, bad)
	assert.ErrorIs(t, err, nvram.ErrAuthenticationFailed)
}

func TestWriteErrors(t *testing.T) {
	t.Run("sign non platform", func(t *testing.T) {
		tg := target()
		tg.SignKey = ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
		_, err := Write(mem.NewMemDevice(common.DefaultDeviceSize, nil), manifest(t, LayoutNVRAM), tg)
		assert.ErrorContains(t, err, "only the platform layout can be signed")
	})

	t.Run("too large", func(t *testing.T) {
		tg := target()
		tg.NVRAMRegion.Size = 32
		_, err := Write(mem.NewMemDevice(common.DefaultDeviceSize, nil), manifest(t, LayoutNVRAM), tg)
		assert.ErrorIs(t, err, nvram.ErrSizeExceeded)
	})

	t.Run("bad hex", func(t *testing.T) {
		m, err := ParseManifest([]byte("entries:\n  - key: a\n    hex: xyz\n"))
		require.NoError(t, err)
		_, err = m.BuildEntries()
		assert.Error(t, err)
	})
}
