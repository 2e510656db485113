package platform

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/ValentinKolb/nvboot/lib/decode"
	"github.com/ValentinKolb/nvboot/lib/device"
	"github.com/ValentinKolb/nvboot/lib/device/engines/mem"
	"github.com/ValentinKolb/nvboot/lib/integrity"
	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/ValentinKolb/nvboot/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deviceSize = 0x400000

func testTiming() *decode.DRAMTiming {
	return &decode.DRAMTiming{
		Name:             "vhgw-lpddr4",
		Version:          "3",
		DDRCConfig:       []decode.ConfigPair{{Addr: 0x3d400304, Value: 1}},
		DDRPHYConfig:     []decode.ConfigPair{{Addr: 0x100a0, Value: 0}},
		FSPMessages:      []decode.SpeedPoint{{Rate: 2400, FWType: 0, Config: []decode.ConfigPair{{Addr: 0xd0000, Value: 0}}}},
		DDRPHYTrainedCSR: []decode.ConfigPair{{Addr: 0x200b2, Value: 0}},
		DDRPHYPIE:        []decode.ConfigPair{{Addr: 0xd0000, Value: 1}},
		FSPTable:         [4]uint32{2400, 0, 0, 0},
	}
}

func testBlob() []byte {
	return nvram.MarshalImage(testTiming().Entries(), 1)
}

func deviceWith(t *testing.T, off int64, image []byte) device.RawStore {
	t.Helper()
	dev := mem.NewMemDevice(deviceSize, nil)
	_, err := dev.WriteAt(image, off)
	require.NoError(t, err)
	return dev
}

func TestHeaderRoundTrip(t *testing.T) {
	img := BuildImage("vhgw", testBlob())
	h, err := ParseHeader(img)
	require.NoError(t, err)
	assert.Equal(t, "vhgw", h.Name)
	assert.Equal(t, uint32(HeaderSize), h.BlobOffset)
	assert.Equal(t, uint32(len(img)), h.TotalSize)
	assert.Equal(t, integrity.Checksum(img[HeaderSize:]), h.BlobCRC32)
}

func TestHeaderLongName(t *testing.T) {
	long := "a-platform-name-that-is-way-too-long-for-the-field"
	h, err := ParseHeader(Header{Name: long, BlobOffset: HeaderSize, TotalSize: HeaderSize}.Marshal())
	require.NoError(t, err)
	assert.Equal(t, long[:NameLen-1], h.Name)
}

func TestParseHeaderErrors(t *testing.T) {
	good := BuildImage("vhgw", testBlob())

	patch := func(off int, v uint32) []byte {
		buf := append([]byte(nil), good...)
		binary.LittleEndian.PutUint32(buf[off:], v)
		return buf
	}

	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"truncated", good[:HeaderSize-1], nvram.ErrTruncated},
		{"bad magic", patch(offMagic, 0x12345678), nvram.ErrBadMagic},
		{"blob overlaps header", patch(offBlobOffset, 16), nvram.ErrSizeExceeded},
		{"blob past total", patch(offTotalSize, HeaderSize+10), nvram.ErrSizeExceeded},
		{"offset overflow", patch(offBlobOffset, 0xffffffff), nvram.ErrSizeExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader(tt.buf)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dev := deviceWith(t, DefaultOffset, BuildImage("vhgw", testBlob()))

	p, err := Load(dev, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "vhgw", p.Header.Name)
	assert.Equal(t, testTiming(), p.Timing)
	assert.Equal(t, uint32(1), p.Blob.Counter)
}

func TestLoadRejectsTamperedBlob(t *testing.T) {
	img := BuildImage("vhgw", testBlob())
	// a byte inside a value, the blob still parses but the checksum fails
	img[len(img)-1] ^= 0x01

	_, err := Load(deviceWith(t, DefaultOffset, img), DefaultOptions())
	assert.ErrorIs(t, err, nvram.ErrChecksumMismatch)
}

func TestLoadSigned(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	v, err := integrity.NewEd25519Verifier(pub)
	require.NoError(t, err)

	blob := testBlob()
	dev := deviceWith(t, DefaultOffset, BuildImage("vhgw", blob))

	opts := DefaultOptions()
	opts.Gate = integrity.Gate{Verifier: v}

	_, err = Load(dev, opts)
	assert.ErrorIs(t, err, nvram.ErrAuthenticationFailed, "unsigned")

	opts.Signature = &integrity.Signature{KeyName: "test", Value: make([]byte, ed25519.SignatureSize)}
	_, err = Load(dev, opts)
	assert.ErrorIs(t, err, nvram.ErrAuthenticationFailed, "wrong signature")

	opts.Signature = &integrity.Signature{KeyName: "test", Value: ed25519.Sign(priv, blob)}
	p, err := Load(dev, opts)
	require.NoError(t, err)
	assert.Equal(t, "vhgw-lpddr4", p.Timing.Name)
}

func TestLoadBlobErrors(t *testing.T) {
	t.Run("not an nvram image", func(t *testing.T) {
		dev := deviceWith(t, DefaultOffset, BuildImage("vhgw", []byte("garbage blob with a valid crc")))
		_, err := Load(dev, DefaultOptions())
		assert.ErrorIs(t, err, nvram.ErrBadMagic)
	})

	t.Run("missing key", func(t *testing.T) {
		var entries []nvram.Entry
		for _, e := range testTiming().Entries() {
			if !e.Matches(decode.KeyDDRPHYPIE) {
				entries = append(entries, e)
			}
		}
		dev := deviceWith(t, DefaultOffset, BuildImage("vhgw", nvram.MarshalImage(entries, 1)))
		_, err := Load(dev, DefaultOptions())
		assert.ErrorIs(t, err, nvram.ErrNotFound)
	})

	t.Run("image past device end", func(t *testing.T) {
		img := BuildImage("vhgw", testBlob())
		dev := deviceWith(t, deviceSize-int64(len(img)), img)
		opts := Options{Offset: deviceSize - int64(len(img)) + 1}
		_, err := Load(dev, opts)
		assert.Error(t, err)
	})

	t.Run("erased flash", func(t *testing.T) {
		_, err := Load(mem.NewMemDevice(deviceSize, nil), DefaultOptions())
		assert.ErrorIs(t, err, nvram.ErrBadMagic)
	})
}

func TestLoadNVRAM(t *testing.T) {
	r := DefaultNVRAMRegion
	dev := deviceWith(t, r.Offset, testBlob())

	timing, err := LoadNVRAM(dev, r)
	require.NoError(t, err)
	assert.Equal(t, testTiming(), timing)

	_, err = LoadNVRAM(dev, store.Region{Offset: r.Offset, Size: nvram.HeaderLen + 8})
	assert.ErrorIs(t, err, nvram.ErrSizeExceeded)
}
