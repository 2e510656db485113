package testing

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/nvboot/lib/device"
	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DeviceFactory creates a new, erased device of the given size.
type DeviceFactory func(size int64) device.RawStore

// testSize is the size of every device created by the suite.
const testSize = 64 * 1024

// RunDeviceTests runs the conformance suite for a RawStore implementation.
func RunDeviceTests(t *testing.T, name string, factory DeviceFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Size", func(t *testing.T) {
			testReportedSize(t, factory(testSize))
		})

		t.Run("Erased", func(t *testing.T) {
			testErased(t, factory(testSize))
		})

		t.Run("WriteRead", func(t *testing.T) {
			testWriteRead(t, factory(testSize))
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory(testSize))
		})

		t.Run("Bounds", func(t *testing.T) {
			testBounds(t, factory(testSize))
		})

		t.Run("Sync", func(t *testing.T) {
			testSync(t, factory(testSize))
		})

		t.Run("Faulty", func(t *testing.T) {
			testFaulty(t, factory(testSize))
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testReportedSize(t *testing.T, dev device.RawStore) {
	defer dev.Close()
	assert.Equal(t, int64(testSize), dev.Size())
	assert.Equal(t, int64(testSize), dev.Info().SizeBytes)
}

func testErased(t *testing.T, dev device.RawStore) {
	defer dev.Close()
	buf, err := device.ReadRegion(dev, 1000, 64)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 64), buf)
}

func testWriteRead(t *testing.T, dev device.RawStore) {
	defer dev.Close()

	data := make([]byte, 10000)
	for i := range data {
		data[i] = byte(i % 251)
	}

	for _, off := range []int64{0, 1, 4095, 12345, testSize - int64(len(data))} {
		n, err := dev.WriteAt(data, off)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)

		got, err := device.ReadRegion(dev, off, len(data))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(data, got), "mismatch at offset %d", off)
	}

	// reads return a copy
	got, err := device.ReadRegion(dev, 0, 4)
	require.NoError(t, err)
	got[0] ^= 0xff
	again, err := device.ReadRegion(dev, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, data[:4], again)
}

func testOverwrite(t *testing.T, dev device.RawStore) {
	defer dev.Close()

	_, err := dev.WriteAt([]byte("aaaaaaaa"), 100)
	require.NoError(t, err)
	_, err = dev.WriteAt([]byte("bb"), 103)
	require.NoError(t, err)

	got, err := device.ReadRegion(dev, 100, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("aaabbaaa"), got)
}

func testBounds(t *testing.T, dev device.RawStore) {
	defer dev.Close()

	tests := []struct {
		name string
		off  int64
		n    int
	}{
		{"negative offset", -1, 4},
		{"past end", testSize, 1},
		{"straddles end", testSize - 2, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dev.ReadAt(make([]byte, tt.n), tt.off)
			assert.ErrorIs(t, err, nvram.ErrStorageIO)
			_, err = dev.WriteAt(make([]byte, tt.n), tt.off)
			assert.ErrorIs(t, err, nvram.ErrStorageIO)
		})
	}

	// the last byte is addressable
	_, err := dev.WriteAt([]byte{0x42}, testSize-1)
	require.NoError(t, err)
}

func testSync(t *testing.T, dev device.RawStore) {
	defer dev.Close()
	_, err := dev.WriteAt([]byte("x"), 0)
	require.NoError(t, err)
	assert.NoError(t, dev.Sync())
}

func testFaulty(t *testing.T, dev device.RawStore) {
	defer dev.Close()

	faulty := NewFaultyDevice(dev)
	faulty.FailWriteAfter(3)

	n, err := faulty.WriteAt([]byte("abcdef"), 10)
	assert.ErrorIs(t, err, nvram.ErrStorageIO)
	assert.Equal(t, 3, n)

	got, err := device.ReadRegion(dev, 10, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 'c', 0xff, 0xff, 0xff}, got, "only the prefix reached the device")

	// the device stays broken until reset
	_, err = faulty.WriteAt([]byte("z"), 0)
	assert.ErrorIs(t, err, nvram.ErrStorageIO)

	faulty.Reset()
	_, err = faulty.WriteAt([]byte("z"), 0)
	assert.NoError(t, err)
}
