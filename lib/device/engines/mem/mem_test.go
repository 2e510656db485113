package mem

import (
	"testing"

	"github.com/ValentinKolb/nvboot/lib/device"
	devtesting "github.com/ValentinKolb/nvboot/lib/device/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test(t *testing.T) {
	devtesting.RunDeviceTests(t, "MemDevice", func(size int64) device.RawStore {
		return NewMemDevice(size, nil)
	})
	devtesting.RunDeviceTests(t, "MemDeviceSmallPages", func(size int64) device.RawStore {
		return NewMemDevice(size, &Options{PageSize: 7})
	})
}

func Benchmark(b *testing.B) {
	devtesting.RunDeviceBenchmarks(b, "MemDevice", func(size int64) device.RawStore {
		return NewMemDevice(size, nil)
	})
}

func TestSparse(t *testing.T) {
	d := NewMemDevice(1<<20, nil)
	_, err := d.WriteAt([]byte{1, 2, 3}, DefaultPageSize-1)
	require.NoError(t, err)

	meta := d.Info().Metadata.(Metadata)
	assert.Equal(t, 2, meta.AllocatedPages, "write spanning a page boundary allocates two pages")

	buf := make([]byte, 4)
	_, err = d.ReadAt(buf, DefaultPageSize-2)
	require.NoError(t, err)
	assert.Equal(t, []byte{Erased, 1, 2, 3}, buf)
}

func TestNewMemDeviceFrom(t *testing.T) {
	img := []byte("an image")
	d := NewMemDeviceFrom(img)
	assert.Equal(t, int64(len(img)), d.Size())

	buf, err := device.ReadRegion(d, 0, len(img))
	require.NoError(t, err)
	assert.Equal(t, img, buf)
}
