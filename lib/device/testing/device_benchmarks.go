package testing

import (
	"testing"

	"github.com/ValentinKolb/nvboot/lib/device"
)

// RunDeviceBenchmarks measures region-sized reads and writes, the access
// pattern of a store commit.
func RunDeviceBenchmarks(b *testing.B, name string, factory DeviceFactory) {
	const regionSize = 0x10000

	b.Run(name, func(b *testing.B) {
		b.Run("WriteRegion", func(b *testing.B) {
			dev := factory(2 * regionSize)
			defer dev.Close()
			buf := make([]byte, regionSize)
			b.SetBytes(regionSize)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := dev.WriteAt(buf, int64(i%2)*regionSize); err != nil {
					b.Fatal(err)
				}
			}
		})

		b.Run("ReadRegion", func(b *testing.B) {
			dev := factory(2 * regionSize)
			defer dev.Close()
			b.SetBytes(regionSize)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := device.ReadRegion(dev, int64(i%2)*regionSize, regionSize); err != nil {
					b.Fatal(err)
				}
			}
		})
	})
}
