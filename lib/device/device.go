package device

import (
	"fmt"

	"github.com/ValentinKolb/nvboot/lib/nvram"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplFile Implementation = "file"
	ImplMem  Implementation = "mem"
)

// Info describes a raw storage device.
type Info struct {
	SizeBytes int64          `json:"size_bytes" yaml:"size_bytes"`
	Type      Implementation `json:"type" yaml:"type"`
	Metadata  interface{}    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// --------------------------------------------------------------------------
// Raw Storage Interface
// --------------------------------------------------------------------------

// RawStore is offset-addressed, fixed-size non-volatile storage: a flash
// partition, an SPI NOR device or an image file standing in for one.
// Implementations report every failure as an nvram error with code
// RetCStorageIO and never retry.
type RawStore interface {

	// ReadAt reads len(p) bytes starting at off. A read that does not fit
	// inside the device fails without reading anything.
	ReadAt(p []byte, off int64) (n int, err error)

	// WriteAt writes len(p) bytes starting at off. A failed write may have
	// written a prefix of p.
	WriteAt(p []byte, off int64) (n int, err error)

	// Sync makes every completed write durable.
	Sync() (err error)

	// Size returns the fixed size of the device in bytes.
	Size() (size int64)

	// Info returns information about the device.
	Info() (info Info)

	// Close releases the device.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// CheckBounds returns a StorageIO error unless [off, off+n) lies inside a
// device of the given size.
func CheckBounds(size, off int64, n int) error {
	if off < 0 || n < 0 || off+int64(n) > size {
		return nvram.NewError(nvram.RetCStorageIO, "device",
			fmt.Sprintf("access [0x%x, 0x%x) outside device of 0x%x bytes", off, off+int64(n), size))
	}
	return nil
}

// ReadRegion reads size bytes at off into a new buffer.
func ReadRegion(dev RawStore, off int64, size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := dev.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

// IOError wraps err as a StorageIO error for the named operation.
func IOError(op string, err error) error {
	return nvram.WrapError(nvram.RetCStorageIO, op, err)
}
