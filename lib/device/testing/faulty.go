package testing

import (
	"fmt"

	"github.com/ValentinKolb/nvboot/lib/device"
	"github.com/ValentinKolb/nvboot/lib/nvram"
)

// FaultyDevice wraps a RawStore and injects failures. It simulates a power cut
// in the middle of a write: the first limit bytes reach the device, the rest
// of the write and every later write or sync fail.
type FaultyDevice struct {
	device.RawStore

	limit     int64 // bytes still allowed, <0 = unlimited
	tripped   bool
	failReads bool
	failSync  bool

	Writes int // successful WriteAt calls
}

// NewFaultyDevice wraps dev without any fault armed.
func NewFaultyDevice(dev device.RawStore) *FaultyDevice {
	return &FaultyDevice{RawStore: dev, limit: -1}
}

// FailWriteAfter arms a fault after n more written bytes.
func (f *FaultyDevice) FailWriteAfter(n int64) {
	f.limit = n
	f.tripped = false
}

// FailReads makes every read fail.
func (f *FaultyDevice) FailReads(fail bool) {
	f.failReads = fail
}

// FailSync makes every sync fail.
func (f *FaultyDevice) FailSync(fail bool) {
	f.failSync = fail
}

// Reset disarms every fault.
func (f *FaultyDevice) Reset() {
	f.limit = -1
	f.tripped = false
	f.failReads = false
	f.failSync = false
}

// Tripped reports whether a write fault has fired.
func (f *FaultyDevice) Tripped() bool {
	return f.tripped
}

func (f *FaultyDevice) ReadAt(p []byte, off int64) (int, error) {
	if f.failReads {
		return 0, nvram.NewError(nvram.RetCStorageIO, "read", fmt.Sprintf("injected fault at 0x%x", off))
	}
	return f.RawStore.ReadAt(p, off)
}

func (f *FaultyDevice) WriteAt(p []byte, off int64) (int, error) {
	if f.tripped {
		return 0, nvram.NewError(nvram.RetCStorageIO, "write", "device lost power")
	}
	if f.limit < 0 || int64(len(p)) <= f.limit {
		n, err := f.RawStore.WriteAt(p, off)
		if f.limit >= 0 {
			f.limit -= int64(n)
		}
		if err == nil {
			f.Writes++
		}
		return n, err
	}

	n, _ := f.RawStore.WriteAt(p[:f.limit], off)
	f.limit = 0
	f.tripped = true
	return n, nvram.NewError(nvram.RetCStorageIO, "write",
		fmt.Sprintf("injected fault after %d of %d bytes at 0x%x", n, len(p), off))
}

func (f *FaultyDevice) Sync() error {
	if f.failSync || f.tripped {
		return nvram.NewError(nvram.RetCStorageIO, "sync", "injected fault")
	}
	return f.RawStore.Sync()
}
