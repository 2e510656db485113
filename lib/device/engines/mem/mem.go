package mem

import (
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/nvboot/lib/device"
	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DefaultPageSize is the granularity of the sparse page map.
	DefaultPageSize = 4096
	// Erased is the value of every byte that was never written.
	Erased = byte(0xff)
)

// --------------------------------------------------------------------------
// Core memory device structure
// --------------------------------------------------------------------------

// memImpl is a sparse device: only pages that were written are allocated.
type memImpl struct {
	size     int64
	pageSize int64
	pages    *xsync.MapOf[int64, []byte] // page index -> page contents
	syncs    atomic.Uint64               // number of Sync calls
	closed   atomic.Bool
}

// Options configures a memory device.
type Options struct {
	PageSize int64 // Page granularity (0 = DefaultPageSize)
}

// Metadata is returned in device.Info.
type Metadata struct {
	PageSize       int64  `json:"page_size" yaml:"page_size"`
	AllocatedPages int    `json:"allocated_pages" yaml:"allocated_pages"`
	Syncs          uint64 `json:"syncs" yaml:"syncs"`
}

// NewMemDevice creates an erased device of size bytes. opts may be nil.
func NewMemDevice(size int64, opts *Options) device.RawStore {
	pageSize := int64(DefaultPageSize)
	if opts != nil && opts.PageSize > 0 {
		pageSize = opts.PageSize
	}
	return &memImpl{
		size:     size,
		pageSize: pageSize,
		pages:    xsync.NewMapOf[int64, []byte](),
	}
}

// NewMemDeviceFrom creates a device holding a copy of image.
func NewMemDeviceFrom(image []byte) device.RawStore {
	d := NewMemDevice(int64(len(image)), nil)
	_, _ = d.WriteAt(image, 0)
	return d
}

// --------------------------------------------------------------------------
// Interface Methods (docu see device.RawStore)
// --------------------------------------------------------------------------

func (m *memImpl) ReadAt(p []byte, off int64) (int, error) {
	if err := m.check(off, len(p)); err != nil {
		return 0, err
	}
	n := 0
	for n < len(p) {
		pos := off + int64(n)
		idx, inPage := pos/m.pageSize, pos%m.pageSize
		chunk := int(min(m.pageSize-inPage, int64(len(p)-n)))
		if page, ok := m.pages.Load(idx); ok {
			copy(p[n:n+chunk], page[inPage:])
		} else {
			for i := n; i < n+chunk; i++ {
				p[i] = Erased
			}
		}
		n += chunk
	}
	return n, nil
}

func (m *memImpl) WriteAt(p []byte, off int64) (int, error) {
	if err := m.check(off, len(p)); err != nil {
		return 0, err
	}
	n := 0
	for n < len(p) {
		pos := off + int64(n)
		idx, inPage := pos/m.pageSize, pos%m.pageSize
		chunk := int(min(m.pageSize-inPage, int64(len(p)-n)))
		page, _ := m.pages.LoadOrCompute(idx, m.erasedPage)
		copy(page[inPage:], p[n:n+chunk])
		n += chunk
	}
	return n, nil
}

func (m *memImpl) Sync() error {
	if m.closed.Load() {
		return nvram.NewError(nvram.RetCStorageIO, "sync", "device closed")
	}
	m.syncs.Add(1)
	return nil
}

func (m *memImpl) Size() int64 {
	return m.size
}

func (m *memImpl) Info() device.Info {
	return device.Info{
		SizeBytes: m.size,
		Type:      device.ImplMem,
		Metadata: Metadata{
			PageSize:       m.pageSize,
			AllocatedPages: m.pages.Size(),
			Syncs:          m.syncs.Load(),
		},
	}
}

func (m *memImpl) Close() error {
	m.closed.Store(true)
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (m *memImpl) check(off int64, n int) error {
	if m.closed.Load() {
		return nvram.NewError(nvram.RetCStorageIO, "device", fmt.Sprintf("access at 0x%x after close", off))
	}
	return device.CheckBounds(m.size, off, n)
}

func (m *memImpl) erasedPage() []byte {
	page := make([]byte, m.pageSize)
	for i := range page {
		page[i] = Erased
	}
	return page
}
