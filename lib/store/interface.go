package store

import (
	"github.com/ValentinKolb/nvboot/lib/device"
	"github.com/ValentinKolb/nvboot/lib/nvram"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is a handle on one NVRAM key/value store. Every operation that needs
// persisted configuration receives the handle explicitly; there is no process
// wide store.
//
// Mutations only change the in-memory working set. Nothing reaches the device
// until Commit, which writes the whole store as one atomic unit.
type IStore interface {
	// Get returns a copy of the value of the first entry matching key.
	Get(key string) (value []byte, loaded bool, err error)
	// Has reports whether any entry matches key.
	Has(key string) (loaded bool, err error)
	// Set replaces the value of the first entry matching key, or appends a new
	// entry when none matches. Shadowed duplicates are left untouched.
	Set(key string, value []byte) (err error)
	// Delete removes every entry matching key. Deleting a missing key is not
	// an error.
	Delete(key string) (err error)
	// Range returns a validated view of the current working set, in order and
	// duplicates included.
	Range() (rng nvram.Range, err error)
	// Commit makes the working set durable. On failure the error has code
	// RetCCommitFailed and the previously committed image stays intact.
	Commit() (err error)
	// GetInfo returns metadata about the store and the device beneath it.
	GetInfo() (info Info, err error)
}

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// Region is a contiguous byte range of a device holding one store image.
type Region struct {
	Offset int64 `json:"offset" yaml:"offset"`
	Size   int64 `json:"size" yaml:"size"`
}

// End returns the first offset after the region.
func (r Region) End() int64 {
	return r.Offset + r.Size
}

// Overlaps reports whether r and o share at least one byte.
func (r Region) Overlaps(o Region) bool {
	return r.Offset < o.End() && o.Offset < r.End()
}

// Info describes the state of a store.
type Info struct {
	Entries      int          `json:"entries" yaml:"entries"`
	PayloadBytes int          `json:"payload_bytes" yaml:"payload_bytes"`
	Duplicates   []string     `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Dirty        bool         `json:"dirty" yaml:"dirty"`
	Counter      uint32       `json:"counter" yaml:"counter"`
	ActiveRegion int          `json:"active_region" yaml:"active_region"` // -1 = nothing committed yet
	Regions      []Region     `json:"regions,omitempty" yaml:"regions,omitempty"`
	Device       *device.Info `json:"device,omitempty" yaml:"device,omitempty"`
}
