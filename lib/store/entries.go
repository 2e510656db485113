package store

import (
	"bytes"

	"github.com/ValentinKolb/nvboot/lib/nvram"
)

// EntryList is the in-memory working set shared by the store implementations.
// It keeps the on-media order and duplicates, so a committed image differs
// from the loaded one only where it was mutated.
type EntryList struct {
	entries []nvram.Entry
	dirty   bool
}

// NewEntryList copies every record of rng into a new list.
func NewEntryList(rng nvram.Range) *EntryList {
	l := &EntryList{}
	for _, e := range rng.Entries() {
		l.entries = append(l.entries, nvram.Entry{
			Key:   bytes.Clone(e.Key),
			Value: bytes.Clone(e.Value),
		})
	}
	return l
}

// Get returns a copy of the first matching value.
func (l *EntryList) Get(key string) ([]byte, bool) {
	for _, e := range l.entries {
		if e.Matches(key) {
			return bytes.Clone(e.Value), true
		}
	}
	return nil, false
}

// Set replaces the first matching value or appends a new entry.
func (l *EntryList) Set(key string, value []byte) {
	l.dirty = true
	for i, e := range l.entries {
		if e.Matches(key) {
			l.entries[i].Value = bytes.Clone(value)
			return
		}
	}
	l.entries = append(l.entries, nvram.NewEntry(key, value))
}

// Delete removes every matching entry and reports whether one existed.
func (l *EntryList) Delete(key string) bool {
	kept := l.entries[:0]
	for _, e := range l.entries {
		if !e.Matches(key) {
			kept = append(kept, e)
		}
	}
	removed := len(kept) != len(l.entries)
	clear(l.entries[len(kept):])
	l.entries = kept
	if removed {
		l.dirty = true
	}
	return removed
}

// Payload encodes the list in order.
func (l *EntryList) Payload() []byte {
	return nvram.MarshalEntries(l.entries)
}

// Range returns a view over a freshly encoded payload.
func (l *EntryList) Range() (nvram.Range, error) {
	return nvram.NewRange(l.Payload())
}

// Len returns the number of entries, duplicates included.
func (l *EntryList) Len() int {
	return len(l.entries)
}

// Dirty reports whether the list changed since the last MarkClean.
func (l *EntryList) Dirty() bool {
	return l.dirty
}

// MarkClean records that the current content is durable.
func (l *EntryList) MarkClean() {
	l.dirty = false
}

// CheckKey rejects keys that cannot be stored: the empty key, and keys
// ending in a terminator that lookups would strip.
func CheckKey(key string) error {
	if key == "" {
		return nvram.NewError(nvram.RetCInvalidLength, key, "empty key")
	}
	if key[len(key)-1] == 0 {
		return nvram.NewError(nvram.RetCInvalidLength, key, "key ends in a terminator")
	}
	return nil
}
