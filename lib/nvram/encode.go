package nvram

import (
	"encoding/binary"
)

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// SizeBytes returns the number of payload bytes needed for entries.
func SizeBytes(entries []Entry) int {
	size := 0
	for _, e := range entries {
		size += lenFieldSize + len(e.Key) + lenFieldSize + len(e.Value)
	}
	return size
}

// MarshalEntries packs entries contiguously in order, with no padding.
func MarshalEntries(entries []Entry) []byte {
	result := make([]byte, SizeBytes(entries))
	pos := 0
	for _, e := range entries {
		binary.LittleEndian.PutUint32(result[pos:], uint32(len(e.Key)))
		pos += lenFieldSize
		copy(result[pos:], e.Key)
		pos += len(e.Key)

		binary.LittleEndian.PutUint32(result[pos:], uint32(len(e.Value)))
		pos += lenFieldSize
		copy(result[pos:], e.Value)
		pos += len(e.Value)
	}
	return result
}

// MarshalImage returns header and payload for entries as one buffer, the
// layout found in a single storage region.
func MarshalImage(entries []Entry, counter uint32) []byte {
	payload := MarshalEntries(entries)
	hdr := NewHeader(payload, counter)
	return append(hdr.Marshal(), payload...)
}

// NewEntry builds an entry from a string key and a value, copying both.
func NewEntry(key string, value []byte) Entry {
	return Entry{
		Key:   []byte(key),
		Value: append([]byte(nil), value...),
	}
}
