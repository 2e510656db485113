package nvram

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// lenFieldSize is the width of the key-length and value-length fields.
const lenFieldSize = 4

// Entry is a single key/value record. Key and Value alias the payload they
// were read from; callers copy before retaining them past the payload.
type Entry struct {
	Key   []byte
	Value []byte
}

// KeyString returns the key with at most one trailing terminator removed.
func (e Entry) KeyString() string {
	return string(trimTerminator(e.Key))
}

// Matches reports whether the entry's key equals key. The wire key may carry
// one trailing NUL that is not part of the name.
func (e Entry) Matches(key string) bool {
	k := trimTerminator(e.Key)
	return len(k) == len(key) && string(k) == key
}

// Equal reports whether two entries carry identical bytes.
func (e Entry) Equal(o Entry) bool {
	return bytes.Equal(e.Key, o.Key) && bytes.Equal(e.Value, o.Value)
}

func trimTerminator(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == 0 {
		return b[:n-1]
	}
	return b
}

// --------------------------------------------------------------------------
// Range and Iterator
// --------------------------------------------------------------------------

// Iterator is a position inside a Range. It is a plain offset, so two
// iterators over the same Range compare with ==.
type Iterator struct {
	off int
}

// Range is a validated payload: a contiguous sequence of
// [key_len][key][value_len][value] records with no gaps. The end of the
// sequence is the end of the payload, never a sentinel in the stream.
type Range struct {
	payload []byte
}

// NewRange checks that every record in payload is complete and returns a
// Range over it. A record that runs past the payload yields RetCTruncated.
func NewRange(payload []byte) (Range, error) {
	off := 0
	for off < len(payload) {
		size, err := recordSize(payload, off)
		if err != nil {
			return Range{}, err
		}
		off += size
	}
	return Range{payload: payload}, nil
}

// Payload returns the bytes the Range was built over.
func (r Range) Payload() []byte {
	return r.payload
}

// Begin returns the iterator at the first record.
func (r Range) Begin() Iterator {
	return Iterator{off: 0}
}

// End returns the iterator one past the last record.
func (r Range) End() Iterator {
	return Iterator{off: len(r.payload)}
}

// Next advances it by one record. Advancing the last record yields End.
func (r Range) Next(it Iterator) Iterator {
	if it.off >= len(r.payload) {
		return r.End()
	}
	size, err := recordSize(r.payload, it.off)
	if err != nil {
		// unreachable for ranges built by NewRange
		return r.End()
	}
	return Iterator{off: it.off + size}
}

// Deref returns the record at it. Dereferencing End panics.
func (r Range) Deref(it Iterator) Entry {
	if it.off >= len(r.payload) {
		panic("nvram: dereference of end iterator")
	}
	p := r.payload[it.off:]
	keyLen := int(binary.LittleEndian.Uint32(p))
	key := p[lenFieldSize : lenFieldSize+keyLen]
	p = p[lenFieldSize+keyLen:]
	valLen := int(binary.LittleEndian.Uint32(p))
	value := p[lenFieldSize : lenFieldSize+valLen]
	return Entry{Key: key, Value: value}
}

// Find returns the first entry whose key matches. Later entries with the
// same key are shadowed and never returned.
func (r Range) Find(key string) (Entry, bool) {
	for it := r.Begin(); it != r.End(); it = r.Next(it) {
		e := r.Deref(it)
		if e.Matches(key) {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns every record in order, duplicates included.
func (r Range) Entries() []Entry {
	var out []Entry
	for it := r.Begin(); it != r.End(); it = r.Next(it) {
		out = append(out, r.Deref(it))
	}
	return out
}

// Duplicates returns the keys that occur more than once, in first-seen order.
func (r Range) Duplicates() []string {
	seen := make(map[string]int)
	var dups []string
	for it := r.Begin(); it != r.End(); it = r.Next(it) {
		k := r.Deref(it).KeyString()
		seen[k]++
		if seen[k] == 2 {
			dups = append(dups, k)
		}
	}
	return dups
}

// recordSize returns the total byte size of the record starting at off.
func recordSize(payload []byte, off int) (int, error) {
	rest := payload[off:]
	if len(rest) < lenFieldSize {
		return 0, NewError(RetCTruncated, "entry",
			fmt.Sprintf("key length at offset %d", off))
	}
	keyLen := uint64(binary.LittleEndian.Uint32(rest))
	if uint64(len(rest)) < lenFieldSize+keyLen+lenFieldSize {
		return 0, NewError(RetCTruncated, "entry",
			fmt.Sprintf("key of %d bytes at offset %d", keyLen, off))
	}
	valLen := uint64(binary.LittleEndian.Uint32(rest[lenFieldSize+keyLen:]))
	total := lenFieldSize + keyLen + lenFieldSize + valLen
	if uint64(len(rest)) < total {
		return 0, NewError(RetCTruncated, "entry",
			fmt.Sprintf("value of %d bytes at offset %d", valLen, off))
	}
	return int(total), nil
}
