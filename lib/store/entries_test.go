package store

import (
	"testing"

	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryList(t *testing.T) {
	rng, err := nvram.NewRange(nvram.MarshalEntries([]nvram.Entry{
		nvram.NewEntry("a", []byte("1")),
		nvram.NewEntry("b", []byte("2")),
		nvram.NewEntry("a", []byte("3")),
	}))
	require.NoError(t, err)

	l := NewEntryList(rng)
	assert.Equal(t, 3, l.Len())
	assert.False(t, l.Dirty())

	v, ok := l.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	// returned values are copies
	v[0] = 'x'
	v, _ = l.Get("a")
	assert.Equal(t, []byte("1"), v)

	l.Set("c", []byte("4"))
	assert.True(t, l.Dirty())
	assert.Equal(t, 4, l.Len())

	assert.True(t, l.Delete("a"))
	assert.False(t, l.Delete("a"))
	assert.Equal(t, 2, l.Len())

	out, err := l.Range()
	require.NoError(t, err)
	var keys []string
	for _, e := range out.Entries() {
		keys = append(keys, e.KeyString())
	}
	assert.Equal(t, []string{"b", "c"}, keys)

	l.MarkClean()
	assert.False(t, l.Dirty())
}

func TestEntryListOwnsPayload(t *testing.T) {
	payload := nvram.MarshalEntries([]nvram.Entry{nvram.NewEntry("k", []byte("v"))})
	rng, err := nvram.NewRange(payload)
	require.NoError(t, err)

	l := NewEntryList(rng)
	for i := range payload {
		payload[i] = 0
	}
	v, ok := l.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestRegion(t *testing.T) {
	a := Region{Offset: 0x100, Size: 0x100}
	assert.Equal(t, int64(0x200), a.End())
	assert.True(t, a.Overlaps(Region{Offset: 0x1ff, Size: 1}))
	assert.False(t, a.Overlaps(Region{Offset: 0x200, Size: 1}))
	assert.False(t, a.Overlaps(Region{Offset: 0, Size: 0x100}))
}

func TestCheckKey(t *testing.T) {
	assert.NoError(t, CheckKey("SYS_BOOT_PART"))
	assert.ErrorIs(t, CheckKey(""), nvram.ErrInvalidLength)
	assert.ErrorIs(t, CheckKey("x\x00"), nvram.ErrInvalidLength)
}
