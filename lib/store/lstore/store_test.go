package lstore

import (
	"testing"

	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	s := NewLocalStore(nvram.NewEntry("a", []byte("1")))

	v, ok, err := s.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, s.Set("b", []byte("2")))
	info, err := s.GetInfo()
	require.NoError(t, err)
	assert.True(t, info.Dirty)
	assert.Equal(t, 2, info.Entries)

	require.NoError(t, s.Commit())
	info, err = s.GetInfo()
	require.NoError(t, err)
	assert.False(t, info.Dirty)
	assert.Equal(t, uint32(1), info.Counter)

	require.NoError(t, s.Delete("a"))
	ok, err = s.Has("a")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Set("", nil), nvram.ErrInvalidLength)
}

func TestLocalStoreFromRange(t *testing.T) {
	rng, err := nvram.NewRange(nvram.MarshalEntries([]nvram.Entry{
		nvram.NewEntry("a", []byte("first")),
		nvram.NewEntry("a", []byte("second")),
	}))
	require.NoError(t, err)

	s := NewLocalStoreFrom(rng)
	v, _, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), v)

	info, err := s.GetInfo()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, info.Duplicates)
}
