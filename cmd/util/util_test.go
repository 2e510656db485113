package util

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/nvboot/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"4096", 4096},
		{"0x400000", 0x400000},
		{"64KiB", 64 * 1024},
		{"4 MiB", 4 * 1024 * 1024},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, in := range []string{"", "-1", "lots"} {
		_, err := ParseSize(in)
		assert.Error(t, err, in)
	}
}

func TestRegions(t *testing.T) {
	regions, err := ParseRegions("0x20000:0x10000, 0x30000:64KiB")
	require.NoError(t, err)
	assert.Equal(t, []store.Region{
		{Offset: 0x20000, Size: 0x10000},
		{Offset: 0x30000, Size: 0x10000},
	}, regions)
	assert.Equal(t, "0x20000:0x10000,0x30000:0x10000", FormatRegions(regions))

	for _, in := range []string{"0x1000", "x:1", "1:y"} {
		_, err := ParseRegions(in)
		assert.Error(t, err, in)
	}
}

func TestParseHex(t *testing.T) {
	b, err := ParseHex("0xDE ad\nbe EF\n")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)

	_, err = ParseHex("abc")
	assert.Error(t, err)
}

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
}
