package decode

import (
	"encoding/binary"
)

// --------------------------------------------------------------------------
// Encoders (inverse of the typed accessors)
// --------------------------------------------------------------------------

// EncodeString returns s followed by a single terminator.
func EncodeString(s string) []byte {
	result := make([]byte, len(s)+1)
	copy(result, s)
	return result
}

// EncodeU32Array packs values as 4-byte little-endian integers.
func EncodeU32Array(values []uint32) []byte {
	result := make([]byte, len(values)*u32Size)
	for i, v := range values {
		binary.LittleEndian.PutUint32(result[i*u32Size:], v)
	}
	return result
}

// EncodeConfigPairs packs pairs as consecutive 8-byte records.
func EncodeConfigPairs(cfg []ConfigPair) []byte {
	result := make([]byte, len(cfg)*pairSize)
	for i, p := range cfg {
		binary.LittleEndian.PutUint32(result[i*pairSize:], p.Addr)
		binary.LittleEndian.PutUint32(result[i*pairSize+4:], p.Value)
	}
	return result
}

// EncodeSpeedPoint packs rate and firmware type followed by the pairs.
func EncodeSpeedPoint(sp SpeedPoint) []byte {
	result := make([]byte, speedPointHeaderSize, speedPointHeaderSize+len(sp.Config)*pairSize)
	binary.LittleEndian.PutUint32(result[0:], sp.Rate)
	binary.LittleEndian.PutUint32(result[4:], sp.FWType)
	return append(result, EncodeConfigPairs(sp.Config)...)
}
