package nvram

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Header layout constants. All fields are little-endian u32.
//
//	0x00 magic
//	0x04 version
//	0x08 counter     commit generation, newest valid copy wins
//	0x0c len         payload length in bytes
//	0x10 crc32       IEEE CRC-32 over the payload
//	0x14 hdr_crc32   IEEE CRC-32 over bytes 0x00..0x14
const (
	// Magic identifies an nvram header.
	Magic = uint32(0xb32c41b4)
	// Version is the format version written by this package.
	Version = uint32(1)
	// HeaderLen is the fixed size of the prologue.
	HeaderLen = 24

	offMagic     = 0
	offVersion   = 4
	offCounter   = 8
	offLen       = 12
	offCRC       = 16
	offHeaderCRC = 20
)

// Header is the fixed-size prologue in front of every payload.
type Header struct {
	Magic     uint32
	Version   uint32
	Counter   uint32
	Len       uint32
	CRC32     uint32
	HeaderCRC uint32
}

// Validate parses and checks the prologue at the start of buf. regionSize is
// the size of the storage region the header was read from; the header plus
// the declared payload must fit inside it. Validate has no side effects.
func Validate(buf []byte, regionSize uint64) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, NewError(RetCTruncated, "header",
			fmt.Sprintf("have %d bytes, need %d", len(buf), HeaderLen))
	}

	hdr := Header{
		Magic:     binary.LittleEndian.Uint32(buf[offMagic:]),
		Version:   binary.LittleEndian.Uint32(buf[offVersion:]),
		Counter:   binary.LittleEndian.Uint32(buf[offCounter:]),
		Len:       binary.LittleEndian.Uint32(buf[offLen:]),
		CRC32:     binary.LittleEndian.Uint32(buf[offCRC:]),
		HeaderCRC: binary.LittleEndian.Uint32(buf[offHeaderCRC:]),
	}

	if hdr.Magic != Magic {
		return Header{}, NewError(RetCBadMagic, "magic",
			fmt.Sprintf("got 0x%08x, expecting 0x%08x", hdr.Magic, Magic))
	}

	if sum := crc32.ChecksumIEEE(buf[:offHeaderCRC]); sum != hdr.HeaderCRC {
		return Header{}, NewError(RetCChecksumMismatch, "hdr_crc32",
			fmt.Sprintf("stored 0x%08x, computed 0x%08x", hdr.HeaderCRC, sum))
	}

	if uint64(HeaderLen)+uint64(hdr.Len) > regionSize {
		return Header{}, NewError(RetCSizeExceeded, "len",
			fmt.Sprintf("header %d + payload %d exceeds region %d", HeaderLen, hdr.Len, regionSize))
	}

	return hdr, nil
}

// NewHeader builds the header describing payload at the given commit counter.
func NewHeader(payload []byte, counter uint32) Header {
	return Header{
		Magic:   Magic,
		Version: Version,
		Counter: counter,
		Len:     uint32(len(payload)),
		CRC32:   crc32.ChecksumIEEE(payload),
	}
}

// Marshal serializes the header and fills in the header checksum.
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderLen)
	binary.LittleEndian.PutUint32(buf[offMagic:], h.Magic)
	binary.LittleEndian.PutUint32(buf[offVersion:], h.Version)
	binary.LittleEndian.PutUint32(buf[offCounter:], h.Counter)
	binary.LittleEndian.PutUint32(buf[offLen:], h.Len)
	binary.LittleEndian.PutUint32(buf[offCRC:], h.CRC32)
	binary.LittleEndian.PutUint32(buf[offHeaderCRC:], crc32.ChecksumIEEE(buf[:offHeaderCRC]))
	return buf
}

// Newer reports whether counter a was committed after b, using serial number
// arithmetic so the comparison survives wrap-around.
func Newer(a, b uint32) bool {
	return int32(a-b) > 0
}
