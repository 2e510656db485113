package platform

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/nvboot/lib/integrity"
	"github.com/ValentinKolb/nvboot/lib/nvram"
)

// Platform header layout, little-endian.
//
//	0x00 magic        "DRPH"
//	0x04 name         32 bytes, NUL padded
//	0x24 blob_offset  relative to the header
//	0x28 blob_size
//	0x2c blob_crc32   IEEE CRC-32 over the blob
//	0x30 total_size   header, blob and padding
//	0x34 reserved     12 bytes
const (
	// HeaderSize is the fixed size of the platform header.
	HeaderSize = 64
	// NameLen is the size of the name field.
	NameLen = 32
	// DefaultOffset is where the header lives on the boot flash.
	DefaultOffset = 0x3e0000

	offMagic      = 0x00
	offName       = 0x04
	offBlobOffset = 0x24
	offBlobSize   = 0x28
	offBlobCRC    = 0x2c
	offTotalSize  = 0x30
)

// Magic is "DRPH" read as a little-endian integer.
var Magic = binary.LittleEndian.Uint32([]byte("DRPH"))

// Header identifies a platform and locates its DRAM configuration blob.
type Header struct {
	Name       string `json:"name" yaml:"name"`
	BlobOffset uint32 `json:"blob_offset" yaml:"blob_offset"`
	BlobSize   uint32 `json:"blob_size" yaml:"blob_size"`
	BlobCRC32  uint32 `json:"blob_crc32" yaml:"blob_crc32"`
	TotalSize  uint32 `json:"total_size" yaml:"total_size"`
}

// ParseHeader decodes and checks the header at the start of buf. The blob
// must lie behind the header and inside the declared total size.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, nvram.NewError(nvram.RetCTruncated, "platform header",
			fmt.Sprintf("have %d bytes, need %d", len(buf), HeaderSize))
	}
	if magic := binary.LittleEndian.Uint32(buf[offMagic:]); magic != Magic {
		return Header{}, nvram.NewError(nvram.RetCBadMagic, "platform magic",
			fmt.Sprintf("got 0x%08x, expecting 0x%08x", magic, Magic))
	}

	name := buf[offName : offName+NameLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	h := Header{
		Name:       string(name),
		BlobOffset: binary.LittleEndian.Uint32(buf[offBlobOffset:]),
		BlobSize:   binary.LittleEndian.Uint32(buf[offBlobSize:]),
		BlobCRC32:  binary.LittleEndian.Uint32(buf[offBlobCRC:]),
		TotalSize:  binary.LittleEndian.Uint32(buf[offTotalSize:]),
	}

	if h.BlobOffset < HeaderSize {
		return Header{}, nvram.NewError(nvram.RetCSizeExceeded, "blob_offset",
			fmt.Sprintf("blob at 0x%x overlaps the header", h.BlobOffset))
	}
	if uint64(h.BlobOffset)+uint64(h.BlobSize) > uint64(h.TotalSize) {
		return Header{}, nvram.NewError(nvram.RetCSizeExceeded, "blob_size",
			fmt.Sprintf("blob [0x%x, 0x%x) exceeds total size 0x%x",
				h.BlobOffset, uint64(h.BlobOffset)+uint64(h.BlobSize), h.TotalSize))
	}
	return h, nil
}

// Marshal encodes the header. Names longer than NameLen-1 are cut so the
// field stays terminated.
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[offMagic:], Magic)
	name := h.Name
	if len(name) > NameLen-1 {
		name = name[:NameLen-1]
	}
	copy(buf[offName:], name)
	binary.LittleEndian.PutUint32(buf[offBlobOffset:], h.BlobOffset)
	binary.LittleEndian.PutUint32(buf[offBlobSize:], h.BlobSize)
	binary.LittleEndian.PutUint32(buf[offBlobCRC:], h.BlobCRC32)
	binary.LittleEndian.PutUint32(buf[offTotalSize:], h.TotalSize)
	return buf
}

// BuildImage returns a platform image with blob placed right behind the
// header.
func BuildImage(name string, blob []byte) []byte {
	h := Header{
		Name:       name,
		BlobOffset: HeaderSize,
		BlobSize:   uint32(len(blob)),
		BlobCRC32:  integrity.Checksum(blob),
		TotalSize:  uint32(HeaderSize + len(blob)),
	}
	return append(h.Marshal(), blob...)
}
