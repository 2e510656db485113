package platform

import (
	"fmt"

	"github.com/ValentinKolb/nvboot/lib/decode"
	"github.com/ValentinKolb/nvboot/lib/device"
	"github.com/ValentinKolb/nvboot/lib/integrity"
	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/ValentinKolb/nvboot/lib/store"
	"github.com/ValentinKolb/nvboot/lib/store/nvstore"
	"github.com/dustin/go-humanize"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("platform")

// DefaultNVRAMRegion is the DRAM configuration region of boards that store
// it as a plain NVRAM image.
var DefaultNVRAMRegion = store.Region{Offset: 0x40000, Size: 0x10000}

// Options configures Load.
type Options struct {
	// Offset of the platform header on the device.
	Offset int64
	// Gate checks the blob before it is decoded.
	Gate integrity.Gate
	// Signature over the blob, required when Gate has a verifier.
	Signature *integrity.Signature
}

// DefaultOptions returns checksum-only options for the default offset.
func DefaultOptions() Options {
	return Options{Offset: DefaultOffset}
}

// Platform is a loaded platform image.
type Platform struct {
	Header Header             `json:"header" yaml:"header"`
	Timing *decode.DRAMTiming `json:"dram_timing" yaml:"dram_timing"`
	Blob   nvram.Header       `json:"-" yaml:"-"`
}

// Load reads the platform header at opts.Offset, reads the blob it points
// to, passes the blob through the integrity gate and only then decodes the
// DRAM timing record from it. Any failure is fatal to the boot attempt.
func Load(dev device.RawStore, opts Options) (*Platform, error) {
	buf, err := device.ReadRegion(dev, opts.Offset, HeaderSize)
	if err != nil {
		return nil, err
	}
	hdr, err := ParseHeader(buf)
	if err != nil {
		log.Errorf("platform_header corrupt: %v", err)
		return nil, err
	}
	if end := opts.Offset + int64(hdr.TotalSize); end > dev.Size() {
		return nil, nvram.NewError(nvram.RetCSizeExceeded, "total_size",
			fmt.Sprintf("image ends at 0x%x, device has 0x%x bytes", end, dev.Size()))
	}

	blob, err := device.ReadRegion(dev, opts.Offset+int64(hdr.BlobOffset), int(hdr.BlobSize))
	if err != nil {
		return nil, err
	}
	if err := opts.Gate.Check(blob, hdr.BlobCRC32, opts.Signature); err != nil {
		log.Errorf("dram_timing_info corrupt: %v", err)
		return nil, err
	}

	blobHdr, timing, err := DecodeBlob(blob)
	if err != nil {
		log.Errorf("dram_timing_info corrupt: %v", err)
		return nil, err
	}

	log.Infof("Platform: %s (%s blob)", hdr.Name, humanize.IBytes(uint64(hdr.BlobSize)))
	return &Platform{Header: hdr, Timing: timing, Blob: blobHdr}, nil
}

// DecodeBlob validates an NVRAM image held in a verified blob and decodes
// the DRAM timing record from it.
func DecodeBlob(blob []byte) (nvram.Header, *decode.DRAMTiming, error) {
	hdr, err := nvram.Validate(blob, uint64(len(blob)))
	if err != nil {
		return nvram.Header{}, nil, err
	}
	payload := blob[nvram.HeaderLen : nvram.HeaderLen+int(hdr.Len)]
	if err := integrity.VerifyChecksum(payload, hdr.CRC32); err != nil {
		return nvram.Header{}, nil, err
	}
	rng, err := nvram.NewRange(payload)
	if err != nil {
		return nvram.Header{}, nil, err
	}
	timing, err := decode.LoadDRAMTiming(rng)
	if err != nil {
		return nvram.Header{}, nil, err
	}
	return hdr, timing, nil
}

// LoadNVRAM decodes the DRAM timing record from a plain NVRAM region.
func LoadNVRAM(dev device.RawStore, r store.Region) (*decode.DRAMTiming, error) {
	_, rng, err := nvstore.Load(dev, r)
	if err != nil {
		log.Errorf("dram_timing: failed validating region at 0x%x: %v", r.Offset, err)
		return nil, err
	}
	return decode.LoadDRAMTiming(rng)
}
