package nvstore

import (
	"fmt"

	"github.com/ValentinKolb/nvboot/lib/device"
	"github.com/ValentinKolb/nvboot/lib/integrity"
	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/ValentinKolb/nvboot/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

var (
	commitsTotal       = metrics.NewCounter("nvboot_store_commits_total")
	commitFailures     = metrics.NewCounter("nvboot_store_commit_failures_total")
	regionInvalidTotal = metrics.NewCounter("nvboot_store_region_invalid_total")
)

// --------------------------------------------------------------------------
// Layout
// --------------------------------------------------------------------------

// Layout places the two copies of the store on a device.
type Layout struct {
	Regions [2]store.Region
}

// DefaultLayout returns two 64 KiB regions at 0x20000 and 0x30000.
func DefaultLayout() Layout {
	return Layout{Regions: [2]store.Region{
		{Offset: 0x20000, Size: 0x10000},
		{Offset: 0x30000, Size: 0x10000},
	}}
}

// Check verifies that both regions fit the device, can hold a header and do
// not overlap.
func (l Layout) Check(deviceSize int64) error {
	for i, r := range l.Regions {
		if r.Offset < 0 || r.Size < nvram.HeaderLen || r.End() > deviceSize {
			return nvram.NewError(nvram.RetCSizeExceeded, fmt.Sprintf("region %d", i),
				fmt.Sprintf("[0x%x, 0x%x) does not fit device of 0x%x bytes", r.Offset, r.End(), deviceSize))
		}
	}
	if l.Regions[0].Overlaps(l.Regions[1]) {
		return nvram.NewError(nvram.RetCSizeExceeded, "regions", "regions overlap")
	}
	return nil
}

// --------------------------------------------------------------------------
// Single region loader
// --------------------------------------------------------------------------

// Load reads and fully validates the store image in one region: header,
// payload checksum and record framing. The returned Range owns its payload.
func Load(dev device.RawStore, r store.Region) (nvram.Header, nvram.Range, error) {
	buf, err := device.ReadRegion(dev, r.Offset, nvram.HeaderLen)
	if err != nil {
		return nvram.Header{}, nvram.Range{}, err
	}
	hdr, err := nvram.Validate(buf, uint64(r.Size))
	if err != nil {
		return nvram.Header{}, nvram.Range{}, err
	}
	payload, err := device.ReadRegion(dev, r.Offset+nvram.HeaderLen, int(hdr.Len))
	if err != nil {
		return nvram.Header{}, nvram.Range{}, err
	}
	if err := integrity.VerifyChecksum(payload, hdr.CRC32); err != nil {
		return nvram.Header{}, nvram.Range{}, err
	}
	rng, err := nvram.NewRange(payload)
	if err != nil {
		return nvram.Header{}, nvram.Range{}, err
	}
	return hdr, rng, nil
}

// --------------------------------------------------------------------------
// Dual region store
// --------------------------------------------------------------------------

type storeImpl struct {
	dev     device.RawStore
	layout  Layout
	list    *store.EntryList
	active  int // index of the region holding the newest image, -1 = none
	counter uint32
}

// Open loads both regions of layout and returns a store over the newest
// valid image. When neither region holds a valid image the store starts
// empty, unless a region could not be read at all: storage failures are
// fatal and never mistaken for a fresh device.
func Open(dev device.RawStore, layout Layout) (store.IStore, error) {
	if err := layout.Check(dev.Size()); err != nil {
		return nil, err
	}

	type loaded struct {
		hdr nvram.Header
		rng nvram.Range
	}
	var (
		images [2]*loaded
		merr   *multierror.Error
		ioFail bool
	)

	for i, r := range layout.Regions {
		hdr, rng, err := Load(dev, r)
		if err != nil {
			regionInvalidTotal.Inc()
			log.Warningf("region %d at 0x%x invalid: %v", i, r.Offset, err)
			merr = multierror.Append(merr, fmt.Errorf("region %d: %w", i, err))
			if nvram.Code(err) == nvram.RetCStorageIO {
				ioFail = true
			}
			continue
		}
		images[i] = &loaded{hdr: hdr, rng: rng}
	}

	s := &storeImpl{dev: dev, layout: layout, active: -1}

	switch {
	case images[0] != nil && images[1] != nil:
		s.active = 0
		if nvram.Newer(images[1].hdr.Counter, images[0].hdr.Counter) {
			s.active = 1
		}
	case images[0] != nil:
		s.active = 0
	case images[1] != nil:
		s.active = 1
	case ioFail:
		return nil, merr.ErrorOrNil()
	default:
		log.Infof("no valid image found, starting with an empty store")
		s.list = &store.EntryList{}
		return s, nil
	}

	img := images[s.active]
	s.counter = img.hdr.Counter
	s.list = store.NewEntryList(img.rng)
	if dups := img.rng.Duplicates(); len(dups) > 0 {
		log.Debugf("duplicate keys, first occurrence wins: %v", dups)
	}
	log.Infof("loaded region %d (counter %d, %d entries, %s)",
		s.active, s.counter, s.list.Len(), humanize.IBytes(uint64(img.hdr.Len)))
	return s, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.IStore)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	val, ok := s.list.Get(key)
	return val, ok, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	_, ok := s.list.Get(key)
	return ok, nil
}

func (s *storeImpl) Set(key string, value []byte) error {
	if err := store.CheckKey(key); err != nil {
		return err
	}
	s.list.Set(key, value)
	return nil
}

func (s *storeImpl) Delete(key string) error {
	s.list.Delete(key)
	return nil
}

func (s *storeImpl) Range() (nvram.Range, error) {
	return s.list.Range()
}

// Commit writes the working set into the region not holding the newest image:
// the old header is invalidated first, then the payload and finally the new
// header are written, each followed by a sync. An interrupted commit leaves a
// region that fails validation, so the next Open falls back to the previous
// image in full.
func (s *storeImpl) Commit() error {
	target := 0
	if s.active == 0 {
		target = 1
	}
	region := s.layout.Regions[target]
	counter := s.counter + 1

	payload := s.list.Payload()
	if int64(nvram.HeaderLen+len(payload)) > region.Size {
		return s.fail(target, nvram.NewError(nvram.RetCSizeExceeded, "payload",
			fmt.Sprintf("%s does not fit region of %s",
				humanize.IBytes(uint64(nvram.HeaderLen+len(payload))), humanize.IBytes(uint64(region.Size)))))
	}
	hdr := nvram.NewHeader(payload, counter)

	steps := []struct {
		data []byte
		off  int64
	}{
		{make([]byte, nvram.HeaderLen), region.Offset},
		{payload, region.Offset + nvram.HeaderLen},
		{hdr.Marshal(), region.Offset},
	}
	for _, step := range steps {
		if _, err := s.dev.WriteAt(step.data, step.off); err != nil {
			return s.fail(target, err)
		}
		if err := s.dev.Sync(); err != nil {
			return s.fail(target, err)
		}
	}

	s.active = target
	s.counter = counter
	s.list.MarkClean()
	commitsTotal.Inc()
	log.Infof("committed %d entries (%s) to region %d, counter %d",
		s.list.Len(), humanize.IBytes(uint64(len(payload))), target, counter)
	return nil
}

func (s *storeImpl) GetInfo() (store.Info, error) {
	rng, err := s.list.Range()
	if err != nil {
		return store.Info{}, err
	}
	devInfo := s.dev.Info()
	return store.Info{
		Entries:      s.list.Len(),
		PayloadBytes: len(rng.Payload()),
		Duplicates:   rng.Duplicates(),
		Dirty:        s.list.Dirty(),
		Counter:      s.counter,
		ActiveRegion: s.active,
		Regions:      s.layout.Regions[:],
		Device:       &devInfo,
	}, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (s *storeImpl) fail(target int, err error) error {
	commitFailures.Inc()
	log.Errorf("commit to region %d failed: %v", target, err)
	return nvram.WrapError(nvram.RetCCommitFailed, fmt.Sprintf("region %d", target), err)
}
