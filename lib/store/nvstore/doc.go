// Package nvstore implements store.IStore on a raw device with two copies of
// the store image.
//
// On-Device Layout:
//
//	region 0: [Header][Entry]*   erased space ...
//	region 1: [Header][Entry]*   erased space ...
//
// Each header carries a commit counter. Open validates both regions (header
// checksum, payload checksum, record framing) and serves the valid image with
// the newer counter; counters compare with serial number arithmetic, so they
// may wrap.
//
// Commit never touches the region holding the newest image. It invalidates
// the other region's header, writes the payload, then writes the new header,
// syncing after each step. A power cut at any point leaves that region
// invalid and the next Open reads the previous image unchanged.
//
// Load validates a single region and is also used for read-only images such
// as the DRAM configuration region.
package nvstore
