// Package platform loads the board's DRAM configuration from boot flash.
//
// Two layouts are supported. Boards with a platform header carry a 64 byte
// header that names the platform and points at a checksummed blob; the blob
// is an NVRAM image holding the DRAM keys. Other boards keep the same keys in
// a plain NVRAM region.
//
// Load order for the platform layout is fixed: parse the header, read the
// blob, run the integrity gate, and only then validate and decode the blob.
// Nothing read from an unverified blob is ever returned.
package platform
