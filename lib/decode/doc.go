// Package decode turns raw NVRAM values into typed configuration.
//
// Every accessor takes a validated nvram.Range and a key, looks the key up by
// linear scan (first match wins) and decodes the value into one of four shapes:
//
//   - String: a value with exactly one trailing terminator.
//   - U32Array: 4-byte little-endian integers, length a positive multiple of 4.
//   - ConfigPairs: (address, value) records, length a positive multiple of 8.
//   - SpeedPoints: a list of descriptors stored under prefix_0, prefix_1, ...
//     Each holds a rate and a firmware type followed by config pairs.
//
// Decode failures are returned to the caller with the key they concern; this
// package never decides whether a failure is fatal.
//
// LoadDRAMTiming combines the accessors into the DRAM timing record consumed by
// the DRAM initializer. The Encode* functions are the inverse and are used by
// the provisioning tool.
package decode
