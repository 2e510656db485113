// Package device defines the raw storage collaborator beneath the NVRAM store.
//
// A RawStore is a fixed-size byte array with offset-addressed reads and writes
// and an explicit Sync. The store layer above decides what goes where; a device
// never interprets the bytes it holds.
//
// Implementations:
//
//	- File (engines/file): backed by an image file or a block device node.
//	  Used by the CLI and for persistent fixtures.
//
//	- Memory (engines/mem): a sparse in-memory device. Pages that were never
//	  written read back as 0xFF like erased flash.
//
// The testing sub-package carries a conformance suite run against every engine
// and a fault-injecting wrapper that simulates power loss in the middle of a
// write.
package device
