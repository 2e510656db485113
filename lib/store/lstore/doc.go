// Package lstore implements store.IStore entirely in memory.
//
// Commit only marks the working set clean and bumps a counter; nothing is
// persisted. The store is used where a key/value handle is needed without a
// device behind it: DRAM records decoded from a read-only blob, dry runs of
// the boot state machine, and tests.
//
// Usage Example:
//
//	s := lstore.NewLocalStore(
//		nvram.NewEntry("SYS_BOOT_PART", decode.EncodeString("rootfs1")),
//	)
//	value, exists, err := s.Get("SYS_BOOT_PART")
package lstore
