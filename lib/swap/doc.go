// Package swap implements the A/B rootfs update and rollback state machine.
//
// The boot state lives in three keys of the NVRAM store: the active label, the
// label to swap to and the number of boot attempts of the swap target. The
// package keeps the decision logic pure:
//
//   - Derive maps the three keys to a State.
//   - Transition maps a State to the new key values and the label to boot.
//
// Run wires both to a store.IStore: it reads the keys, applies the plan and
// commits. Values that fail to decode count as absent, which resets both
// labels to the default rather than booting something unvalidated.
//
// State table (MaxAttempts = 3):
//
//	active  swap     attempts  state          mutation                  boot
//	absent  any      any       INVALID        both := default, clear    default
//	A       A        absent    NORMAL         none                      A
//	A       A        present   ROLLBACK_DONE  none                      A
//	A       B        absent    INIT           attempts := 1             B
//	A       B        n < 3     ONGOING        attempts := n+1           B
//	A       B        n >= 3    FAILED         swap := A, clear          A
//	A       B        garbage   INVALID        both := default, clear    default
package swap
