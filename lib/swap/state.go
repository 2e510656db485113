package swap

import (
	"strconv"

	"github.com/siderolabs/go-pointer"
)

// Well-known keys of the boot state.
const (
	KeyBootPart     = "SYS_BOOT_PART"     // active rootfs label
	KeyBootSwap     = "SYS_BOOT_SWAP"     // rootfs label to swap to
	KeyBootAttempts = "SYS_BOOT_ATTEMPTS" // boot attempts of the swap target, decimal
	KeyFITConf      = "SYS_FIT_CONF"      // optional FIT configuration name

	// DefaultLabel is the label both slots are reset to from an invalid state.
	DefaultLabel = "rootfs1"
	// MaxAttempts is the number of boots granted to a swap target before
	// rolling back.
	MaxAttempts = 3
)

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

// State is the rollback state derived from the persisted keys. It is never
// stored itself.
type State uint8

const (
	StateNormal       State = iota // Active and swap agree, no attempt running.
	StateInit                      // A swap was requested and not yet tried.
	StateOngoing                   // The swap target is being tried.
	StateFailed                    // The swap target used up its attempts.
	StateRollbackDone              // A rollback happened on an earlier boot.
	StateInvalid                   // Keys missing or unparsable.
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateInit:
		return "INIT"
	case StateOngoing:
		return "ONGOING"
	case StateFailed:
		return "FAILED"
	case StateRollbackDone:
		return "ROLLBACK_DONE"
	case StateInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the state by its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Inputs are the three persisted keys. nil means absent.
type Inputs struct {
	Active   *string `json:"active" yaml:"active"`
	Swap     *string `json:"swap" yaml:"swap"`
	Attempts *string `json:"attempts" yaml:"attempts"`
}

// Plan is the outcome of one transition: the values all three keys take
// before the commit, and the label to boot.
type Plan struct {
	State State  `json:"state" yaml:"state"`
	Next  Inputs `json:"next" yaml:"next"`
	Label string `json:"label" yaml:"label"`
}

// --------------------------------------------------------------------------
// Pure functions
// --------------------------------------------------------------------------

// Derive computes the state of in. The rules are evaluated in order; the
// first one that applies decides.
func Derive(in Inputs, maxAttempts uint64) State {
	if in.Active == nil || in.Swap == nil {
		return StateInvalid
	}

	equal := *in.Active == *in.Swap
	switch {
	case equal && in.Attempts == nil:
		return StateNormal
	case equal:
		return StateRollbackDone
	case in.Attempts == nil:
		return StateInit
	}

	attempts, ok := parseAttempts(*in.Attempts)
	switch {
	case !ok:
		return StateInvalid
	case attempts < maxAttempts:
		return StateOngoing
	default:
		return StateFailed
	}
}

// Transition returns the mutation and boot label for state. state must be
// the result of Derive on the same inputs.
func Transition(state State, in Inputs, defaultLabel string) Plan {
	next := Inputs{
		Active:   copyOf(in.Active),
		Swap:     copyOf(in.Swap),
		Attempts: copyOf(in.Attempts),
	}
	plan := Plan{State: state, Next: next}

	switch state {
	case StateNormal, StateRollbackDone:
		plan.Label = *in.Active
	case StateInit:
		plan.Next.Attempts = pointer.To("1")
		plan.Label = *in.Swap
	case StateOngoing:
		attempts, _ := parseAttempts(*in.Attempts)
		plan.Next.Attempts = pointer.To(strconv.FormatUint(attempts+1, 10))
		plan.Label = *in.Swap
	case StateFailed:
		plan.Next.Swap = pointer.To(*in.Active)
		plan.Next.Attempts = nil
		plan.Label = *in.Active
	default:
		plan.Next = Inputs{
			Active: pointer.To(defaultLabel),
			Swap:   pointer.To(defaultLabel),
		}
		plan.Label = defaultLabel
	}
	return plan
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseAttempts accepts a non-negative decimal integer.
func parseAttempts(s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == ^uint64(0) {
		return 0, false
	}
	return n, true
}

func copyOf(s *string) *string {
	if s == nil {
		return nil
	}
	return pointer.To(*s)
}
