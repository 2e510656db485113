package swap

import (
	"fmt"

	"github.com/ValentinKolb/nvboot/lib/decode"
	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/ValentinKolb/nvboot/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/siderolabs/go-pointer"
)

var log = logger.GetLogger("swap")

// Options configures Run.
type Options struct {
	MaxAttempts  uint64 // Boots granted to a swap target (0 = MaxAttempts)
	DefaultLabel string // Label used after an invalid state ("" = DefaultLabel)
}

// Result is what the image loader needs to boot.
type Result struct {
	Plan `yaml:",inline"`
	// FITConf is the optional FIT configuration name, nil when unset.
	FITConf *string `json:"fit_conf,omitempty" yaml:"fit_conf,omitempty"`
}

// Run reads the boot state from s, applies the transition and commits the
// store. It writes all three keys and commits even when nothing changed. A
// failed commit is returned with code RetCCommitFailed; the caller must not
// boot in that case.
func Run(s store.IStore, opts Options) (Result, error) {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = MaxAttempts
	}
	if opts.DefaultLabel == "" {
		opts.DefaultLabel = DefaultLabel
	}

	rng, err := s.Range()
	if err != nil {
		return Result{}, err
	}

	in := Inputs{
		Active:   readString(rng, KeyBootPart),
		Swap:     readString(rng, KeyBootSwap),
		Attempts: readAttempts(rng),
	}
	state := Derive(in, opts.MaxAttempts)
	plan := Transition(state, in, opts.DefaultLabel)
	logPlan(in, plan)
	metrics.GetOrCreateCounter(fmt.Sprintf(`nvboot_swap_state_total{state=%q}`, state.String())).Inc()

	if err := apply(s, plan.Next); err != nil {
		return Result{}, err
	}

	if err := s.Commit(); err != nil {
		log.Errorf("BOOT: failed committing nvram: %v", err)
		if nvram.Code(err) != nvram.RetCCommitFailed {
			err = nvram.WrapError(nvram.RetCCommitFailed, "commit", err)
		}
		return Result{}, err
	}

	return Result{Plan: plan, FITConf: readString(rng, KeyFITConf)}, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// readString decodes a string key. A value that fails to decode is treated
// as absent so it can never be booted.
func readString(rng nvram.Range, key string) *string {
	s, err := decode.String(rng, key)
	if err != nil {
		if nvram.Code(err) != nvram.RetCNotFound {
			log.Warningf("BOOT: ignoring %s: %v", key, err)
		}
		return nil
	}
	return &s
}

// readAttempts is readString for the attempt counter, except that a present
// counter which fails to decode is returned as an empty string. Derive then
// sees an unparsable counter and resets instead of restarting the swap.
func readAttempts(rng nvram.Range) *string {
	s, err := decode.String(rng, KeyBootAttempts)
	switch {
	case err == nil:
		return &s
	case nvram.Code(err) == nvram.RetCNotFound:
		return nil
	default:
		log.Warningf("BOOT: %s unreadable: %v", KeyBootAttempts, err)
		return pointer.To("")
	}
}

func apply(s store.IStore, next Inputs) error {
	for _, kv := range []struct {
		key   string
		value *string
	}{
		{KeyBootPart, next.Active},
		{KeyBootSwap, next.Swap},
		{KeyBootAttempts, next.Attempts},
	} {
		var err error
		if kv.value == nil {
			err = s.Delete(kv.key)
		} else {
			err = s.Set(kv.key, decode.EncodeString(*kv.value))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func logPlan(in Inputs, plan Plan) {
	switch plan.State {
	case StateNormal:
		log.Infof("BOOT: normal boot")
	case StateInit:
		log.Infof("BOOT: root swap initiated")
	case StateOngoing:
		log.Infof("BOOT: root swap ongoing: attempt: %s", *plan.Next.Attempts)
	case StateFailed:
		log.Warningf("BOOT: root swap failed: rollback from %s to %s", *in.Swap, *in.Active)
	case StateRollbackDone:
		log.Infof("BOOT: root swap rollback has occurred")
	case StateInvalid:
		log.Warningf("BOOT: root swap invalid state, reset to defaults")
	}
	log.Infof("BOOT: selected %q", plan.Label)
}
