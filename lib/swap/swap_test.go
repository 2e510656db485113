package swap

import (
	"testing"

	"github.com/ValentinKolb/nvboot/lib/decode"
	"github.com/ValentinKolb/nvboot/lib/device/engines/mem"
	devtesting "github.com/ValentinKolb/nvboot/lib/device/testing"
	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/ValentinKolb/nvboot/lib/store"
	"github.com/ValentinKolb/nvboot/lib/store/lstore"
	"github.com/ValentinKolb/nvboot/lib/store/nvstore"
	"github.com/siderolabs/go-pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func in(active, swap, attempts *string) Inputs {
	return Inputs{Active: active, Swap: swap, Attempts: attempts}
}

var (
	rootfs1 = pointer.To("rootfs1")
	rootfs2 = pointer.To("rootfs2")
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name  string
		in    Inputs
		state State
	}{
		{"active missing", in(nil, rootfs1, nil), StateInvalid},
		{"swap missing", in(rootfs1, nil, nil), StateInvalid},
		{"both missing", in(nil, nil, pointer.To("1")), StateInvalid},
		{"normal", in(rootfs1, rootfs1, nil), StateNormal},
		{"rollback done", in(rootfs1, rootfs1, pointer.To("3")), StateRollbackDone},
		{"rollback done ignores garbage", in(rootfs1, rootfs1, pointer.To("x")), StateRollbackDone},
		{"init", in(rootfs1, rootfs2, nil), StateInit},
		{"ongoing 0", in(rootfs1, rootfs2, pointer.To("0")), StateOngoing},
		{"ongoing 2", in(rootfs1, rootfs2, pointer.To("2")), StateOngoing},
		{"failed 3", in(rootfs1, rootfs2, pointer.To("3")), StateFailed},
		{"failed 17", in(rootfs1, rootfs2, pointer.To("17")), StateFailed},
		{"garbage", in(rootfs1, rootfs2, pointer.To("two")), StateInvalid},
		{"negative", in(rootfs1, rootfs2, pointer.To("-1")), StateInvalid},
		{"empty", in(rootfs1, rootfs2, pointer.To("")), StateInvalid},
		{"overflow", in(rootfs1, rootfs2, pointer.To("18446744073709551616")), StateInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.state, Derive(tt.in, MaxAttempts))
		})
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name  string
		in    Inputs
		state State
		next  Inputs
		label string
	}{
		{
			name:  "normal",
			in:    in(rootfs1, rootfs1, nil),
			state: StateNormal,
			next:  in(rootfs1, rootfs1, nil),
			label: "rootfs1",
		},
		{
			name:  "init",
			in:    in(rootfs1, rootfs2, nil),
			state: StateInit,
			next:  in(rootfs1, rootfs2, pointer.To("1")),
			label: "rootfs2",
		},
		{
			name:  "ongoing",
			in:    in(rootfs1, rootfs2, pointer.To("2")),
			state: StateOngoing,
			next:  in(rootfs1, rootfs2, pointer.To("3")),
			label: "rootfs2",
		},
		{
			name:  "failed",
			in:    in(rootfs1, rootfs2, pointer.To("3")),
			state: StateFailed,
			next:  in(rootfs1, rootfs1, nil),
			label: "rootfs1",
		},
		{
			name:  "rollback done",
			in:    in(rootfs1, rootfs1, pointer.To("3")),
			state: StateRollbackDone,
			next:  in(rootfs1, rootfs1, pointer.To("3")),
			label: "rootfs1",
		},
		{
			name:  "invalid",
			in:    in(nil, rootfs2, pointer.To("2")),
			state: StateInvalid,
			next:  in(rootfs1, rootfs1, nil),
			label: "rootfs1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := Derive(tt.in, MaxAttempts)
			require.Equal(t, tt.state, state)

			plan := Transition(state, tt.in, DefaultLabel)
			assert.Equal(t, tt.state, plan.State)
			assert.Equal(t, tt.next, plan.Next)
			assert.Equal(t, tt.label, plan.Label)
		})
	}
}

func TestTransitionDoesNotAliasInputs(t *testing.T) {
	active := "rootfs1"
	input := in(&active, rootfs2, nil)
	plan := Transition(StateInit, input, DefaultLabel)
	active = "changed"
	assert.Equal(t, "rootfs1", *plan.Next.Active)
}

// --------------------------------------------------------------------------
// Run
// --------------------------------------------------------------------------

func newStore(kv map[string]string) store.IStore {
	var entries []nvram.Entry
	for k, v := range kv {
		entries = append(entries, nvram.NewEntry(k, decode.EncodeString(v)))
	}
	return lstore.NewLocalStore(entries...)
}

func getKey(t *testing.T, s store.IStore, key string) *string {
	t.Helper()
	rng, err := s.Range()
	require.NoError(t, err)
	v, err := decode.String(rng, key)
	if err != nil {
		require.ErrorIs(t, err, nvram.ErrNotFound)
		return nil
	}
	return &v
}

func TestRunSwapLifecycle(t *testing.T) {
	s := newStore(map[string]string{
		KeyBootPart: "rootfs1",
		KeyBootSwap: "rootfs2",
	})

	steps := []struct {
		state    State
		label    string
		attempts *string
		swap     string
	}{
		{StateInit, "rootfs2", pointer.To("1"), "rootfs2"},
		{StateOngoing, "rootfs2", pointer.To("2"), "rootfs2"},
		{StateOngoing, "rootfs2", pointer.To("3"), "rootfs2"},
		{StateFailed, "rootfs1", nil, "rootfs1"},
		{StateNormal, "rootfs1", nil, "rootfs1"},
	}

	for i, step := range steps {
		res, err := Run(s, Options{})
		require.NoError(t, err, "boot %d", i)
		assert.Equal(t, step.state, res.State, "boot %d", i)
		assert.Equal(t, step.label, res.Label, "boot %d", i)
		assert.Equal(t, step.attempts, getKey(t, s, KeyBootAttempts), "boot %d", i)
		assert.Equal(t, step.swap, *getKey(t, s, KeyBootSwap), "boot %d", i)
		assert.Equal(t, "rootfs1", *getKey(t, s, KeyBootPart), "boot %d", i)
	}
}

func TestRunInvalidResets(t *testing.T) {
	tests := []struct {
		name    string
		entries []nvram.Entry
	}{
		{"empty store", nil},
		{"swap missing", []nvram.Entry{
			nvram.NewEntry(KeyBootPart, decode.EncodeString("rootfs2")),
		}},
		{"unterminated label", []nvram.Entry{
			nvram.NewEntry(KeyBootPart, []byte("rootfs2")),
			nvram.NewEntry(KeyBootSwap, decode.EncodeString("rootfs2")),
		}},
		{"garbage attempts", []nvram.Entry{
			nvram.NewEntry(KeyBootPart, decode.EncodeString("rootfs1")),
			nvram.NewEntry(KeyBootSwap, decode.EncodeString("rootfs2")),
			nvram.NewEntry(KeyBootAttempts, decode.EncodeString("lots")),
		}},
		{"unterminated attempts", []nvram.Entry{
			nvram.NewEntry(KeyBootPart, decode.EncodeString("rootfs1")),
			nvram.NewEntry(KeyBootSwap, decode.EncodeString("rootfs2")),
			nvram.NewEntry(KeyBootAttempts, []byte("3")),
		}},
		{"empty attempts", []nvram.Entry{
			nvram.NewEntry(KeyBootPart, decode.EncodeString("rootfs1")),
			nvram.NewEntry(KeyBootSwap, decode.EncodeString("rootfs2")),
			nvram.NewEntry(KeyBootAttempts, nil),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := lstore.NewLocalStore(tt.entries...)
			res, err := Run(s, Options{})
			require.NoError(t, err)
			assert.Equal(t, StateInvalid, res.State)
			assert.Equal(t, DefaultLabel, res.Label)
			assert.Equal(t, DefaultLabel, *getKey(t, s, KeyBootPart))
			assert.Equal(t, DefaultLabel, *getKey(t, s, KeyBootSwap))
			assert.Nil(t, getKey(t, s, KeyBootAttempts))
		})
	}
}

func TestRunOptions(t *testing.T) {
	s := newStore(map[string]string{
		KeyBootPart:     "a",
		KeyBootSwap:     "b",
		KeyBootAttempts: "3",
	})
	res, err := Run(s, Options{MaxAttempts: 5})
	require.NoError(t, err)
	assert.Equal(t, StateOngoing, res.State)
	assert.Equal(t, "4", *getKey(t, s, KeyBootAttempts))

	res, err = Run(newStore(nil), Options{DefaultLabel: "rescue"})
	require.NoError(t, err)
	assert.Equal(t, "rescue", res.Label)
}

func TestRunFITConf(t *testing.T) {
	s := newStore(map[string]string{
		KeyBootPart: "rootfs1",
		KeyBootSwap: "rootfs1",
		KeyFITConf:  "conf-imx8mm-sdb8000.dtb",
	})
	res, err := Run(s, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.FITConf)
	assert.Equal(t, "conf-imx8mm-sdb8000.dtb", *res.FITConf)
}

func TestRunPersistsAcrossReopen(t *testing.T) {
	dev := mem.NewMemDevice(0x40000, nil)

	s, err := nvstore.Open(dev, nvstore.DefaultLayout())
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyBootPart, decode.EncodeString("rootfs1")))
	require.NoError(t, s.Set(KeyBootSwap, decode.EncodeString("rootfs2")))
	require.NoError(t, s.Commit())

	for _, want := range []string{"1", "2", "3"} {
		s, err = nvstore.Open(dev, nvstore.DefaultLayout())
		require.NoError(t, err)
		res, err := Run(s, Options{})
		require.NoError(t, err)
		assert.Equal(t, "rootfs2", res.Label)

		s, err = nvstore.Open(dev, nvstore.DefaultLayout())
		require.NoError(t, err)
		assert.Equal(t, want, *getKey(t, s, KeyBootAttempts))
	}
}

func TestRunCommitFailure(t *testing.T) {
	dev := mem.NewMemDevice(0x40000, nil)
	faulty := devtesting.NewFaultyDevice(dev)

	s, err := nvstore.Open(faulty, nvstore.DefaultLayout())
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyBootPart, decode.EncodeString("rootfs1")))
	require.NoError(t, s.Set(KeyBootSwap, decode.EncodeString("rootfs2")))
	require.NoError(t, s.Commit())

	faulty.FailWriteAfter(30)
	res, err := Run(s, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, nvram.ErrCommitFailed)
	assert.Empty(t, res.Label, "no label is handed out after a failed commit")

	// the next boot still sees the state before the failed attempt
	reopened, err := nvstore.Open(dev, nvstore.DefaultLayout())
	require.NoError(t, err)
	assert.Nil(t, getKey(t, reopened, KeyBootAttempts))
}

// --------------------------------------------------------------------------
// Boot arguments
// --------------------------------------------------------------------------

func TestBootArgument(t *testing.T) {
	assert.Equal(t, []string{"43200000"}, BootArgument(DefaultFITAddr, nil))
	assert.Equal(t, []string{"43200000"}, BootArgument(DefaultFITAddr, pointer.To("")))
	assert.Equal(t,
		[]string{"43200000#conf-1", "43200000"},
		BootArgument(DefaultFITAddr, pointer.To("conf-1")))
}

func TestRootCmdline(t *testing.T) {
	assert.Equal(t, "root=PARTUUID=1234-abcd", RootCmdline("1234-abcd"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ROLLBACK_DONE", StateRollbackDone.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}

func TestStateMarshalText(t *testing.T) {
	b, err := StateFailed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "FAILED", string(b))
}
