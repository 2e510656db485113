package boot

import (
	"fmt"

	"github.com/ValentinKolb/nvboot/cmd/util"
	"github.com/ValentinKolb/nvboot/lib/store"
	"github.com/ValentinKolb/nvboot/lib/store/lstore"
	"github.com/ValentinKolb/nvboot/lib/swap"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// BootCmd runs the root swap state machine on the configured device
	BootCmd = &cobra.Command{
		Use:   "boot",
		Short: "Runs the A/B root swap and prints the boot command",
		Long: util.WrapString(`Reads SYS_BOOT_PART, SYS_BOOT_SWAP and
SYS_BOOT_ATTEMPTS from the store, applies one step of the root swap state
machine, commits the store and prints the label to boot together with the
bootm arguments. Nothing is printed to boot when the commit fails.`),
		Args:    cobra.NoArgs,
		PreRunE: util.PreRunBindFlags,
		RunE:    runBoot,
	}
)

// bootOutput is the structured result of a boot run
type bootOutput struct {
	swap.Result `yaml:",inline"`
	DryRun      bool     `json:"dry_run" yaml:"dry_run"`
	BootM       []string `json:"bootm" yaml:"bootm"`
	Cmdline     string   `json:"cmdline,omitempty" yaml:"cmdline,omitempty"`
}

func init() {
	util.SetupDeviceFlags(BootCmd)

	key := "dry-run"
	BootCmd.Flags().Bool(key, false, util.WrapString("Run the state machine on a copy of the store and leave the device untouched"))
	key = "part-uuid"
	BootCmd.Flags().String(key, "", util.WrapString("PARTUUID of the selected root partition, used to print the kernel command line"))
}

func runBoot(_ *cobra.Command, _ []string) error {
	conf, err := util.GetBootConfig()
	if err != nil {
		return err
	}
	dryRun := viper.GetBool("dry-run")

	s, closeFn, err := util.OpenStore(conf, dryRun)
	if err != nil {
		return err
	}
	defer closeFn()

	if dryRun {
		if s, err = scratchCopy(s); err != nil {
			return err
		}
	}

	res, err := swap.Run(s, swap.Options{
		MaxAttempts:  conf.MaxAttempts,
		DefaultLabel: conf.DefaultLabel,
	})
	if err != nil {
		return fmt.Errorf("refusing to boot: %w", err)
	}

	out := bootOutput{
		Result: res,
		DryRun: dryRun,
		BootM:  swap.BootArgument(conf.FITAddr, res.FITConf),
	}
	if uuid := viper.GetString("part-uuid"); uuid != "" {
		out.Cmdline = swap.RootCmdline(uuid)
	}

	serializer, err := util.GetSerializer()
	if err != nil {
		return err
	}
	b, err := serializer.Serialize(out)
	if err != nil {
		return err
	}
	fmt.Print(string(b))
	return nil
}

// scratchCopy returns an in-memory store holding the working set of s
func scratchCopy(s store.IStore) (store.IStore, error) {
	rng, err := s.Range()
	if err != nil {
		return nil, err
	}
	return lstore.NewLocalStoreFrom(rng), nil
}
