package kv

import (
	"github.com/ValentinKolb/nvboot/cmd/util"
	"github.com/ValentinKolb/nvboot/lib/common"
	"github.com/ValentinKolb/nvboot/lib/store"
	"github.com/spf13/cobra"
)

var (
	kvStore store.IStore
	conf    *common.BootConfig
	closeFn = func() {}

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key/value store operations",
		PersistentPreRunE:  setupKVStore,
		PersistentPostRunE: closeKVStore,
	}
)

func init() {
	// Add device flags to the KV command
	util.SetupDeviceFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(listCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVStore opens the store on the configured device
func setupKVStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	if conf, err = util.GetBootConfig(); err != nil {
		return err
	}

	readOnly := cmd.Annotations["readonly"] == "true"
	kvStore, closeFn, err = util.OpenStore(conf, readOnly)
	return err
}

func closeKVStore(_ *cobra.Command, _ []string) error {
	if closeFn != nil {
		closeFn()
	}
	return nil
}
