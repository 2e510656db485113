package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/nvboot/cmd/boot"
	"github.com/ValentinKolb/nvboot/cmd/build"
	"github.com/ValentinKolb/nvboot/cmd/dram"
	"github.com/ValentinKolb/nvboot/cmd/kv"
	"github.com/ValentinKolb/nvboot/cmd/util"
	"github.com/ValentinKolb/nvboot/lib/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "nvboot",
		Short: "boot-time NVRAM configuration tool",
		Long: fmt.Sprintf(`nvboot (v%s)

Reads, writes and provisions the NVRAM key/value store of an embedded
boot flash. It validates store images, decodes the DRAM timing record,
checks platform blobs and drives the A/B root filesystem swap.`, Version),
		SilenceUsage:       true,
		PersistentPreRunE:  setupLogging,
		PersistentPostRunE: writeMetrics,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of nvboot",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nvboot v%s\n", Version)
		},
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			conf, err := util.GetBootConfig()
			if err != nil {
				return err
			}
			fmt.Print(conf.String())
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)
	cobra.EnableTraverseRunHooks = true

	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(boot.BootCmd)
	RootCmd.AddCommand(dram.DRAMCmd)
	RootCmd.AddCommand(build.BuildCmd)
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(configCmd)

	util.SetupDeviceFlags(configCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("Log level (debug, info, warn, error)"))
	key = "format"
	RootCmd.PersistentFlags().String(key, "yaml", util.WrapString("Output format of structured results (json, yaml)"))
	key = "metrics"
	RootCmd.PersistentFlags().Bool(key, false, util.WrapString("Print the collected metrics in Prometheus format after the command"))
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	return common.InitLoggers(viper.GetString("log-level"))
}

func writeMetrics(_ *cobra.Command, _ []string) error {
	if viper.GetBool("metrics") {
		metrics.WritePrometheus(os.Stdout, false)
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
