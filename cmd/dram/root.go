package dram

import (
	"fmt"

	"github.com/ValentinKolb/nvboot/cmd/util"
	"github.com/ValentinKolb/nvboot/lib/decode"
	"github.com/ValentinKolb/nvboot/lib/integrity"
	"github.com/ValentinKolb/nvboot/lib/platform"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logger.GetLogger("cmd")

var (
	// DRAMCmd loads the DRAM timing record
	DRAMCmd = &cobra.Command{
		Use:   "dram",
		Short: "Loads and prints the DRAM timing record",
		Long: util.WrapString(`Loads the DRAM timing record either from a
plain NVRAM region (--source nvram) or from the blob referenced by the
platform header (--source platform). Platform blobs pass the checksum and,
with --pubkey, the signature check before they are decoded.`),
		Args:    cobra.NoArgs,
		PreRunE: util.PreRunBindFlags,
		RunE:    runDRAM,
	}
)

func init() {
	util.SetupDeviceFlags(DRAMCmd)

	key := "source"
	DRAMCmd.Flags().String(key, "nvram", util.WrapString("Where to read the record from (nvram, platform)"))
	key = "pubkey"
	DRAMCmd.Flags().String(key, "", util.WrapString("File with the hex encoded ed25519 public key the platform blob must be signed with"))
	key = "signature"
	DRAMCmd.Flags().String(key, "", util.WrapString("File with the hex encoded signature over the platform blob"))
}

func runDRAM(_ *cobra.Command, _ []string) error {
	conf, err := util.GetBootConfig()
	if err != nil {
		return err
	}
	dev, err := util.OpenDevice(conf, true)
	if err != nil {
		return err
	}
	defer dev.Close()

	var out interface{}
	switch source := viper.GetString("source"); source {
	case "nvram":
		var timing *decode.DRAMTiming
		if timing, err = platform.LoadNVRAM(dev, conf.NVRAMRegion); err != nil {
			return err
		}
		out = timing
	case "platform":
		opts := platform.DefaultOptions()
		opts.Offset = conf.PlatformOffset
		if err := setupGate(&opts); err != nil {
			return err
		}
		var p *platform.Platform
		if p, err = platform.Load(dev, opts); err != nil {
			return err
		}
		out = p
	default:
		return fmt.Errorf("unknown source %q", source)
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

func setupGate(opts *platform.Options) error {
	if path := viper.GetString("pubkey"); path != "" {
		key, err := util.ReadHexFile(path)
		if err != nil {
			return fmt.Errorf("failed reading public key: %w", err)
		}
		v, err := integrity.NewEd25519Verifier(key)
		if err != nil {
			return err
		}
		opts.Gate.Verifier = v
	}
	if path := viper.GetString("signature"); path != "" {
		sig, err := util.ReadHexFile(path)
		if err != nil {
			return fmt.Errorf("failed reading signature: %w", err)
		}
		opts.Signature = &integrity.Signature{KeyName: path, Value: sig}
	}
	if opts.Gate.Verifier != nil && opts.Signature == nil {
		log.Warningf("--pubkey given without --signature, the blob will be rejected")
	}
	return nil
}
