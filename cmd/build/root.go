package build

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ValentinKolb/nvboot/cmd/util"
	"github.com/ValentinKolb/nvboot/lib/common"
	"github.com/dustin/go-humanize"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logger.GetLogger("cmd")

var (
	// BuildCmd writes the content of a manifest to a device image
	BuildCmd = &cobra.Command{
		Use:   "build [manifest.yaml]",
		Short: "Provisions a device image from a YAML manifest",
		Long: util.WrapString(`Writes the entries of a manifest to the
device. The manifest layout selects the target: "store" commits the entries
into the A/B key/value store, "nvram" writes a plain NVRAM image into the
DRAM configuration region and "platform" wraps the image in a platform
header. A missing device file is created erased.`),
		Args:    cobra.ExactArgs(1),
		PreRunE: util.PreRunBindFlags,
		RunE:    runBuild,
	}
)

func init() {
	util.SetupDeviceFlags(BuildCmd)

	key := "sign-key"
	BuildCmd.Flags().String(key, "", util.WrapString("File with a hex encoded ed25519 seed used to sign the platform blob"))
	key = "signature-out"
	BuildCmd.Flags().String(key, "", util.WrapString("Where to write the hex encoded signature (default: <device>.sig)"))
}

func runBuild(_ *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	m, err := ParseManifest(raw)
	if err != nil {
		return err
	}

	conf, err := util.GetBootConfig()
	if err != nil {
		return err
	}
	if conf.DeviceSize == 0 {
		if _, err := os.Stat(conf.DevicePath); errors.Is(err, fs.ErrNotExist) {
			conf.DeviceSize = common.DefaultDeviceSize
			log.Infof("creating %s (%s, erased)", conf.DevicePath, humanize.IBytes(uint64(conf.DeviceSize)))
		}
	}

	target := Target{
		Layout:         conf.Layout,
		NVRAMRegion:    conf.NVRAMRegion,
		PlatformOffset: conf.PlatformOffset,
	}
	if path := viper.GetString("sign-key"); path != "" {
		seed, err := util.ReadHexFile(path)
		if err != nil {
			return fmt.Errorf("failed reading signing key: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return fmt.Errorf("signing key must be a %d byte seed, got %d bytes", ed25519.SeedSize, len(seed))
		}
		target.SignKey = ed25519.NewKeyFromSeed(seed)
	}

	dev, err := util.OpenDevice(conf, false)
	if err != nil {
		return err
	}
	defer dev.Close()

	w, err := Write(dev, m, target)
	if err != nil {
		return err
	}

	if m.Layout == LayoutPlatform {
		var pub ed25519.PublicKey
		if target.SignKey != nil {
			pub = target.SignKey.Public().(ed25519.PublicKey)
		}
		if err := Verify(dev, conf.PlatformOffset, pub, w.Signature); err != nil {
			return fmt.Errorf("written image does not verify: %w", err)
		}
	}

	if w.Signature != nil {
		out := viper.GetString("signature-out")
		if out == "" {
			out = conf.DevicePath + ".sig"
		}
		if err := os.WriteFile(out, []byte(hex.EncodeToString(w.Signature)+"\n"), 0o644); err != nil {
			return err
		}
		fmt.Printf("signature written to %s\n", out)
	}

	fmt.Printf("%s: %d entries written at 0x%x (%d bytes)\n", m.Layout, w.Entries, w.Region.Offset, w.Region.Size)
	return nil
}
