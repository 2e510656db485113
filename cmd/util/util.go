package util

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ValentinKolb/nvboot/lib/common"
	"github.com/ValentinKolb/nvboot/lib/device"
	"github.com/ValentinKolb/nvboot/lib/device/engines/file"
	"github.com/ValentinKolb/nvboot/lib/export"
	"github.com/ValentinKolb/nvboot/lib/store"
	"github.com/ValentinKolb/nvboot/lib/store/nvstore"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// SetupDeviceFlags adds the flags describing the boot flash to a command
func SetupDeviceFlags(cmd *cobra.Command) {
	def := common.DefaultBootConfig()

	key := "device"
	cmd.PersistentFlags().StringP(key, "d", "", WrapString("Path of the flash device or image file"))

	key = "device-size"
	cmd.PersistentFlags().String(key, "0", WrapString("Size of the device (e.g. 4MiB or 0x400000). 0 uses the size of the existing file"))

	key = "store-regions"
	cmd.PersistentFlags().String(key, FormatRegions(def.Layout.Regions[:]), WrapString("The two regions of the key/value store in the format OFFSET:SIZE,OFFSET:SIZE"))

	key = "nvram-region"
	cmd.PersistentFlags().String(key, FormatRegions([]store.Region{def.NVRAMRegion}), WrapString("Region holding the DRAM configuration as plain nvram image (OFFSET:SIZE)"))

	key = "platform-offset"
	cmd.PersistentFlags().String(key, fmt.Sprintf("0x%x", def.PlatformOffset), WrapString("Offset of the platform header"))

	key = "default-label"
	cmd.PersistentFlags().String(key, def.DefaultLabel, WrapString("Rootfs label both slots are reset to from an invalid state"))

	key = "max-attempts"
	cmd.PersistentFlags().Uint64(key, def.MaxAttempts, WrapString("Boot attempts granted to a swap target before rolling back"))

	key = "fit-addr"
	cmd.PersistentFlags().String(key, fmt.Sprintf("0x%x", def.FITAddr), WrapString("Load address of the FIT image"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("nvboot")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// PreRunBindFlags is BindCommandFlags in the shape of a cobra PreRunE hook
func PreRunBindFlags(cmd *cobra.Command, _ []string) error {
	return BindCommandFlags(cmd)
}

// GetBootConfig reads the boot configuration from viper
func GetBootConfig() (*common.BootConfig, error) {
	conf := common.DefaultBootConfig()
	conf.DevicePath = viper.GetString("device")
	conf.LogLevel = viper.GetString("log-level")
	conf.DefaultLabel = viper.GetString("default-label")
	conf.MaxAttempts = viper.GetUint64("max-attempts")

	var err error
	if conf.DeviceSize, err = ParseSize(viper.GetString("device-size")); err != nil {
		return nil, fmt.Errorf("invalid device size: %w", err)
	}

	regions, err := ParseRegions(viper.GetString("store-regions"))
	if err != nil {
		return nil, fmt.Errorf("invalid store regions: %w", err)
	}
	if len(regions) != 2 {
		return nil, fmt.Errorf("invalid store regions: need exactly 2, got %d", len(regions))
	}
	copy(conf.Layout.Regions[:], regions)

	regions, err = ParseRegions(viper.GetString("nvram-region"))
	if err != nil || len(regions) != 1 {
		return nil, fmt.Errorf("invalid nvram region %q", viper.GetString("nvram-region"))
	}
	conf.NVRAMRegion = regions[0]

	if conf.PlatformOffset, err = ParseSize(viper.GetString("platform-offset")); err != nil {
		return nil, fmt.Errorf("invalid platform offset: %w", err)
	}

	fitAddr, err := ParseSize(viper.GetString("fit-addr"))
	if err != nil {
		return nil, fmt.Errorf("invalid fit address: %w", err)
	}
	conf.FITAddr = uint64(fitAddr)

	return &conf, conf.Validate()
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (export.ISerializer, error) {
	return export.New(viper.GetString("format"))
}

// --------------------------------------------------------------------------
// Device and store
// --------------------------------------------------------------------------

// OpenDevice opens the configured device
func OpenDevice(conf *common.BootConfig, readOnly bool) (device.RawStore, error) {
	return file.OpenFileDevice(conf.DevicePath, &file.Options{
		Size:     conf.DeviceSize,
		Create:   !readOnly && conf.DeviceSize > 0,
		ReadOnly: readOnly,
	})
}

// OpenStore opens the key/value store on the configured device. The
// returned close function releases the device.
func OpenStore(conf *common.BootConfig, readOnly bool) (store.IStore, func(), error) {
	dev, err := OpenDevice(conf, readOnly)
	if err != nil {
		return nil, nil, err
	}
	s, err := nvstore.Open(dev, conf.Layout)
	if err != nil {
		_ = dev.Close()
		return nil, nil, err
	}
	return s, func() { _ = dev.Close() }, nil
}

// --------------------------------------------------------------------------
// Parsing helpers
// --------------------------------------------------------------------------

// ParseSize accepts plain and 0x-prefixed integers as well as human readable
// sizes such as 64KiB.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%q is negative", s)
		}
		return n, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// ParseRegions parses a comma separated list of OFFSET:SIZE pairs.
func ParseRegions(s string) ([]store.Region, error) {
	var regions []store.Region
	for _, part := range strings.Split(s, ",") {
		offset, size, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("invalid region %q (expected OFFSET:SIZE)", part)
		}
		off, err := ParseSize(offset)
		if err != nil {
			return nil, fmt.Errorf("invalid region offset %q: %w", offset, err)
		}
		n, err := ParseSize(size)
		if err != nil {
			return nil, fmt.Errorf("invalid region size %q: %w", size, err)
		}
		regions = append(regions, store.Region{Offset: off, Size: n})
	}
	return regions, nil
}

// FormatRegions is the inverse of ParseRegions.
func FormatRegions(regions []store.Region) string {
	parts := make([]string, len(regions))
	for i, r := range regions {
		parts[i] = fmt.Sprintf("0x%x:0x%x", r.Offset, r.Size)
	}
	return strings.Join(parts, ",")
}

// ReadHexFile reads a file holding hex encoded bytes, ignoring whitespace.
func ReadHexFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseHex(string(b))
}

// ParseHex decodes hex, optionally 0x-prefixed and containing whitespace.
func ParseHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
