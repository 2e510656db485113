package common

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/nvboot/lib/platform"
	"github.com/ValentinKolb/nvboot/lib/store"
	"github.com/ValentinKolb/nvboot/lib/store/nvstore"
	"github.com/ValentinKolb/nvboot/lib/swap"
	"github.com/dustin/go-humanize"
)

// DefaultDeviceSize is the size of the boot flash image (4 MiB).
const DefaultDeviceSize = 0x400000

// BootConfig holds every parameter of the boot flow.
type BootConfig struct {
	// Device
	DevicePath string
	DeviceSize int64

	// Key/value store
	Layout nvstore.Layout

	// DRAM configuration
	NVRAMRegion    store.Region
	PlatformOffset int64

	// Update state machine
	DefaultLabel string
	MaxAttempts  uint64
	FITAddr      uint64

	// Logging configuration
	LogLevel string
}

// DefaultBootConfig returns the configuration of the reference board.
func DefaultBootConfig() BootConfig {
	return BootConfig{
		DeviceSize:     DefaultDeviceSize,
		Layout:         nvstore.DefaultLayout(),
		NVRAMRegion:    platform.DefaultNVRAMRegion,
		PlatformOffset: platform.DefaultOffset,
		DefaultLabel:   swap.DefaultLabel,
		MaxAttempts:    swap.MaxAttempts,
		FITAddr:        swap.DefaultFITAddr,
		LogLevel:       "info",
	}
}

// Validate checks the configuration against itself.
func (c *BootConfig) Validate() error {
	if c.DevicePath == "" {
		return fmt.Errorf("no device given")
	}
	if c.DeviceSize < 0 {
		return fmt.Errorf("device size must not be negative")
	}
	if c.DefaultLabel == "" {
		return fmt.Errorf("default label must not be empty")
	}
	if c.MaxAttempts == 0 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *BootConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	region := func(r store.Region) string {
		return fmt.Sprintf("0x%06x (%s)", r.Offset, humanize.IBytes(uint64(r.Size)))
	}

	addSection("Device")
	addField("Path", c.DevicePath)
	if c.DeviceSize == 0 {
		addField("Size", "from device")
	} else {
		addField("Size", humanize.IBytes(uint64(c.DeviceSize)))
	}

	addSection("Store")
	for i, r := range c.Layout.Regions {
		addField(fmt.Sprintf("Region %d", i), region(r))
	}

	addSection("DRAM Configuration")
	addField("NVRAM Region", region(c.NVRAMRegion))
	addField("Platform Header", fmt.Sprintf("0x%06x", c.PlatformOffset))

	addSection("Root Swap")
	addField("Default Label", c.DefaultLabel)
	addField("Max Attempts", fmt.Sprintf("%d", c.MaxAttempts))
	addField("FIT Address", fmt.Sprintf("0x%x", c.FITAddr))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
