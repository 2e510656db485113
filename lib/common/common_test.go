package common

import (
	"bytes"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	prev := logOutput
	logOutput = &buf
	defer func() { logOutput = prev }()

	l := CreateLogger("swap")
	l.Infof("BOOT: normal boot")
	l.Debugf("hidden")
	l.SetLevel(logger.DEBUG)
	l.Debugf("shown")

	out := buf.String()
	assert.Contains(t, out, "INFO  | swap      | BOOT: normal boot")
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "DEBUG | swap      | shown")
}

func TestBootConfig(t *testing.T) {
	c := DefaultBootConfig()
	assert.Error(t, c.Validate(), "device path is required")

	c.DevicePath = "/dev/mtd0"
	require.NoError(t, c.Validate())

	s := c.String()
	assert.Contains(t, s, "DEVICE")
	assert.Contains(t, s, "4.0 MiB")
	assert.Contains(t, s, "0x020000 (64 KiB)")
	assert.Contains(t, s, "rootfs1")
	assert.Contains(t, s, "0x43200000")

	c.LogLevel = "loud"
	assert.Error(t, c.Validate())

	c.LogLevel = "info"
	c.MaxAttempts = 0
	assert.Error(t, c.Validate())
}
