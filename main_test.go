// main_test.go
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later
package main

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(nil)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, 60.0, cfg.FPS)
	require.Equal(t, 120, cfg.RateLimitRequests)
}

func TestParseFlagsOverridesDefaults(t *testing.T) {
	cfg, err := parseFlags([]string{"-listen", ":9090", "-fps", "30", "-rate-limit-requests", "0"})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddr)
	require.Equal(t, 30.0, cfg.FPS)
	require.Equal(t, 0, cfg.RateLimitRequests)
}

func TestParseFlagsRejectsUnknownFlag(t *testing.T) {
	_, err := parseFlags([]string{"-bogus"})
	require.Error(t, err)
}

func TestEnvOverridesTakePriorityOverFlags(t *testing.T) {
	t.Setenv("CS_LISTEN_ADDR", ":7070")
	t.Setenv("CS_FPS", "24")
	t.Setenv("CS_SHUTDOWN_TIMEOUT", "2s")

	cfg, err := parseFlags([]string{"-listen", ":9090", "-fps", "30"})
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.ListenAddr)
	require.Equal(t, 24.0, cfg.FPS)
	require.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
}

func TestEnvOverridesIgnoreUnparseableValues(t *testing.T) {
	t.Setenv("CS_FPS", "not-a-number")
	cfg, err := parseFlags([]string{"-fps", "30"})
	require.NoError(t, err)
	require.Equal(t, 30.0, cfg.FPS)
}

func TestIsTerminalFalseForRegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "not-a-tty")
	require.NoError(t, err)
	defer f.Close()
	require.False(t, isTerminal(f))
}
