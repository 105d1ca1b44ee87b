// resilience_test.go - health thresholds and the degradation ladder
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package resilience

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDegradationLadder(t *testing.T) {
	m := NewManager()
	require.Equal(t, StatusHealthy, m.SystemStatus())

	m.RecordError(CategoryFrameProcessing)
	require.Equal(t, StatusDegraded, m.SystemStatus())

	m.RecordError(CategoryFrameProcessing)
	m.RecordError(CategoryFrameProcessing)
	m.RecordError(CategoryFrameProcessing)
	m.RecordError(CategoryFrameProcessing)
	require.Equal(t, StatusCritical, m.SystemStatus())
}

func TestSystemStatusThresholds(t *testing.T) {
	cases := []struct {
		n      int
		status Status
	}{
		{0, StatusHealthy},
		{1, StatusDegraded},
		{4, StatusDegraded},
		{5, StatusCritical},
		{19, StatusCritical},
		{20, StatusFailSafe},
	}
	for _, c := range cases {
		m := NewManager()
		for i := 0; i < c.n; i++ {
			m.RecordError(CategoryFrameProcessing)
		}
		require.Equal(t, c.status, m.SystemStatus(), "n=%d", c.n)
	}
}

func TestDegradationLevelMonotonicAndCapped(t *testing.T) {
	m := NewManager()
	prev := m.DegradationLevel()
	for i := 0; i < 15; i++ {
		m.RaiseDegradation()
		cur := m.DegradationLevel()
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
	require.Equal(t, 10, m.DegradationLevel())
}

func TestFallbackModeLadder(t *testing.T) {
	m := NewManager()
	require.Equal(t, FallbackNormal, m.FallbackMode())
	for i := 0; i < 2; i++ {
		m.RaiseDegradation()
	}
	require.Equal(t, FallbackReducedQuality, m.FallbackMode())
	for i := 0; i < 3; i++ {
		m.RaiseDegradation()
	}
	require.Equal(t, FallbackSafeMode, m.FallbackMode())
	for i := 0; i < 5; i++ {
		m.RaiseDegradation()
	}
	require.Equal(t, FallbackEmergencyMode, m.FallbackMode())
	require.True(t, m.EmergencyModeActive())
}
