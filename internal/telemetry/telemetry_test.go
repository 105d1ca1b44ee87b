// telemetry_test.go - ring buffer eviction, span guard, export shape
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package telemetry

import (
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return Init("test-session", zerolog.Nop(), prometheus.NewRegistry())
}

func TestEventLogEvictsOldest(t *testing.T) {
	m := newTestManager()
	for i := 0; i < eventLogCap+10; i++ {
		m.Log(LogEvent{Level: LevelInfo, Category: "test", Message: "tick"})
	}
	require.Len(t, m.Events(), eventLogCap)
}

func TestSpanGuardRecordsOnClose(t *testing.T) {
	m := newTestManager()
	span := m.StartSpan("tick", 0, map[string]string{"node": "lfo"})
	span.Close()
	span.Close() // second call must be a no-op, not a duplicate record

	spans := m.Spans()
	require.Len(t, spans, 1)
	require.Equal(t, "tick", spans[0].Name)
}

func TestSpanGuardNesting(t *testing.T) {
	m := newTestManager()
	parent := m.StartSpan("tick", 0, nil)
	child := m.StartSpan("node:blur", parent.ID(), nil)
	child.Close()
	parent.Close()

	spans := m.Spans()
	require.Len(t, spans, 2)
	require.Equal(t, spans[0].ID, spans[1].ParentID)
}

func TestSpanRingEvictsOldest(t *testing.T) {
	m := newTestManager()
	for i := 0; i < spanRingCap+5; i++ {
		m.StartSpan("tick", 0, nil).Close()
	}
	require.Len(t, m.Spans(), spanRingCap)
}

func TestErrorTrackerEvictsOldestButCountsPersist(t *testing.T) {
	m := newTestManager()
	for i := 0; i < errorTrackCap+3; i++ {
		m.RecordError("frame_error", "warning", "frame_processing", "")
	}
	require.Len(t, m.errors, errorTrackCap)
	require.EqualValues(t, errorTrackCap+3, m.ErrorCount())
}

func TestExportLogsIsValidJSON(t *testing.T) {
	m := newTestManager()
	m.Log(LogEvent{Level: LevelWarn, Category: "node", Message: "degraded"})
	out, err := m.ExportLogs()
	require.NoError(t, err)

	var parsed []LogEvent
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed, 1)
	require.Equal(t, "degraded", parsed[0].Message)
}

func TestCustomMetricCounterAccumulatesAndGaugeReplaces(t *testing.T) {
	m := newTestManager()
	m.RecordCustom("frames.dropped", MetricCounter, 1)
	m.RecordCustom("frames.dropped", MetricCounter, 2)
	v, ok := m.CustomMetricValue("frames.dropped")
	require.True(t, ok)
	require.Equal(t, 3.0, v)

	m.RecordCustom("audio.peak.a", MetricGauge, 0.8)
	m.RecordCustom("audio.peak.a", MetricGauge, 0.2)
	v, ok = m.CustomMetricValue("audio.peak.a")
	require.True(t, ok)
	require.Equal(t, 0.2, v)
}

func TestCustomMetricHistogramBoundsSamples(t *testing.T) {
	m := newTestManager()
	for i := 0; i < customSampleCap+10; i++ {
		m.RecordCustom("tick.ms", MetricHistogram, float64(i))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.custom["tick.ms"].Samples, customSampleCap)
	require.EqualValues(t, customSampleCap+10, m.custom["tick.ms"].Count)
}

func TestMemoryPeakIsHighWaterMark(t *testing.T) {
	m := newTestManager()
	m.RecordMemoryPeak(100)
	m.RecordMemoryPeak(50)
	require.EqualValues(t, 100, m.MemoryPeakBytes())
}

func TestSessionStatsReflectsRecordedFrames(t *testing.T) {
	m := newTestManager()
	m.RecordFrameProcessed(1_000_000)
	m.RecordFrameProcessed(2_000_000)

	stats := m.SessionStats()
	require.EqualValues(t, 2, stats.FrameCount)
	require.Equal(t, "test-session", stats.SessionID)
}
