// telemetry.go - metrics, event log, tracer, error tracker
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

// Package telemetry is the process-wide telemetry subsystem: atomic metric
// counters, a bounded event-log ring buffer, a hierarchical span tracer
// with guaranteed-closure spans, and an error tracker. Hot counters are
// mirrored onto prometheus/client_golang collectors and the event log is
// written through zerolog, so the same numbers are scrapeable and
// conventionally logged without a second bookkeeping path.
package telemetry

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	eventLogCap   = 1000
	spanRingCap   = 1000
	errorTrackCap = 100
	gpuSampleCap  = 100
)

// LogLevel mirrors the event log's severity tag.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// LogEvent is a single structured event-log entry.
type LogEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	Level         LogLevel          `json:"level"`
	Category      string            `json:"category"`
	Message       string            `json:"message"`
	Context       map[string]string `json:"context,omitempty"`
	SessionID     string            `json:"session_id"`
	NodeID        string            `json:"node_id,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// CompletedSpan is a finished span retained in the bounded trace ring.
type CompletedSpan struct {
	ID       uint64            `json:"id"`
	Name     string            `json:"name"`
	ParentID uint64            `json:"parent_id,omitempty"`
	Start    time.Time         `json:"start"`
	Duration time.Duration     `json:"duration"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// TrackedError is a single error-tracker entry.
type TrackedError struct {
	Timestamp time.Time `json:"timestamp"`
	TypeName  string    `json:"type_name"`
	Severity  string    `json:"severity"`
	Category  string    `json:"category"`
	NodeID    string    `json:"node_id,omitempty"`
}

// SessionStats summarizes a session for export.
type SessionStats struct {
	SessionID           string        `json:"session_id"`
	StartedAt           time.Time     `json:"started_at"`
	FrameCount          uint64        `json:"frame_count"`
	ErrorCount          uint64        `json:"error_count"`
	TotalProcessingTime time.Duration `json:"total_processing_time"`
	MemoryPeakBytes     uint64        `json:"memory_peak_bytes"`
}

// Manager is the process-wide telemetry singleton. Hot counters use
// sync/atomic so producers never block; the ring buffers use a
// short-critical-section mutex.
type Manager struct {
	sessionID string
	startedAt time.Time
	logger    zerolog.Logger

	frameCount          atomic.Uint64
	errorCount          atomic.Uint64
	totalProcessingTime atomic.Int64 // nanoseconds
	memoryPeakBytes     atomic.Uint64

	mu          sync.Mutex
	events      []LogEvent
	spans       []CompletedSpan
	errors      []TrackedError
	errorCounts map[string]int
	nextSpanID  uint64
	gpuSamples  []float64
	custom      map[string]*CustomMetric

	promFrameCount prometheus.Counter
	promErrorCount prometheus.Counter
	promFrameTime  prometheus.Histogram
}

// Init constructs a Manager and registers its Prometheus collectors against
// reg (pass prometheus.NewRegistry() in tests to avoid global-registry
// collisions; pass prometheus.DefaultRegisterer in production).
func Init(sessionID string, logger zerolog.Logger, reg prometheus.Registerer) *Manager {
	m := &Manager{
		sessionID:   sessionID,
		startedAt:   time.Now(),
		logger:      logger,
		errorCounts: map[string]int{},
		promFrameCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "constellation_frames_processed_total",
			Help: "Total frames processed.",
		}),
		promErrorCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "constellation_errors_total",
			Help: "Total recoverable errors recorded.",
		}),
		promFrameTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "constellation_tick_duration_seconds",
			Help:    "Per-tick processing duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.promFrameCount, m.promErrorCount, m.promFrameTime)
	}
	return m
}

// RecordFrameProcessed increments frame_count/total_processing_time and
// mirrors both onto the Prometheus collectors.
func (m *Manager) RecordFrameProcessed(d time.Duration) {
	m.frameCount.Add(1)
	m.totalProcessingTime.Add(int64(d))
	m.promFrameCount.Inc()
	m.promFrameTime.Observe(d.Seconds())
}

func (m *Manager) FrameCount() uint64 { return m.frameCount.Load() }
func (m *Manager) TotalProcessingTime() time.Duration {
	return time.Duration(m.totalProcessingTime.Load())
}

// RecordMemoryPeak raises the memory_peak_bytes high-water mark; lower
// samples are ignored.
func (m *Manager) RecordMemoryPeak(bytes uint64) {
	for {
		cur := m.memoryPeakBytes.Load()
		if bytes <= cur || m.memoryPeakBytes.CompareAndSwap(cur, bytes) {
			return
		}
	}
}

// MemoryPeakBytes returns the current high-water mark.
func (m *Manager) MemoryPeakBytes() uint64 { return m.memoryPeakBytes.Load() }

// RecordGPUUtilization appends to the last-100 utilization ring.
func (m *Manager) RecordGPUUtilization(pct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gpuSamples = append(m.gpuSamples, pct)
	if len(m.gpuSamples) > gpuSampleCap {
		m.gpuSamples = m.gpuSamples[len(m.gpuSamples)-gpuSampleCap:]
	}
}

// Log appends ev to the bounded event ring (oldest evicted, writers never
// block) and writes it through zerolog at the corresponding level.
func (m *Manager) Log(ev LogEvent) {
	ev.Timestamp = time.Now()
	ev.SessionID = m.sessionID

	m.mu.Lock()
	m.events = append(m.events, ev)
	if len(m.events) > eventLogCap {
		m.events = m.events[len(m.events)-eventLogCap:]
	}
	m.mu.Unlock()

	logEvt := m.logger.WithLevel(zerologLevel(ev.Level)).
		Str("category", ev.Category).
		Str("session_id", ev.SessionID)
	if ev.NodeID != "" {
		logEvt = logEvt.Str("node_id", ev.NodeID)
	}
	logEvt.Msg(ev.Message)
}

func zerologLevel(l LogLevel) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Events returns a copy of the current event ring.
func (m *Manager) Events() []LogEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogEvent, len(m.events))
	copy(out, m.events)
	return out
}

// MetricKind classifies a named custom metric.
type MetricKind int

const (
	MetricCounter MetricKind = iota
	MetricGauge
	MetricHistogram
	MetricSummary
)

// CustomMetric is a named metric outside the fixed hot-counter set. Counter
// accumulates, Gauge holds the last value, Histogram/Summary retain a
// bounded sample window (the JSON export serializes the samples; quantile
// math is the reader's concern).
type CustomMetric struct {
	Kind    MetricKind `json:"kind"`
	Value   float64    `json:"value"`
	Count   uint64     `json:"count"`
	Samples []float64  `json:"samples,omitempty"`
}

const customSampleCap = 100

// RecordCustom updates the named custom metric according to its kind,
// creating it on first use.
func (m *Manager) RecordCustom(name string, kind MetricKind, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.custom == nil {
		m.custom = map[string]*CustomMetric{}
	}
	c, ok := m.custom[name]
	if !ok {
		c = &CustomMetric{Kind: kind}
		m.custom[name] = c
	}
	c.Count++
	switch kind {
	case MetricCounter:
		c.Value += v
	case MetricGauge:
		c.Value = v
	default: // MetricHistogram, MetricSummary
		c.Value = v
		c.Samples = append(c.Samples, v)
		if len(c.Samples) > customSampleCap {
			c.Samples = c.Samples[len(c.Samples)-customSampleCap:]
		}
	}
}

// CustomMetricValue returns the named metric's current value.
func (m *Manager) CustomMetricValue(name string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.custom[name]
	if !ok {
		return 0, false
	}
	return c.Value, true
}

// SpanGuard is a scoped span acquisition: StartSpan returns one, and Close
// (typically deferred immediately) guarantees the span is recorded exactly
// once on every exit path without relying on a finalizer.
type SpanGuard struct {
	m        *Manager
	id       uint64
	parentID uint64
	name     string
	start    time.Time
	tags     map[string]string
	closed   bool
}

// StartSpan opens a span named name, nested under parentID (0 for a root
// span such as a tick span).
func (m *Manager) StartSpan(name string, parentID uint64, tags map[string]string) *SpanGuard {
	m.mu.Lock()
	m.nextSpanID++
	id := m.nextSpanID
	m.mu.Unlock()
	return &SpanGuard{m: m, id: id, parentID: parentID, name: name, start: time.Now(), tags: tags}
}

// ID returns the span's id, usable as a parent id for child spans.
func (g *SpanGuard) ID() uint64 { return g.id }

// Close records the completed span into the bounded trace ring. Safe to
// call multiple times; only the first call has effect, so `defer span.Close()`
// is safe even if the caller also closes explicitly on a success path.
func (g *SpanGuard) Close() {
	if g.closed {
		return
	}
	g.closed = true
	span := CompletedSpan{
		ID: g.id, Name: g.name, ParentID: g.parentID,
		Start: g.start, Duration: time.Since(g.start), Tags: g.tags,
	}
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	g.m.spans = append(g.m.spans, span)
	if len(g.m.spans) > spanRingCap {
		g.m.spans = g.m.spans[len(g.m.spans)-spanRingCap:]
	}
}

// Spans returns a copy of the current completed-span ring.
func (m *Manager) Spans() []CompletedSpan {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletedSpan, len(m.spans))
	copy(out, m.spans)
	return out
}

// RecordError increments the named error-type counter, mirrors it onto
// Prometheus, and appends to the bounded last-100 error ring.
func (m *Manager) RecordError(typeName, severity, category, nodeID string) {
	m.errorCount.Add(1)
	m.promErrorCount.Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCounts[typeName]++
	m.errors = append(m.errors, TrackedError{
		Timestamp: time.Now(), TypeName: typeName, Severity: severity, Category: category, NodeID: nodeID,
	})
	if len(m.errors) > errorTrackCap {
		m.errors = m.errors[len(m.errors)-errorTrackCap:]
	}
}

// ErrorCount returns the total recoverable-error count.
func (m *Manager) ErrorCount() uint64 { return m.errorCount.Load() }

// SessionStats snapshots the current session counters for export.
func (m *Manager) SessionStats() SessionStats {
	return SessionStats{
		SessionID:           m.sessionID,
		StartedAt:           m.startedAt,
		FrameCount:          m.FrameCount(),
		ErrorCount:          m.ErrorCount(),
		TotalProcessingTime: m.TotalProcessingTime(),
		MemoryPeakBytes:     m.MemoryPeakBytes(),
	}
}

// ExportLogs returns the event ring as pretty-printed JSON.
func (m *Manager) ExportLogs() (string, error) { return exportJSON(m.Events()) }

// ExportTraces returns the completed-span ring as pretty-printed JSON.
func (m *Manager) ExportTraces() (string, error) { return exportJSON(m.Spans()) }

// ExportSessionStats returns the session summary as pretty-printed JSON.
func (m *Manager) ExportSessionStats() (string, error) { return exportJSON(m.SessionStats()) }

func exportJSON(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
