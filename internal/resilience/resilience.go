// resilience.go - resilience manager
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

// Package resilience implements the resilience manager: error
// classification into recovery-strategy categories, the recovery-strategy
// table, system-status thresholds, and the monotonic fallback-mode
// ladder.
package resilience

import (
	"sync"
	"time"
)

// Category is the resilience classification of an error: which recovery
// strategy applies. Distinct from errs.Category, which classifies for
// user-facing reporting rather than recovery dispatch.
type Category int

const (
	CategoryFrameProcessing Category = iota
	CategoryMemoryAllocation
	CategoryGpuProcessing
	CategoryNetworkConnection
	CategoryNodeProcessing
	CategoryResourceExhaustion
	CategoryHardwareFailure
)

func (c Category) String() string {
	switch c {
	case CategoryFrameProcessing:
		return "frame_processing"
	case CategoryMemoryAllocation:
		return "memory_allocation"
	case CategoryGpuProcessing:
		return "gpu_processing"
	case CategoryNetworkConnection:
		return "network_connection"
	case CategoryNodeProcessing:
		return "node_processing"
	case CategoryResourceExhaustion:
		return "resource_exhaustion"
	default:
		return "hardware_failure"
	}
}

// StrategyKind is the closed set of recovery strategies.
type StrategyKind int

const (
	StrategyRetry StrategyKind = iota
	StrategyQualityDegradation
	StrategyFallback
	StrategyGracefulShutdown
	StrategyLogAndContinue
)

// Strategy carries the parameters for a recovery strategy; only the fields
// relevant to Kind are meaningful.
type Strategy struct {
	Kind StrategyKind

	// StrategyRetry
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     float64

	// StrategyQualityDegradation
	CapWidth, CapHeight int
	CapFPS              int
	DisableBlur         bool

	// StrategyFallback
	FallbackProcessor string

	// StrategyGracefulShutdown
	CleanupTimeout time.Duration
}

// defaultStrategies is the fixed recovery table; categories absent here
// fall through to LogAndContinue.
var defaultStrategies = map[Category]Strategy{
	CategoryFrameProcessing: {
		Kind: StrategyRetry, MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Backoff: 2.0,
	},
	CategoryMemoryAllocation: {
		Kind: StrategyQualityDegradation, CapWidth: 1280, CapHeight: 720, CapFPS: 30, DisableBlur: true,
	},
	CategoryGpuProcessing: {
		Kind: StrategyFallback, FallbackProcessor: "pass_through",
	},
	CategoryHardwareFailure: {
		Kind: StrategyGracefulShutdown, CleanupTimeout: 30 * time.Second,
	},
}

func strategyFor(c Category) Strategy {
	if s, ok := defaultStrategies[c]; ok {
		return s
	}
	return Strategy{Kind: StrategyLogAndContinue}
}

// Status is the observable system health.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusCritical
	StatusFailSafe
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusCritical:
		return "critical"
	default:
		return "fail_safe"
	}
}

// FallbackMode is the coarse classification of accumulated degradation.
type FallbackMode int

const (
	FallbackNormal FallbackMode = iota
	FallbackReducedQuality
	FallbackSafeMode
	FallbackEmergencyMode
)

func (m FallbackMode) String() string {
	switch m {
	case FallbackNormal:
		return "normal"
	case FallbackReducedQuality:
		return "reduced_quality"
	case FallbackSafeMode:
		return "safe_mode"
	default:
		return "emergency_mode"
	}
}

// RecoveryAction is what the scheduler is told to do about a specific
// error occurrence on its next tick.
type RecoveryAction int

const (
	ActionRetry RecoveryAction = iota
	ActionQualityReduced
	ActionFallback
	ActionGracefulShutdown
	ActionLogAndContinue
)

// Manager tracks per-category failure counts, derives Status and
// FallbackMode from them, and dispatches recovery actions. All mutation is
// internally serialized.
type Manager struct {
	mu               sync.Mutex
	counts           map[Category]int
	degradationLevel int
}

func NewManager() *Manager {
	return &Manager{counts: map[Category]int{}}
}

// RecordError increments c's failure count and returns the RecoveryAction
// the caller should honor on the next tick.
func (m *Manager) RecordError(c Category) RecoveryAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[c]++
	return actionFor(strategyFor(c).Kind)
}

func actionFor(k StrategyKind) RecoveryAction {
	switch k {
	case StrategyRetry:
		return ActionRetry
	case StrategyQualityDegradation:
		return ActionQualityReduced
	case StrategyFallback:
		return ActionFallback
	case StrategyGracefulShutdown:
		return ActionGracefulShutdown
	default:
		return ActionLogAndContinue
	}
}

// Strategy exposes the configured strategy for category c (read-only; the
// table is fixed at the documented defaults for this engine).
func (m *Manager) Strategy(c Category) Strategy { return strategyFor(c) }

// SystemStatus derives status from the count of frame/memory/gpu failures
// only; connection/node/resource/hardware failures drive their own recovery
// strategies but do not move the health buckets.
func (m *Manager) SystemStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.counts[CategoryFrameProcessing] + m.counts[CategoryMemoryAllocation] + m.counts[CategoryGpuProcessing]
	return statusFor(n)
}

func statusFor(n int) Status {
	switch {
	case n == 0:
		return StatusHealthy
	case n <= 4:
		return StatusDegraded
	case n <= 19:
		return StatusCritical
	default:
		return StatusFailSafe
	}
}

// DegradationLevel returns the current monotonic degradation level (0-10).
func (m *Manager) DegradationLevel() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degradationLevel
}

// RaiseDegradation increases the degradation level by one, capped at 10,
// called by the scheduler when the rolling average tick duration exceeds
// the frame budget.
func (m *Manager) RaiseDegradation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.degradationLevel < 10 {
		m.degradationLevel++
	}
}

// FallbackMode derives the coarse mode from the current degradation level.
func (m *Manager) FallbackMode() FallbackMode {
	level := m.DegradationLevel()
	switch {
	case level == 0:
		return FallbackNormal
	case level <= 3:
		return FallbackReducedQuality
	case level <= 7:
		return FallbackSafeMode
	default:
		return FallbackEmergencyMode
	}
}

// EmergencyModeActive reports whether Effect nodes should be forced to
// identity; a graph in emergency mode disables all of them.
func (m *Manager) EmergencyModeActive() bool {
	return m.FallbackMode() == FallbackEmergencyMode
}

// CountFor returns the current failure count for category c, used by
// telemetry/status reporting.
func (m *Manager) CountFor(c Category) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[c]
}
