// errors.go - error taxonomy for the processing engine
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

// Package errs defines the engine's error taxonomy: severity, category,
// user-facing message, and recoverability. This taxonomy classifies errors
// for reporting; it is a distinct type from resilience.Category, which
// classifies errors for recovery-strategy dispatch. The two overlap in
// subject matter but answer different questions.
package errs

import "fmt"

// Severity ranks how serious an error is.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Category identifies which subsystem produced the error.
type Category int

const (
	CategoryEngineLifecycle Category = iota
	CategoryNodeLifecycle
	CategoryFrame
	CategoryResource
	CategoryHardware
	CategoryNetwork
	CategoryFileIO
	CategoryConfiguration
	CategoryPlatform
	CategorySecurity
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryEngineLifecycle:
		return "engine_lifecycle"
	case CategoryNodeLifecycle:
		return "node_lifecycle"
	case CategoryFrame:
		return "frame"
	case CategoryResource:
		return "resource"
	case CategoryHardware:
		return "hardware"
	case CategoryNetwork:
		return "network"
	case CategoryFileIO:
		return "file_io"
	case CategoryConfiguration:
		return "configuration"
	case CategoryPlatform:
		return "platform"
	case CategorySecurity:
		return "security"
	default:
		return "internal"
	}
}

// Kind is the closed set of specific error conditions. Each maps to exactly
// one Category, Severity, and recoverability via the table below.
type Kind int

const (
	KindEngineInitFailed Kind = iota
	KindEngineNotRunning
	KindEngineAlreadyRunning
	KindNodeNotFound
	KindInvalidNodeKind
	KindNodeCreationFailed
	KindNodeProcessingFailed
	KindInvalidConnection
	KindCycleDetected
	KindFrameProcessingFailed
	KindInvalidFrameFormat
	KindFrameCorrupted
	KindFrameTimeout
	KindInsufficientMemory
	KindAllocationFailed
	KindResourceLimitExceeded
	KindHardwareNotSupported
	KindDriverIncompatible
	KindDeviceAccessFailed
	KindGpuProcessingFailed
	KindNetworkFailure
	KindFileIOFailure
	KindInvalidParameter
	KindParameterOutOfRange
	KindPlatformNotSupported
	KindSecurityViolation
	KindInternal
)

// Error is the engine's error type: a classified, user-facing, recoverability-
// tagged wrapper around an optional underlying cause.
type Error struct {
	Kind       Kind
	Category   Category
	Severity   Severity
	Message    string // user-facing message
	Recoverable bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified Error for kind k, filling category/severity/
// recoverability/message from the fixed table below and wrapping cause.
func New(k Kind, cause error) *Error {
	t := table[k]
	return &Error{
		Kind:        k,
		Category:    t.category,
		Severity:    t.severity,
		Message:     t.message,
		Recoverable: t.recoverable,
		Cause:       cause,
	}
}

type spec struct {
	category    Category
	severity    Severity
	message     string
	recoverable bool
}

// table is the exhaustive mapping from Kind to classification. Critical
// non-recoverable kinds (hardware/driver/platform/engine-init) terminate
// the engine; everything else routes to the resilience manager.
var table = map[Kind]spec{
	KindEngineInitFailed:      {CategoryEngineLifecycle, SeverityCritical, "engine failed to initialize", false},
	KindEngineNotRunning:      {CategoryEngineLifecycle, SeverityWarning, "engine is not running", true},
	KindEngineAlreadyRunning:  {CategoryEngineLifecycle, SeverityWarning, "engine is already running", true},
	KindNodeNotFound:          {CategoryNodeLifecycle, SeverityError, "node not found", true},
	KindInvalidNodeKind:       {CategoryNodeLifecycle, SeverityError, "invalid node kind", true},
	KindNodeCreationFailed:    {CategoryNodeLifecycle, SeverityError, "failed to create node", true},
	KindNodeProcessingFailed:  {CategoryNodeLifecycle, SeverityError, "node processing failed", true},
	KindInvalidConnection:     {CategoryNodeLifecycle, SeverityError, "invalid connection", true},
	KindCycleDetected:         {CategoryNodeLifecycle, SeverityError, "connection would create a cycle", true},
	KindFrameProcessingFailed: {CategoryFrame, SeverityError, "frame processing failed", true},
	KindInvalidFrameFormat:    {CategoryFrame, SeverityError, "invalid frame format", true},
	KindFrameCorrupted:        {CategoryFrame, SeverityError, "frame data corrupted", true},
	KindFrameTimeout:          {CategoryFrame, SeverityWarning, "frame processing timed out", true},
	KindInsufficientMemory:    {CategoryResource, SeverityError, "insufficient memory", true},
	KindAllocationFailed:      {CategoryResource, SeverityError, "allocation failed", true},
	KindResourceLimitExceeded: {CategoryResource, SeverityWarning, "resource limit exceeded", true},
	KindHardwareNotSupported:  {CategoryHardware, SeverityCritical, "hardware not supported", false},
	KindDriverIncompatible:    {CategoryHardware, SeverityCritical, "driver incompatible", false},
	KindDeviceAccessFailed:    {CategoryHardware, SeverityError, "device access failed", true},
	KindGpuProcessingFailed:   {CategoryHardware, SeverityError, "gpu processing failed", true},
	KindNetworkFailure:        {CategoryNetwork, SeverityError, "network failure", true},
	KindFileIOFailure:         {CategoryFileIO, SeverityError, "file io failure", true},
	KindInvalidParameter:      {CategoryConfiguration, SeverityWarning, "invalid parameter", true},
	KindParameterOutOfRange:   {CategoryConfiguration, SeverityWarning, "parameter out of range", true},
	KindPlatformNotSupported:  {CategoryPlatform, SeverityCritical, "platform not supported", false},
	KindSecurityViolation:     {CategorySecurity, SeverityCritical, "security violation", false},
	KindInternal:              {CategoryInternal, SeverityError, "internal error", true},
}
