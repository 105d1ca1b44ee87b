// scheduler.go - per-frame tick scheduler
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

// Package scheduler drives one tick per frame through a graph.Graph's
// topological order: a control pass that evaluates every Control node and
// applies deduplicated parameter commands, a process pass that merges
// predecessor outputs into each node's input bundle and invokes Process,
// and a close-tick step that updates counters and notifies any attached
// event listener. It honors the resilience manager's recovery actions and
// tracks a rolling tick-duration average against the configured frame
// budget.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/constellationstudio/engine/internal/errs"
	"github.com/constellationstudio/engine/internal/frame"
	"github.com/constellationstudio/engine/internal/graph"
	"github.com/constellationstudio/engine/internal/resilience"
	"github.com/constellationstudio/engine/internal/telemetry"
)

const rollingWindow = 10

// FrameProcessedEvent is delivered to OnFrameProcessed at the close of every
// tick, mirroring the control-plane's FrameProcessed{timestamp} event.
type FrameProcessedEvent struct {
	Timestamp  time.Time
	FrameIndex uint64
}

// Status is a snapshot of the engine's running state, returned by the
// control-plane's GET /api/engine/status.
type Status struct {
	Running         bool
	FPS             float64
	FrameCount      uint64
	NodeCount       int
	ConnectionCount int
}

// Scheduler drives one graph. Each graph gets its own Scheduler and runs on
// its own goroutine; Schedulers share no node state.
type Scheduler struct {
	g          *graph.Graph
	resilience *resilience.Manager
	telemetry  *telemetry.Manager

	fps      float64
	deadline time.Duration

	// SleepFunc backs retry backoff; overridable in tests to avoid real
	// delays. Defaults to time.Sleep.
	SleepFunc func(time.Duration)

	// GraphLock, when set, is held for the duration of each tick and for
	// Status's graph reads, serializing them against control-plane graph
	// mutations. The engine wires its own mutex in here; nil means the
	// caller guarantees no concurrent mutation (tests driving Tick
	// directly).
	GraphLock sync.Locker

	// OnFrameProcessed is called synchronously at the end of every tick, if
	// set. Used by the control-plane event stream binding.
	OnFrameProcessed func(FrameProcessedEvent)

	mu            sync.Mutex
	running       bool
	stopRequested bool
	frameCount    uint64
	tickDurations []time.Duration
	blurDisabled  bool
}

// New constructs a Scheduler for g, targeting fps frames per second. The
// frame budget deadline is 1/fps; fps <= 0 falls back to 30fps (a 33ms
// budget).
func New(g *graph.Graph, res *resilience.Manager, tel *telemetry.Manager, fps float64) *Scheduler {
	if fps <= 0 {
		fps = 30
	}
	return &Scheduler{
		g:          g,
		resilience: res,
		telemetry:  tel,
		fps:        fps,
		deadline:   time.Duration(float64(time.Second) / fps),
		SleepFunc:  time.Sleep,
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RequestStop sets the stop flag, honored at the next tick boundary only;
// an in-flight tick always completes.
func (s *Scheduler) RequestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRequested = true
}

func (s *Scheduler) FrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCount
}

// Status snapshots the scheduler's observable state for the control plane.
func (s *Scheduler) Status() Status {
	if s.GraphLock != nil {
		s.GraphLock.Lock()
		defer s.GraphLock.Unlock()
	}
	s.mu.Lock()
	running := s.running
	count := s.frameCount
	s.mu.Unlock()
	return Status{
		Running:         running,
		FPS:             s.fps,
		FrameCount:      count,
		NodeCount:       len(s.g.Nodes()),
		ConnectionCount: len(s.g.Edges()),
	}
}

// Run drives ticks at the configured frame rate until ctx is cancelled or
// RequestStop is called. It returns EngineAlreadyRunning if already running.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errs.New(errs.KindEngineAlreadyRunning, nil)
	}
	s.running = true
	s.stopRequested = false
	s.mu.Unlock()

	ticker := time.NewTicker(s.deadline)
	defer ticker.Stop()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		s.mu.Lock()
		stop := s.stopRequested
		s.mu.Unlock()
		if stop {
			return nil
		}
		if err := s.Tick(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// audioMeter is implemented by nodes exposing per-tick level analysis
// (nodes.AudioOutput); readings are mirrored into telemetry custom metrics
// as audio.peak.<node_id> / audio.rms.<node_id> gauges.
type audioMeter interface {
	Levels() (peak, rms float32)
}

// isControlKind reports whether k is one of the Control.* kinds.
func isControlKind(k graph.Kind) bool { return strings.HasPrefix(string(k), "control.") }

// isEffectKind reports whether k is one of the Effect.* kinds.
func isEffectKind(k graph.Kind) bool { return strings.HasPrefix(string(k), "effect.") }

// Tick runs exactly one tick: control pass, process pass, close tick. It is
// exported directly (rather than only through Run) so callers and tests can
// drive ticks deterministically without a wall-clock ticker.
func (s *Scheduler) Tick() error {
	if s.GraphLock != nil {
		s.GraphLock.Lock()
		defer s.GraphLock.Unlock()
	}
	start := time.Now()
	s.mu.Lock()
	frameIdx := s.frameCount
	s.mu.Unlock()
	tickTime := float64(frameIdx) / s.fps

	tickSpan := s.telemetry.StartSpan(fmt.Sprintf("tick{%d}", frameIdx), 0, nil)
	defer tickSpan.Close()

	order := s.g.TopologicalOrder()
	outputs := make(map[graph.NodeID]frame.Bundle, len(order))

	// Control pass: evaluate every Control node in topological order,
	// collecting commands, then apply the deduplicated result before the
	// process pass runs.
	var commands []frame.ControlCommand
	for _, id := range order {
		node, ok := s.g.Node(id)
		if !ok || !isControlKind(node.Describe().Kind) {
			continue
		}
		input := s.mergeInputs(id, outputs)
		out, err := s.runNode(node, id, node.Describe().Kind, tickTime, input, tickSpan.ID())
		outputs[id] = out
		if err == nil && out.Control != nil {
			commands = append(commands, out.Control.Commands...)
		}
	}
	for _, c := range dedupeCommands(commands) {
		s.applyCommand(c)
	}

	// Process pass: every non-Control node, in topological order. Sinks
	// deliver to their external destination as part of their own Process
	// call (VirtualWebcam/Preview/AudioOutput forward internally), so no
	// separate sink-collection step is needed beyond this loop.
	for _, id := range order {
		node, ok := s.g.Node(id)
		if !ok {
			continue
		}
		kind := node.Describe().Kind
		if isControlKind(kind) {
			continue
		}
		input := s.mergeInputs(id, outputs)
		out, _ := s.runNode(node, id, kind, tickTime, input, tickSpan.ID())
		outputs[id] = out

		if m, ok := node.(audioMeter); ok {
			peak, rms := m.Levels()
			s.telemetry.RecordCustom("audio.peak."+id.String(), telemetry.MetricGauge, float64(peak))
			s.telemetry.RecordCustom("audio.rms."+id.String(), telemetry.MetricGauge, float64(rms))
		}
		if kind == graph.KindTallyMonitor {
			s.telemetry.Log(telemetry.LogEvent{
				Level:    telemetry.LevelDebug,
				Category: "tally",
				Message:  "tally observed",
				NodeID:   id.String(),
				Context: map[string]string{
					"program": strconv.FormatBool(out.Tally.Program),
					"preview": strconv.FormatBool(out.Tally.Preview),
				},
			})
		}
	}

	duration := time.Since(start)
	s.closeTick(frameIdx, duration)
	return nil
}

// mergeInputs builds node id's input bundle from the outputs already
// computed this tick for its predecessors, in edge-insertion order: the
// first render/audio predecessor becomes the primary payload with the full
// ordered list carried alongside (RenderLayers/AudioLayers), control
// commands concatenate, and tally states merge with the pre-merge list
// preserved in TallyLayers.
func (s *Scheduler) mergeInputs(id graph.NodeID, outputs map[graph.NodeID]frame.Bundle) frame.Bundle {
	in := frame.Empty()
	var renders []*frame.Raster2D
	var audios []*frame.AudioData
	var controlCmds []frame.ControlCommand
	var tallies []frame.TallyMetadata
	haveTally := false

	for _, e := range s.g.Edges() {
		if e.Target != id {
			continue
		}
		out, ok := outputs[e.Source]
		if !ok {
			continue
		}
		switch e.Type {
		case graph.PortRender:
			if out.Render != nil {
				renders = append(renders, out.Render)
			}
		case graph.PortAudio:
			if out.Audio != nil {
				audios = append(audios, out.Audio)
			}
		case graph.PortControl:
			if out.Control != nil {
				controlCmds = append(controlCmds, out.Control.Commands...)
			}
		case graph.PortTally:
			tallies = append(tallies, out.Tally)
			haveTally = true
		}
	}

	if len(renders) > 0 {
		in.Render = renders[0]
		in.RenderLayers = renders
	}
	if len(renders) > 1 {
		in.Secondary = renders[1]
	}
	if len(audios) > 0 {
		in.Audio = audios[0]
		in.AudioLayers = audios
	}
	if len(audios) > 1 {
		in.SecondaryAudio = audios[1]
	}
	if len(controlCmds) > 0 {
		in.Control = &frame.ControlData{Commands: controlCmds}
	}
	if haveTally {
		in.Tally = frame.MergeTally(tallies, id)
		in.TallyLayers = tallies
	}
	return in
}

// dedupeCommands keeps the last emission in topological order for each
// (target_node, parameter) pair, preserving the order of first
// occurrence.
func dedupeCommands(cmds []frame.ControlCommand) []frame.ControlCommand {
	type key struct {
		node  graph.NodeID
		param string
	}
	latest := make(map[key]frame.ControlCommand, len(cmds))
	var order []key
	for _, c := range cmds {
		k := key{c.TargetNode, c.Parameter}
		if _, exists := latest[k]; !exists {
			order = append(order, k)
		}
		latest[k] = c
	}
	out := make([]frame.ControlCommand, 0, len(order))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out
}

// applyCommand writes a deduplicated ControlCommand onto its target
// parameter, coercing the command's float64 payload to the target
// parameter's declared type and clamping to its declared range.
func (s *Scheduler) applyCommand(c frame.ControlCommand) {
	node, ok := s.g.Node(c.TargetNode)
	if !ok {
		return
	}
	def, ok := node.Describe().Schema[c.Parameter]
	if !ok {
		return
	}
	v := c.Value
	if def.Min != nil && v < *def.Min {
		v = *def.Min
	}
	if def.Max != nil && v > *def.Max {
		v = *def.Max
	}
	_ = node.SetParameter(c.Parameter, coerce(def.Type, v))
}

func coerce(t graph.ValueType, v float64) graph.Value {
	switch t {
	case graph.TypeInt:
		return graph.Int(int64(math.Round(v)))
	case graph.TypeBool:
		return graph.Bool(v != 0)
	default:
		return graph.Float(v)
	}
}

// runNode invokes node.Process under a child span, routing any error
// through the Resilience Manager and honoring its RecoveryAction. A node
// forced to identity by EmergencyMode or a MemoryAllocation degradation
// (Blur specifically) skips Process entirely and returns input unchanged.
func (s *Scheduler) runNode(node graph.Node, id graph.NodeID, kind graph.Kind, tickTime float64, input frame.Bundle, parentSpan uint64) (frame.Bundle, error) {
	if s.resilience.EmergencyModeActive() && isEffectKind(kind) {
		return input, nil
	}
	s.mu.Lock()
	blurDisabled := s.blurDisabled
	s.mu.Unlock()
	if blurDisabled && kind == graph.KindEffectBlur {
		return input, nil
	}

	span := s.telemetry.StartSpan("node", parentSpan, map[string]string{
		"node_id": id.String(), "kind": string(kind),
	})
	out, err := node.Process(tickTime, input)
	span.Close()
	if err == nil {
		return out, nil
	}

	category := classifyNodeError(err)
	s.telemetry.RecordError(fmt.Sprintf("%T", err), errSeverity(err), category.String(), id.String())
	action := s.resilience.RecordError(category)

	switch action {
	case resilience.ActionRetry:
		strat := s.resilience.Strategy(category)
		delay := strat.BaseDelay
		for attempt := 0; attempt < strat.MaxAttempts; attempt++ {
			s.SleepFunc(delay)
			out, err = node.Process(tickTime, input)
			if err == nil {
				return out, nil
			}
			delay = time.Duration(float64(delay) * strat.Backoff)
		}
		return input, nil // exhausted retries: pass through rather than propagate
	case resilience.ActionQualityReduced:
		strat := s.resilience.Strategy(category)
		s.resilience.RaiseDegradation()
		if strat.DisableBlur {
			s.mu.Lock()
			s.blurDisabled = true
			s.mu.Unlock()
		}
		return input, nil
	case resilience.ActionFallback:
		return input, nil
	case resilience.ActionGracefulShutdown:
		s.RequestStop()
		return input, nil
	default: // ActionLogAndContinue
		return input, nil
	}
}

// classifyNodeError maps a node-returned error onto a resilience.Category.
// errs.Error-typed causes are mapped by their taxonomy Category; anything
// else defaults to NodeProcessing, since it originated from a node's own
// Process implementation rather than the frame/resource/gpu/hardware
// subsystems.
func classifyNodeError(err error) resilience.Category {
	var ce *errs.Error
	if e, ok := err.(*errs.Error); ok {
		ce = e
	}
	if ce == nil {
		return resilience.CategoryNodeProcessing
	}
	switch ce.Category {
	case errs.CategoryFrame:
		return resilience.CategoryFrameProcessing
	case errs.CategoryResource:
		return resilience.CategoryMemoryAllocation
	case errs.CategoryHardware:
		return resilience.CategoryGpuProcessing
	case errs.CategoryNetwork:
		return resilience.CategoryNetworkConnection
	default:
		return resilience.CategoryNodeProcessing
	}
}

func errSeverity(err error) string {
	if e, ok := err.(*errs.Error); ok {
		return e.Severity.String()
	}
	return errs.SeverityError.String()
}

// closeTick updates frame_count/total_processing_time, the rolling
// tick-duration window, and notifies OnFrameProcessed.
func (s *Scheduler) closeTick(frameIdx uint64, duration time.Duration) {
	s.telemetry.RecordFrameProcessed(duration)

	// Sampling the heap every tick would stall the pipeline; once per
	// rolling window keeps memory_peak_bytes current enough for the
	// resilience thresholds it informs.
	if (frameIdx+1)%rollingWindow == 0 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		s.telemetry.RecordMemoryPeak(ms.HeapAlloc)
	}

	s.mu.Lock()
	s.frameCount = frameIdx + 1
	s.tickDurations = append(s.tickDurations, duration)
	if len(s.tickDurations) > rollingWindow {
		s.tickDurations = s.tickDurations[len(s.tickDurations)-rollingWindow:]
	}
	avg := rollingAverage(s.tickDurations)
	deadline := s.deadline
	s.mu.Unlock()

	if avg > deadline {
		s.resilience.RaiseDegradation()
	}

	if s.OnFrameProcessed != nil {
		s.OnFrameProcessed(FrameProcessedEvent{Timestamp: time.Now(), FrameIndex: frameIdx})
	}
}

func rollingAverage(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}
