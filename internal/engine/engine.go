// engine.go - wires Graph, Scheduler, Resilience Manager, and Telemetry into
// the single collaborator the control-plane binding drives.
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

// Package engine owns one graph.Graph and its scheduler.Scheduler,
// translates control-plane requests (add/remove node, connect/disconnect,
// bulk parameter set, start/stop) into calls against them, and republishes
// scheduler/graph activity as named push events over an attached EventSink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/constellationstudio/engine/internal/errs"
	"github.com/constellationstudio/engine/internal/graph"
	"github.com/constellationstudio/engine/internal/nodes"
	"github.com/constellationstudio/engine/internal/platform"
	"github.com/constellationstudio/engine/internal/resilience"
	"github.com/constellationstudio/engine/internal/scheduler"
	"github.com/constellationstudio/engine/internal/telemetry"
)

// Event is one control-plane push event; Type is the discriminant
// (NodeAdded, NodeRemoved, NodeConnected, NodeDisconnected,
// ParameterChanged, FrameProcessed, EngineStarted, EngineStopped, Error).
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// EventSink receives push events for the control-plane's event stream.
type EventSink interface {
	Publish(Event)
}

type noopSink struct{}

func (noopSink) Publish(Event) {}

// Engine is the process-wide collaborator a control-plane binding drives.
// One Engine owns exactly one graph and its scheduler; deployments that
// need parallel pipelines run independent Engines with no shared node
// state.
type Engine struct {
	mu     sync.RWMutex
	g      *graph.Graph
	res    *resilience.Manager
	tel    *telemetry.Manager
	sched  *scheduler.Scheduler
	gpu    platform.GpuContext
	events EventSink
	reg    *prometheus.Registry
	cancel context.CancelFunc

	// previewSink, when non-nil, is wired into every Preview node the
	// factory constructs (the optional on-screen window).
	previewSink nodes.RenderSink
}

// Config configures a new Engine.
type Config struct {
	FPS    float64
	Logger zerolog.Logger
	Events EventSink
	// SessionID labels exported telemetry; defaults to "engine".
	SessionID string
	// PreviewSink, when non-nil, becomes the default render sink for
	// Preview nodes (e.g. a platform.EbitenPreview window).
	PreviewSink nodes.RenderSink
}

// New constructs an Engine with a fresh graph, resilience manager, and
// telemetry manager, wired to a GpuContext obtained via
// platform.NewGpuContext (real Vulkan device if present, software fallback
// otherwise — engine construction never fails for lack of a GPU). Its own
// Prometheus registry is exposed via Registry() for a /metrics handler.
func New(cfg Config) *Engine {
	if cfg.Events == nil {
		cfg.Events = noopSink{}
	}
	if cfg.SessionID == "" {
		cfg.SessionID = "engine"
	}
	g := graph.New()
	res := resilience.NewManager()
	reg := prometheus.NewRegistry()
	tel := telemetry.Init(cfg.SessionID, cfg.Logger, reg)
	sched := scheduler.New(g, res, tel, cfg.FPS)

	e := &Engine{g: g, res: res, tel: tel, sched: sched, gpu: platform.NewGpuContext(), events: cfg.Events, reg: reg, previewSink: cfg.PreviewSink}
	// The scheduler ticks under the same mutex that guards control-plane
	// graph mutations, so a live AddNode/Connect never races a tick in
	// flight; it simply lands between ticks.
	sched.GraphLock = &e.mu
	sched.OnFrameProcessed = func(ev scheduler.FrameProcessedEvent) {
		e.events.Publish(Event{Type: "FrameProcessed", Data: map[string]any{"timestamp": ev.Timestamp}})
	}
	return e
}

// AddNode constructs a node of kind with an auto-generated ID and adds it
// to the graph, returning the ID. Returns errs.KindInvalidNodeKind for an
// unrecognized kind.
func (e *Engine) AddNode(kind graph.Kind, name string) (graph.NodeID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := graph.NewNodeID()
	n, err := e.newNode(kind, id, name)
	if err != nil {
		return graph.NodeID{}, err
	}
	e.g.AddNode(n)
	e.events.Publish(Event{Type: "NodeAdded", Data: n.Describe()})
	return id, nil
}

// RemoveNode removes a node and its incident edges.
func (e *Engine) RemoveNode(id graph.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.g.Node(id); !ok {
		return errs.New(errs.KindNodeNotFound, nil)
	}
	e.g.RemoveNode(id)
	e.events.Publish(Event{Type: "NodeRemoved", Data: map[string]any{"id": id}})
	return nil
}

// Describe returns a node's static description, or KindNodeNotFound.
func (e *Engine) Describe(id graph.NodeID) (graph.NodeProperties, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.g.Node(id)
	if !ok {
		return graph.NodeProperties{}, errs.New(errs.KindNodeNotFound, nil)
	}
	return n.Describe(), nil
}

// ListNodes returns every node's description in insertion order.
func (e *Engine) ListNodes() []graph.NodeProperties {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := e.g.Nodes()
	out := make([]graph.NodeProperties, 0, len(ids))
	for _, id := range ids {
		if n, ok := e.g.Node(id); ok {
			out = append(out, n.Describe())
		}
	}
	return out
}

// SetParameters bulk-applies a parameter set to a node, stopping at the
// first ParamError.
func (e *Engine) SetParameters(id graph.NodeID, params map[string]graph.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.g.Node(id)
	if !ok {
		return errs.New(errs.KindNodeNotFound, nil)
	}
	for k, v := range params {
		if err := n.SetParameter(k, v); err != nil {
			return err
		}
	}
	e.events.Publish(Event{Type: "ParameterChanged", Data: map[string]any{"id": id, "parameters": params}})
	return nil
}

// Connect adds an edge. A rejected cycle surfaces as errs.KindCycleDetected
// (the graph's own *CycleError stays wrapped inside as the cause, keeping
// the discovery path available), anything else passes through unchanged.
func (e *Engine) Connect(source, target graph.NodeID, portType graph.PortType) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.g.Connect(source, target, portType); err != nil {
		var ce *graph.CycleError
		if errors.As(err, &ce) {
			return errs.New(errs.KindCycleDetected, ce)
		}
		return err
	}
	e.events.Publish(Event{Type: "NodeConnected", Data: map[string]any{"source": source, "target": target, "type": portType.String()}})
	return nil
}

// Disconnect removes an edge.
func (e *Engine) Disconnect(source, target graph.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.g.Disconnect(source, target)
	e.events.Publish(Event{Type: "NodeDisconnected", Data: map[string]any{"source": source, "target": target}})
	return nil
}

// Start runs the scheduler on its own goroutine until Stop or ctx is
// cancelled. Returns errs.KindEngineAlreadyRunning if already running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.sched.IsRunning() {
		e.mu.Unlock()
		return errs.New(errs.KindEngineAlreadyRunning, nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	e.events.Publish(Event{Type: "EngineStarted"})
	go func() {
		// Stop cancels runCtx, so context.Canceled is the normal shutdown
		// path, not an error worth streaming.
		if err := e.sched.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			e.events.Publish(Event{Type: "Error", Data: map[string]any{"message": err.Error()}})
		}
		e.events.Publish(Event{Type: "EngineStopped"})
	}()
	return nil
}

// Stop requests the scheduler stop at the next tick boundary. Returns
// errs.KindEngineNotRunning if not running.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sched.IsRunning() {
		return errs.New(errs.KindEngineNotRunning, nil)
	}
	e.sched.RequestStop()
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

// Status snapshots the scheduler's observable state.
func (e *Engine) Status() scheduler.Status {
	return e.sched.Status()
}

// Hardware reports the GPU capability advisory, probing afresh on each
// call.
func (e *Engine) Hardware() platform.HardwareAdvisory {
	return platform.ProbeHardware()
}

// Telemetry exposes the engine's telemetry manager for export endpoints.
func (e *Engine) Telemetry() *telemetry.Manager { return e.tel }

// Gpu exposes the engine's GPU context so a host wiring real processing
// backends can allocate from the same bounded FrameBuffer pool.
func (e *Engine) Gpu() platform.GpuContext { return e.gpu }

// Registry exposes the engine's Prometheus registry for a /metrics handler.
func (e *Engine) Registry() *prometheus.Registry { return e.reg }

// SetEventSink rewires where the engine publishes control-plane events,
// letting a control-plane binding (internal/webapi) attach its hub after
// both it and the Engine have been constructed.
func (e *Engine) SetEventSink(sink EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sink == nil {
		sink = noopSink{}
	}
	e.events = sink
}

// AttachRenderSink rewires a VirtualWebcam or Preview node's sink after
// construction (the factory wires VirtualWebcam with no sink and Preview
// with the engine's configured preview sink, which may be nil).
func (e *Engine) AttachRenderSink(id graph.NodeID, sink nodes.RenderSink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	node, ok := e.g.Node(id)
	if !ok {
		return errs.New(errs.KindNodeNotFound, nil)
	}
	switch n := node.(type) {
	case *nodes.VirtualWebcam:
		n.Sink = sink
	case *nodes.Preview:
		n.Sink = sink
	default:
		return fmt.Errorf("node %s does not accept a render sink", id)
	}
	return nil
}

// AttachAudioSink rewires an AudioOutput node's sink after construction.
func (e *Engine) AttachAudioSink(id graph.NodeID, sink nodes.AudioSink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	node, ok := e.g.Node(id)
	if !ok {
		return errs.New(errs.KindNodeNotFound, nil)
	}
	out, ok := node.(*nodes.AudioOutput)
	if !ok {
		return fmt.Errorf("node %s does not accept an audio sink", id)
	}
	out.Sink = sink
	return nil
}
