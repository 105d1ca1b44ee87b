// engine_test.go
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/constellationstudio/engine/internal/errs"
	"github.com/constellationstudio/engine/internal/graph"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTestEngine(t *testing.T) (*Engine, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	e := New(Config{FPS: 60, Logger: zerolog.Nop(), Events: sink, SessionID: t.Name()})
	return e, sink
}

func TestAddNodeUnknownKindFails(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.AddNode(graph.Kind("bogus"), "x")
	require.Error(t, err)
	var ee *errs.Error
	require.ErrorAs(t, err, &ee)
	require.Equal(t, errs.KindInvalidNodeKind, ee.Kind)
}

func TestAddConnectDisconnectRemoveNode(t *testing.T) {
	e, sink := newTestEngine(t)

	source, err := e.AddNode(graph.KindInputTestPattern, "bars")
	require.NoError(t, err)
	target, err := e.AddNode(graph.KindOutputPreview, "preview")
	require.NoError(t, err)

	require.NoError(t, e.Connect(source, target, graph.PortRender))

	props, err := e.Describe(source)
	require.NoError(t, err)
	require.Equal(t, "bars", props.Name)

	require.Len(t, e.ListNodes(), 2)

	require.NoError(t, e.Disconnect(source, target))
	require.NoError(t, e.RemoveNode(source))
	require.NoError(t, e.RemoveNode(target))

	_, err = e.Describe(source)
	require.Error(t, err)

	var sawAdded, sawConnected, sawRemoved bool
	for _, ev := range sink.snapshot() {
		switch ev.Type {
		case "NodeAdded":
			sawAdded = true
		case "NodeConnected":
			sawConnected = true
		case "NodeRemoved":
			sawRemoved = true
		}
	}
	require.True(t, sawAdded)
	require.True(t, sawConnected)
	require.True(t, sawRemoved)
}

func TestConnectCycleReportsCycleDetected(t *testing.T) {
	e, _ := newTestEngine(t)
	a, err := e.AddNode(graph.KindEffectBlur, "a")
	require.NoError(t, err)
	b, err := e.AddNode(graph.KindEffectBlur, "b")
	require.NoError(t, err)
	require.NoError(t, e.Connect(a, b, graph.PortRender))

	err = e.Connect(b, a, graph.PortRender)
	require.Error(t, err)
	var ee *errs.Error
	require.ErrorAs(t, err, &ee)
	require.Equal(t, errs.KindCycleDetected, ee.Kind)
}

func TestSetParametersValidatesAgainstSchema(t *testing.T) {
	e, _ := newTestEngine(t)
	id, err := e.AddNode(graph.KindEffectColorCorrect, "cc")
	require.NoError(t, err)

	err = e.SetParameters(id, map[string]graph.Value{"brightness": graph.Float(1.5)})
	require.NoError(t, err)

	err = e.SetParameters(id, map[string]graph.Value{"nonexistent": graph.Float(1)})
	require.Error(t, err)
}

func TestStartStopLifecycle(t *testing.T) {
	e, sink := newTestEngine(t)

	require.NoError(t, e.Start(context.Background()))
	err := e.Start(context.Background())
	require.Error(t, err)
	var ee *errs.Error
	require.ErrorAs(t, err, &ee)
	require.Equal(t, errs.KindEngineAlreadyRunning, ee.Kind)

	require.NoError(t, e.Stop())
	require.Eventually(t, func() bool { return !e.Status().Running }, time.Second, 5*time.Millisecond)

	err = e.Stop()
	require.Error(t, err)
	require.ErrorAs(t, err, &ee)
	require.Equal(t, errs.KindEngineNotRunning, ee.Kind)

	var sawStarted, sawStopped bool
	for _, ev := range sink.snapshot() {
		switch ev.Type {
		case "EngineStarted":
			sawStarted = true
		case "EngineStopped":
			sawStopped = true
		}
	}
	require.True(t, sawStarted)
	require.Eventually(t, func() bool {
		for _, ev := range sink.snapshot() {
			if ev.Type == "EngineStopped" {
				sawStopped = true
			}
		}
		return sawStopped
	}, time.Second, 5*time.Millisecond)
}

func TestHardwareNeverFails(t *testing.T) {
	e, _ := newTestEngine(t)
	adv := e.Hardware()
	require.NotEmpty(t, adv.GPUBackend)
}

func TestAttachRenderSinkRejectsWrongKind(t *testing.T) {
	e, _ := newTestEngine(t)
	id, err := e.AddNode(graph.KindEffectBlur, "blur")
	require.NoError(t, err)
	err = e.AttachRenderSink(id, nil)
	require.Error(t, err)
}
