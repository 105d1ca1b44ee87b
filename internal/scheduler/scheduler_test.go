// scheduler_test.go - tick-loop behavior end to end
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package scheduler

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/constellationstudio/engine/internal/control"
	"github.com/constellationstudio/engine/internal/errs"
	"github.com/constellationstudio/engine/internal/frame"
	"github.com/constellationstudio/engine/internal/graph"
	"github.com/constellationstudio/engine/internal/nodes"
	"github.com/constellationstudio/engine/internal/resilience"
	"github.com/constellationstudio/engine/internal/telemetry"
)

func newHarness(g *graph.Graph) *Scheduler {
	tel := telemetry.Init("test", zerolog.Nop(), prometheus.NewRegistry())
	s := New(g, resilience.NewManager(), tel, 30)
	s.SleepFunc = func(time.Duration) {} // no real delays in tests
	return s
}

// capturingSink records the last frame delivered to it, standing in for a
// platform RenderSink.
type capturingSink struct {
	last *frame.Raster2D
}

func (c *capturingSink) SendFrame(r *frame.Raster2D) error {
	c.last = r
	return nil
}

func TestEmptyPipelineTicksWithoutError(t *testing.T) {
	g := graph.New()
	s := newHarness(g)

	var gotEvent FrameProcessedEvent
	s.OnFrameProcessed = func(ev FrameProcessedEvent) { gotEvent = ev }

	require.NoError(t, s.Tick())
	require.Equal(t, uint64(1), s.FrameCount())
	require.Equal(t, uint64(0), gotEvent.FrameIndex)
}

func TestTestPatternToPreviewGradient(t *testing.T) {
	g := graph.New()
	pattern := nodes.NewTestPattern(graph.NewNodeID(), "pattern")
	require.NoError(t, pattern.SetParameter("pattern_type", graph.Enum("gradient")))
	sink := &capturingSink{}
	preview := nodes.NewPreview(graph.NewNodeID(), "preview", sink)

	patID := g.AddNode(pattern)
	prevID := g.AddNode(preview)
	require.NoError(t, g.Connect(patID, prevID, graph.PortRender))

	s := newHarness(g)
	require.NoError(t, s.Tick())

	require.NotNil(t, sink.last)
	require.Equal(t, 1920, sink.last.Width)
	require.Equal(t, 1080, sink.last.Height)

	leftR := sink.last.Bytes[0]
	rightR := sink.last.Bytes[(1919*4)]
	require.Less(t, leftR, rightR)
}

func TestColorBarsToVirtualWebcam(t *testing.T) {
	g := graph.New()
	pattern := nodes.NewTestPattern(graph.NewNodeID(), "bars")
	require.NoError(t, pattern.SetParameter("pattern_type", graph.Enum("color_bars")))
	sink := &capturingSink{}
	webcam := nodes.NewVirtualWebcam(graph.NewNodeID(), "cam", sink)

	patID := g.AddNode(pattern)
	camID := g.AddNode(webcam)
	require.NoError(t, g.Connect(patID, camID, graph.PortRender))

	s := newHarness(g)
	require.NoError(t, s.Tick())

	require.NotNil(t, sink.last)
	expected := [8][4]byte{
		{255, 255, 255, 255}, {255, 255, 0, 255}, {0, 255, 255, 255}, {0, 255, 0, 255},
		{255, 0, 255, 255}, {255, 0, 0, 255}, {0, 0, 255, 255}, {0, 0, 0, 255},
	}
	barWidth := sink.last.Width / 8
	for i, want := range expected {
		x := i*barWidth + 1
		idx := x * 4
		require.Equal(t, want[0], sink.last.Bytes[idx], "bar %d R", i)
		require.Equal(t, want[1], sink.last.Bytes[idx+1], "bar %d G", i)
		require.Equal(t, want[2], sink.last.Bytes[idx+2], "bar %d B", i)
	}
}

func TestLFODrivesBrightness(t *testing.T) {
	g := graph.New()
	pattern := nodes.NewTestPattern(graph.NewNodeID(), "pattern")
	cc := nodes.NewColorCorrect(graph.NewNodeID(), "cc")
	lfo := control.NewLFO(graph.NewNodeID(), "lfo", nil)
	require.NoError(t, lfo.SetParameter("frequency", graph.Float(1.0)))
	require.NoError(t, lfo.SetParameter("amplitude", graph.Float(0.5)))
	require.NoError(t, lfo.SetParameter("offset", graph.Float(1.0)))

	patID := g.AddNode(pattern)
	ccID := g.AddNode(cc)
	g.AddNode(lfo)
	lfo.AddMapping(control.NewMapping("value", ccID, "brightness"))

	require.NoError(t, g.Connect(patID, ccID, graph.PortRender))

	// At 60fps, frame 15 lands on t=0.25s, the sine peak for a 1Hz LFO.
	tel := telemetry.Init("t2", zerolog.Nop(), prometheus.NewRegistry())
	s := New(g, resilience.NewManager(), tel, 60)
	s.SleepFunc = func(time.Duration) {}

	for i := 0; i < 16; i++ {
		require.NoError(t, s.Tick())
	}
	v, ok := cc.GetParameter("brightness")
	require.True(t, ok)
	require.InDelta(t, 1.5, v.F, 1e-3)
}

func TestCycleRejectionLeavesEdgesIntact(t *testing.T) {
	g := graph.New()
	a := nodes.NewTestPattern(graph.NewNodeID(), "a")
	b := nodes.NewColorCorrect(graph.NewNodeID(), "b")
	c := nodes.NewColorCorrect(graph.NewNodeID(), "c")
	aID := g.AddNode(a)
	bID := g.AddNode(b)
	cID := g.AddNode(c)
	require.NoError(t, g.Connect(aID, bID, graph.PortRender))
	require.NoError(t, g.Connect(bID, cID, graph.PortRender))

	err := g.Connect(cID, aID, graph.PortRender)
	require.Error(t, err)

	before := len(g.Edges())
	require.Equal(t, 2, before)
}

func TestDedupeCommandsKeepsLastEmission(t *testing.T) {
	id := graph.NewNodeID()
	cmds := []frame.ControlCommand{
		{TargetNode: id, Parameter: "brightness", Value: 1},
		{TargetNode: id, Parameter: "brightness", Value: 2},
		{TargetNode: id, Parameter: "contrast", Value: 3},
	}
	out := dedupeCommands(cmds)
	require.Len(t, out, 2)
	require.Equal(t, 2.0, out[0].Value)
	require.Equal(t, 3.0, out[1].Value)
}

// failingNode always returns a frame-processing error, exercising the
// Retry recovery path.
type failingNode struct {
	graph.BaseNode
	calls int
}

func (f *failingNode) Process(_ float64, b frame.Bundle) (frame.Bundle, error) {
	f.calls++
	return b, errs.New(errs.KindFrameProcessingFailed, nil)
}

func TestRetryStrategyRerunsFailingNode(t *testing.T) {
	g := graph.New()
	f := &failingNode{}
	f.BaseNode = graph.NewBaseNode(graph.NewNodeID(), "boom", graph.KindEffectSharpen,
		[]graph.PortType{graph.PortRender}, []graph.PortType{graph.PortRender}, nil)
	g.AddNode(f)

	s := newHarness(g)
	require.NoError(t, s.Tick())
	// One initial invocation plus the strategy's three retries.
	require.Equal(t, 4, f.calls)
}

func TestEmergencyModeForcesEffectsToIdentity(t *testing.T) {
	g := graph.New()
	pattern := nodes.NewTestPattern(graph.NewNodeID(), "solid")
	require.NoError(t, pattern.SetParameter("pattern_type", graph.Enum("solid_color")))
	require.NoError(t, pattern.SetParameter("color", graph.Color(0.25, 0.25, 0.25, 1)))
	cc := nodes.NewColorCorrect(graph.NewNodeID(), "cc")
	require.NoError(t, cc.SetParameter("brightness", graph.Float(2)))
	sink := &capturingSink{}
	preview := nodes.NewPreview(graph.NewNodeID(), "preview", sink)

	patID := g.AddNode(pattern)
	ccID := g.AddNode(cc)
	prevID := g.AddNode(preview)
	require.NoError(t, g.Connect(patID, ccID, graph.PortRender))
	require.NoError(t, g.Connect(ccID, prevID, graph.PortRender))

	res := resilience.NewManager()
	for i := 0; i < 8; i++ {
		res.RaiseDegradation()
	}
	require.True(t, res.EmergencyModeActive())

	tel := telemetry.Init("em", zerolog.Nop(), prometheus.NewRegistry())
	s := New(g, res, tel, 30)
	s.SleepFunc = func(time.Duration) {}
	require.NoError(t, s.Tick())

	require.NotNil(t, sink.last)
	// brightness=2 would have pushed 63 toward 127; emergency mode forces
	// the effect to identity, so the solid color arrives untouched.
	require.Equal(t, byte(63), sink.last.Bytes[0])
}

// toneNode emits a constant-level audio block, standing in for a live
// audio source with a known signal.
type toneNode struct {
	graph.BaseNode
	level float32
}

func (n *toneNode) Process(_ float64, _ frame.Bundle) (frame.Bundle, error) {
	out := frame.Empty()
	out.Audio = &frame.AudioData{SampleRate: 48000, Channels: 1, Samples: []float32{n.level, n.level}}
	return out, nil
}

func TestMixerConsumesEveryAudioPredecessor(t *testing.T) {
	g := graph.New()
	mixer := nodes.NewAudioMixer(graph.NewNodeID(), "mix")
	mixID := g.AddNode(mixer)
	out := nodes.NewAudioOutput(graph.NewNodeID(), "out", nil)
	outID := g.AddNode(out)

	for _, level := range []float32{0.3, 0.6, 0.9} {
		tone := &toneNode{level: level}
		tone.BaseNode = graph.NewBaseNode(graph.NewNodeID(), "tone", graph.KindAudioInput,
			nil, []graph.PortType{graph.PortAudio}, nil)
		require.NoError(t, g.Connect(g.AddNode(tone), mixID, graph.PortAudio))
	}
	require.NoError(t, g.Connect(mixID, outID, graph.PortAudio))

	s := newHarness(g)
	require.NoError(t, s.Tick())

	// (0.3 + 0.6 + 0.9) / 3: wrong if the mixer dropped the third input.
	peak, _ := out.Levels()
	require.InDelta(t, 0.6, peak, 1e-6)
}

func TestAudioOutputLevelsMirroredToTelemetry(t *testing.T) {
	g := graph.New()
	in := nodes.NewAudioInput(graph.NewNodeID(), "in", nil)
	out := nodes.NewAudioOutput(graph.NewNodeID(), "out", nil)
	inID := g.AddNode(in)
	outID := g.AddNode(out)
	require.NoError(t, g.Connect(inID, outID, graph.PortAudio))

	tel := telemetry.Init("meter", zerolog.Nop(), prometheus.NewRegistry())
	s := New(g, resilience.NewManager(), tel, 30)
	s.SleepFunc = func(time.Duration) {}
	require.NoError(t, s.Tick())

	peak, ok := tel.CustomMetricValue("audio.peak." + outID.String())
	require.True(t, ok)
	require.Equal(t, 0.0, peak) // silence from the backend-less input
}

func TestStopHonoredBetweenTicksOnly(t *testing.T) {
	g := graph.New()
	s := newHarness(g)

	var events []FrameProcessedEvent
	s.OnFrameProcessed = func(ev FrameProcessedEvent) { events = append(events, ev) }

	require.NoError(t, s.Tick())
	s.RequestStop()
	// A Tick() call made directly (not through Run) always executes; Stop
	// only gates Run's loop. Simulate Run's boundary check here.
	require.True(t, func() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.stopRequested }())
	require.Len(t, events, 1)
}
