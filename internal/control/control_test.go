// control_test.go - LFO and mapping numeric behavior
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package control

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/constellationstudio/engine/internal/graph"
)

func TestLFOSineReachesAmplitudePlusOffset(t *testing.T) {
	target := uuid.New()
	lfo := NewLFO(graph.NewNodeID(), "lfo", nil)
	require.NoError(t, lfo.SetParameter("frequency", graph.Float(1.0)))
	require.NoError(t, lfo.SetParameter("amplitude", graph.Float(0.5)))
	require.NoError(t, lfo.SetParameter("offset", graph.Float(1.0)))
	lfo.AddMapping(NewMapping("value", target, "brightness"))

	require.InDelta(t, 1.5, lfo.Value(0.25), 1e-3)
	require.InDelta(t, 0.5, lfo.Value(0.75), 1e-3)
}

func TestLFOTriangleRisesFromCycleStart(t *testing.T) {
	lfo := NewLFO(graph.NewNodeID(), "lfo", nil)
	require.NoError(t, lfo.SetParameter("waveform", graph.Enum(string(WaveTriangle))))

	require.InDelta(t, -1.0, lfo.Value(0), 1e-9)
	require.InDelta(t, 0.0, lfo.Value(0.25), 1e-9)
	require.InDelta(t, 1.0, lfo.Value(0.5), 1e-9)
	require.InDelta(t, 0.0, lfo.Value(0.75), 1e-9)
}

func TestMappingLinearIdentity(t *testing.T) {
	m := NewMapping("x", uuid.New(), "y")
	require.Equal(t, 0.0, m.Apply(0.0))
	require.Equal(t, 0.5, m.Apply(0.5))
	require.Equal(t, 1.0, m.Apply(1.0))
}

func TestMappingScaled(t *testing.T) {
	m := NewMapping("x", uuid.New(), "y")
	m.TargetMin, m.TargetMax = 0, 10
	require.Equal(t, 0.0, m.Apply(0.0))
	require.Equal(t, 5.0, m.Apply(0.5))
	require.Equal(t, 10.0, m.Apply(1.0))
}

func TestMappingExponential(t *testing.T) {
	m := NewMapping("x", uuid.New(), "y")
	m.Curve = ResponseCurve{Kind: CurveExponential, Exponent: 2.0}
	require.Equal(t, 0.0, m.Apply(0.0))
	require.Equal(t, 0.25, m.Apply(0.5))
	require.Equal(t, 1.0, m.Apply(1.0))
}

func TestMathRecognizedShapes(t *testing.T) {
	n := NewMath(graph.NewNodeID(), "math")
	require.NoError(t, n.SetParameter("expression", graph.String("t")))
	require.InDelta(t, 0.0, n.Evaluate(0.0), 1e-9)
	require.InDelta(t, 1.0, n.Evaluate(1.0), 1e-9)

	require.NoError(t, n.SetParameter("expression", graph.String("a")))
	require.NoError(t, n.SetParameter("a", graph.Float(3.0)))
	require.Equal(t, 3.0, n.Evaluate(1.0))
}

func TestMathUnrecognizedDefaultsToZero(t *testing.T) {
	n := NewMath(graph.NewNodeID(), "math")
	require.NoError(t, n.SetParameter("expression", graph.String("not an expression at all (((")))
	require.Equal(t, 0.0, n.Evaluate(1.0))
}
