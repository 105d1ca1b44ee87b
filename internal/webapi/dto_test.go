// dto_test.go
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package webapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/constellationstudio/engine/internal/graph"
)

func TestValueToJSONRoundTrip(t *testing.T) {
	schema := map[string]graph.ParamDef{
		"brightness": {Type: graph.TypeFloat},
		"enabled":    {Type: graph.TypeBool},
		"mode":       {Type: graph.TypeEnum},
		"tint":       {Type: graph.TypeColor},
	}

	cases := map[string]graph.Value{
		"brightness": graph.Float(1.5),
		"enabled":    graph.Bool(true),
		"mode":       graph.Enum("normal"),
		"tint":       graph.Color(1, 0.5, 0.25, 1),
	}

	for key, v := range cases {
		raw, err := valueToJSON(v)
		require.NoError(t, err)
		got, err := jsonToValue(schema, key, raw)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestJSONToValueUnknownKey(t *testing.T) {
	_, err := jsonToValue(map[string]graph.ParamDef{}, "missing", json.RawMessage(`1`))
	require.Error(t, err)
}

func TestToNodeDTOPortNames(t *testing.T) {
	props := graph.NodeProperties{
		Name:    "mixer",
		Kind:    graph.KindAudioMixer,
		Inputs:  []graph.PortType{graph.PortAudio, graph.PortAudio},
		Outputs: []graph.PortType{graph.PortAudio},
		Schema:  map[string]graph.ParamDef{},
	}
	dto := toNodeDTO(props)
	require.Equal(t, []string{"audio", "audio"}, dto.Inputs)
	require.Equal(t, []string{"audio"}, dto.Outputs)
}
