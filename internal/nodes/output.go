// output.go - output-kind nodes
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package nodes

import (
	"github.com/constellationstudio/engine/internal/frame"
	"github.com/constellationstudio/engine/internal/graph"
)

var virtualWebcamSchema = map[string]graph.ParamDef{
	"device_name": {Type: graph.TypeString, Default: graph.String("Constellation Studio")},
	"resolution":  {Type: graph.TypeEnum, Default: graph.Enum("1920x1080")},
	"fps":         {Type: graph.TypeInt, Default: graph.Int(30), Min: floatPtr(1), Max: floatPtr(60)},
}

// RenderSink receives one rendered frame per tick, typically a
// platform-specific virtual camera device or a preview window.
type RenderSink interface {
	SendFrame(*frame.Raster2D) error
}

// VirtualWebcam forwards each tick's render output to a platform-provided
// virtual camera device and passes the bundle through unchanged.
type VirtualWebcam struct {
	graph.BaseNode
	Sink RenderSink
}

func NewVirtualWebcam(id graph.NodeID, name string, sink RenderSink) *VirtualWebcam {
	n := &VirtualWebcam{Sink: sink}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindOutputVirtualWebcam, []graph.PortType{graph.PortRender, graph.PortAudio}, nil, virtualWebcamSchema)
	return n
}

// SetParameter invalidates the virtual-camera backend on resource-affecting
// changes so the next Process reopens the device with the new settings.
func (n *VirtualWebcam) SetParameter(key string, value graph.Value) error {
	if err := n.BaseNode.SetParameter(key, value); err != nil {
		return err
	}
	switch key {
	case "device_name", "resolution", "fps":
		invalidate(n.Sink)
	}
	return nil
}

func (n *VirtualWebcam) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	if bundle.Render != nil && n.Sink != nil {
		_ = n.Sink.SendFrame(bundle.Render)
	}
	return bundle, nil
}

var previewSchema = map[string]graph.ParamDef{
	"window_title": {Type: graph.TypeString, Default: graph.String("Preview")},
	"show_stats":   {Type: graph.TypeBool, Default: graph.Bool(true)},
}

// Preview forwards each tick's render output to a local display window and
// passes the bundle through unchanged, so a downstream observer placed
// after it still sees the frame.
type Preview struct {
	graph.BaseNode
	Sink RenderSink
}

func NewPreview(id graph.NodeID, name string, sink RenderSink) *Preview {
	n := &Preview{Sink: sink}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindOutputPreview, []graph.PortType{graph.PortRender, graph.PortAudio}, []graph.PortType{graph.PortRender, graph.PortAudio}, previewSchema)
	return n
}

func (n *Preview) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	if bundle.Render != nil && n.Sink != nil {
		_ = n.Sink.SendFrame(bundle.Render)
	}
	return bundle, nil
}
