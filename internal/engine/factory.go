// factory.go - node construction from a wire-level kind string
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package engine

import (
	"github.com/constellationstudio/engine/internal/control"
	"github.com/constellationstudio/engine/internal/errs"
	"github.com/constellationstudio/engine/internal/graph"
	"github.com/constellationstudio/engine/internal/nodes"
	"github.com/constellationstudio/engine/internal/platform"
)

// newNode constructs a node for kind, wiring platform backends for the
// input/output variants that need one. Inputs get headless capture
// backends; VirtualWebcam and AudioOutput get a nil sink and Preview gets
// the engine's configured preview sink (nil when none was configured),
// until the host attaches a real one (see
// Engine.AttachRenderSink/AttachAudioSink).
func (e *Engine) newNode(kind graph.Kind, id graph.NodeID, name string) (graph.Node, error) {
	switch kind {
	case graph.KindInputCamera:
		return nodes.NewCameraInput(id, name, &platform.HeadlessCamera{DeviceID: "default"}), nil
	case graph.KindInputScreen:
		return nodes.NewScreenCapture(id, name, &platform.HeadlessScreen{Target: "primary"}), nil
	case graph.KindInputWindow:
		return nodes.NewWindowCapture(id, name, &platform.HeadlessScreen{Target: name}), nil
	case graph.KindInputFile:
		return nodes.NewFileInput(id, name, &platform.HeadlessFile{Path: ""}), nil
	case graph.KindInputTestPattern:
		return nodes.NewTestPattern(id, name), nil
	case graph.KindOutputVirtualWebcam:
		return nodes.NewVirtualWebcam(id, name, nil), nil
	case graph.KindOutputPreview:
		return nodes.NewPreview(id, name, e.previewSink), nil
	case graph.KindEffectColorCorrect:
		return nodes.NewColorCorrect(id, name), nil
	case graph.KindEffectBlur:
		return nodes.NewBlur(id, name), nil
	case graph.KindEffectSharpen:
		return nodes.NewSharpen(id, name), nil
	case graph.KindEffectTransform:
		return nodes.NewTransform(id, name), nil
	case graph.KindEffectComposite:
		return nodes.NewComposite(id, name), nil
	case graph.KindAudioInput:
		return nodes.NewAudioInput(id, name, nil), nil
	case graph.KindAudioMixer:
		return nodes.NewAudioMixer(id, name), nil
	case graph.KindAudioEffect:
		return nodes.NewAudioEffect(id, name), nil
	case graph.KindAudioOutput:
		return nodes.NewAudioOutput(id, name, nil), nil
	case graph.KindTallyGenerator:
		return nodes.NewTallyGenerator(id, name), nil
	case graph.KindTallyMonitor:
		return nodes.NewTallyMonitor(id, name), nil
	case graph.KindTallyLogic:
		return nodes.NewTallyLogic(id, name), nil
	case graph.KindTallyRouter:
		return nodes.NewTallyRouter(id, name), nil
	case graph.KindControlLFO:
		return control.NewLFO(id, name, nil), nil
	case graph.KindControlTimeline:
		return control.NewTimeline(id, name, nil), nil
	case graph.KindControlMath:
		return control.NewMath(id, name), nil
	case graph.KindControlParameter:
		return control.NewParameter(id, name), nil
	default:
		return nil, errs.New(errs.KindInvalidNodeKind, nil)
	}
}
