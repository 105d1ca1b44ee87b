// input.go - input-kind nodes
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

// Package nodes implements every concrete Node variant in the catalog:
// input, effect, audio, tally, and output kinds. Every node embeds
// graph.BaseNode for its schema-validated parameter bag and implements only
// Process.
package nodes

import (
	"github.com/constellationstudio/engine/internal/frame"
	"github.com/constellationstudio/engine/internal/graph"
)

const (
	defaultWidth  = 1920
	defaultHeight = 1080
)

// colorBarPalette is SMPTE-style bars, left to right: white, yellow, cyan,
// green, magenta, red, blue, black.
var colorBarPalette = [8][4]byte{
	{255, 255, 255, 255},
	{255, 255, 0, 255},
	{0, 255, 255, 255},
	{0, 255, 0, 255},
	{255, 0, 255, 255},
	{255, 0, 0, 255},
	{0, 0, 255, 255},
	{0, 0, 0, 255},
}

var testPatternSchema = map[string]graph.ParamDef{
	"pattern_type": {Type: graph.TypeEnum, Default: graph.Enum("color_bars")},
	"color":        {Type: graph.TypeColor, Default: graph.Color(1, 1, 1, 1)},
}

// TestPattern is a synthetic render source with no dependency on any
// hardware or file backend, used for development, diagnostics, and
// fallback composition.
type TestPattern struct {
	graph.BaseNode
}

func NewTestPattern(id graph.NodeID, name string) *TestPattern {
	n := &TestPattern{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindInputTestPattern, nil, []graph.PortType{graph.PortRender}, testPatternSchema)
	return n
}

func (n *TestPattern) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	var raster *frame.Raster2D
	switch n.Param("pattern_type").S {
	case "gradient":
		raster = n.generateGradient()
	case "solid_color":
		raster = n.generateSolidColor()
	case "noise":
		raster = n.generateNoise()
	default:
		raster = n.generateColorBars()
	}
	out := frame.Empty()
	out.Render = raster
	return out, nil
}

func (n *TestPattern) generateColorBars() *frame.Raster2D {
	r := newRaster(defaultWidth, defaultHeight)
	barWidth := defaultWidth / len(colorBarPalette)
	for y := 0; y < defaultHeight; y++ {
		for x := 0; x < defaultWidth; x++ {
			bar := x / barWidth
			if bar >= len(colorBarPalette) {
				bar = len(colorBarPalette) - 1
			}
			setPixel(r, x, y, colorBarPalette[bar])
		}
	}
	return r
}

func (n *TestPattern) generateGradient() *frame.Raster2D {
	r := newRaster(defaultWidth, defaultHeight)
	for y := 0; y < defaultHeight; y++ {
		for x := 0; x < defaultWidth; x++ {
			intensity := byte(float64(x) / float64(defaultWidth) * 255.0)
			setPixel(r, x, y, [4]byte{intensity, intensity, intensity, 255})
		}
	}
	return r
}

func (n *TestPattern) generateSolidColor() *frame.Raster2D {
	r := newRaster(defaultWidth, defaultHeight)
	c := n.Param("color").Vec
	px := [4]byte{byte(c[0] * 255), byte(c[1] * 255), byte(c[2] * 255), byte(c[3] * 255)}
	for y := 0; y < defaultHeight; y++ {
		for x := 0; x < defaultWidth; x++ {
			setPixel(r, x, y, px)
		}
	}
	return r
}

// generateNoise uses a deterministic multiplicative hash,
// ((x + y) * 123456789) % 256, rather than a seeded PRNG, so the pattern is
// reproducible frame-to-frame for a given resolution.
func (n *TestPattern) generateNoise() *frame.Raster2D {
	r := newRaster(defaultWidth, defaultHeight)
	for y := 0; y < defaultHeight; y++ {
		for x := 0; x < defaultWidth; x++ {
			v := byte(((x + y) * 123456789) % 256)
			setPixel(r, x, y, [4]byte{v, v, v, 255})
		}
	}
	return r
}

func newRaster(w, h int) *frame.Raster2D {
	return &frame.Raster2D{Width: w, Height: h, Format: frame.FormatRGBA8, Bytes: make([]byte, w*h*4)}
}

func setPixel(r *frame.Raster2D, x, y int, px [4]byte) {
	i := (y*r.Width + x) * 4
	r.Bytes[i], r.Bytes[i+1], r.Bytes[i+2], r.Bytes[i+3] = px[0], px[1], px[2], px[3]
}

// errorFallbackFrame renders the diagonal-stripe error pattern every
// hardware-backed input falls back to when its backend is unavailable. Each
// input kind uses a distinct stripe color so an operator can tell at a
// glance which input degraded.
func errorFallbackFrame(w, h int, stripe, dim [3]byte) *frame.Raster2D {
	r := newRaster(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := dim
			if (x+y)%32 < 16 {
				c = stripe
			}
			setPixel(r, x, y, [4]byte{c[0], c[1], c[2], 255})
		}
	}
	return r
}

var cameraInputSchema = map[string]graph.ParamDef{
	"device_id":  {Type: graph.TypeString, Default: graph.String("default")},
	"resolution": {Type: graph.TypeEnum, Default: graph.Enum("1920x1080")},
	"fps":        {Type: graph.TypeInt, Default: graph.Int(30), Min: floatPtr(1), Max: floatPtr(60)},
}

// CameraInput represents a live camera device. Actual capture is delegated
// to a CameraBackend (wired at construction by the host); when no backend
// is attached, or the backend reports an error, Process falls back to a
// synthesized red-striped error frame and silent audio rather than failing
// the tick — a capture error never propagates out of Process.
type CameraInput struct {
	graph.BaseNode
	Backend CameraBackend
}

// CameraBackend is the platform capture seam; nil means "not attached",
// which always yields the fallback frame.
type CameraBackend interface {
	CaptureFrame() (*frame.Raster2D, error)
}

// Reconfigurable backends drop their cached device state and reinitialize
// on the next frame request. Nodes call Invalidate when a resource-
// affecting parameter (device id, resolution, file path) changes.
type Reconfigurable interface {
	Invalidate()
}

func invalidate(backend any) {
	if r, ok := backend.(Reconfigurable); ok {
		r.Invalidate()
	}
}

func NewCameraInput(id graph.NodeID, name string, backend CameraBackend) *CameraInput {
	n := &CameraInput{Backend: backend}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindInputCamera, nil, []graph.PortType{graph.PortRender, graph.PortAudio}, cameraInputSchema)
	return n
}

// SetParameter invalidates the capture backend on resource-affecting
// changes so the next Process reopens the device with the new settings.
func (n *CameraInput) SetParameter(key string, value graph.Value) error {
	if err := n.BaseNode.SetParameter(key, value); err != nil {
		return err
	}
	switch key {
	case "device_id", "resolution", "fps":
		invalidate(n.Backend)
	}
	return nil
}

func (n *CameraInput) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	out := frame.Empty()
	w, h := defaultWidth, defaultHeight
	if n.Backend != nil {
		if r, err := n.Backend.CaptureFrame(); err == nil {
			out.Render = r
			out.Audio = &frame.AudioData{SampleRate: 48000, Channels: 2, Samples: make([]float32, 1024)}
			return out, nil
		}
	}
	out.Render = errorFallbackFrame(w, h, [3]byte{255, 0, 0}, [3]byte{128, 0, 0})
	out.Audio = &frame.AudioData{SampleRate: 48000, Channels: 2, Samples: make([]float32, 1024)}
	return out, nil
}

var screenWindowSchema = map[string]graph.ParamDef{
	"target": {Type: graph.TypeString, Default: graph.String("")},
}

// ScreenBackend captures the full screen or a named window, depending on the
// owning node's kind; both are thin variants of the same capture/fallback
// discipline as CameraInput.
type ScreenBackend interface {
	CaptureFrame() (*frame.Raster2D, error)
}

// ScreenCapture captures the primary display, with the same
// capture-or-fallback discipline as CameraInput. The fallback palette is
// gray rather than camera's red so the failure modes read differently on a
// monitor wall.
type ScreenCapture struct {
	graph.BaseNode
	Backend ScreenBackend
}

func NewScreenCapture(id graph.NodeID, name string, backend ScreenBackend) *ScreenCapture {
	n := &ScreenCapture{Backend: backend}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindInputScreen, nil, []graph.PortType{graph.PortRender}, screenWindowSchema)
	return n
}

func (n *ScreenCapture) SetParameter(key string, value graph.Value) error {
	if err := n.BaseNode.SetParameter(key, value); err != nil {
		return err
	}
	if key == "target" {
		invalidate(n.Backend)
	}
	return nil
}

func (n *ScreenCapture) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	out := frame.Empty()
	if n.Backend != nil {
		if r, err := n.Backend.CaptureFrame(); err == nil {
			out.Render = r
			return out, nil
		}
	}
	out.Render = errorFallbackFrame(defaultWidth, defaultHeight, [3]byte{160, 160, 160}, [3]byte{96, 96, 96})
	return out, nil
}

// WindowCapture captures a single named window. Identical fallback
// discipline to ScreenCapture; kept as a distinct type because its schema
// and Kind differ.
type WindowCapture struct {
	graph.BaseNode
	Backend ScreenBackend
}

func NewWindowCapture(id graph.NodeID, name string, backend ScreenBackend) *WindowCapture {
	n := &WindowCapture{Backend: backend}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindInputWindow, nil, []graph.PortType{graph.PortRender}, screenWindowSchema)
	return n
}

func (n *WindowCapture) SetParameter(key string, value graph.Value) error {
	if err := n.BaseNode.SetParameter(key, value); err != nil {
		return err
	}
	if key == "target" {
		invalidate(n.Backend)
	}
	return nil
}

func (n *WindowCapture) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	out := frame.Empty()
	if n.Backend != nil {
		if r, err := n.Backend.CaptureFrame(); err == nil {
			out.Render = r
			return out, nil
		}
	}
	out.Render = errorFallbackFrame(defaultWidth, defaultHeight, [3]byte{160, 160, 96}, [3]byte{96, 96, 48})
	return out, nil
}

var fileInputSchema = map[string]graph.ParamDef{
	"file_path": {Type: graph.TypeString, Default: graph.String("")},
	"loop":      {Type: graph.TypeBool, Default: graph.Bool(false)},
}

// FileReader decodes one video+audio frame pair per call from a media file.
type FileReader interface {
	ReadFrame() (*frame.Raster2D, *frame.AudioData, error)
}

// FileInput reads frames from a media file via a platform-provided
// FileReader. On a missing backend or a decode error it falls back to a
// blue "No Video" diagonal pattern plus 2048 samples of silence, rather
// than failing the tick.
type FileInput struct {
	graph.BaseNode
	Reader FileReader
}

func NewFileInput(id graph.NodeID, name string, reader FileReader) *FileInput {
	n := &FileInput{Reader: reader}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindInputFile, nil, []graph.PortType{graph.PortRender, graph.PortAudio}, fileInputSchema)
	return n
}

func (n *FileInput) SetParameter(key string, value graph.Value) error {
	if err := n.BaseNode.SetParameter(key, value); err != nil {
		return err
	}
	if key == "file_path" {
		invalidate(n.Reader)
	}
	return nil
}

func (n *FileInput) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	out := frame.Empty()
	if n.Reader != nil {
		if r, a, err := n.Reader.ReadFrame(); err == nil {
			out.Render = r
			out.Audio = a
			return out, nil
		}
	}
	out.Render = errorFallbackFrame(defaultWidth, defaultHeight, [3]byte{64, 64, 255}, [3]byte{128, 128, 255})
	out.Audio = &frame.AudioData{SampleRate: 48000, Channels: 2, Samples: make([]float32, 2048)}
	return out, nil
}

func floatPtr(f float64) *float64 { return &f }
