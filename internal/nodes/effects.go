// effects.go - effect-kind nodes
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package nodes

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/constellationstudio/engine/internal/frame"
	"github.com/constellationstudio/engine/internal/graph"
)

// forEachRow fans rows 0..h-1 out across GOMAXPROCS workers and joins before
// returning, so per-pixel kernels (Blur, Sharpen) parallelize without any
// goroutine outliving the call.
func forEachRow(h int, fn func(y int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > h {
		workers = h
	}
	if workers < 1 {
		workers = 1
	}
	var eg errgroup.Group
	rowsPerWorker := (h + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := start + rowsPerWorker
		if end > h {
			end = h
		}
		if start >= end {
			continue
		}
		eg.Go(func() error {
			for y := start; y < end; y++ {
				fn(y)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

var colorCorrectSchema = map[string]graph.ParamDef{
	"brightness": {Type: graph.TypeFloat, Default: graph.Float(1.0), Min: floatPtr(0), Max: floatPtr(3)},
	"contrast":   {Type: graph.TypeFloat, Default: graph.Float(1.0), Min: floatPtr(0), Max: floatPtr(3)},
	"saturation": {Type: graph.TypeFloat, Default: graph.Float(1.0), Min: floatPtr(0), Max: floatPtr(3)},
	"hue":        {Type: graph.TypeFloat, Default: graph.Float(0.0), Min: floatPtr(-180), Max: floatPtr(180)},
}

// ColorCorrect adjusts brightness/contrast/saturation/hue per pixel.
// Brightness/contrast apply `((c - 0.5) * contrast + 0.5) * brightness`
// per channel, identity at (1,1); saturation and hue apply an HSV-space
// scale and rotation after the brightness/contrast pass, identity at
// saturation=1/hue=0.
type ColorCorrect struct {
	graph.BaseNode
}

func NewColorCorrect(id graph.NodeID, name string) *ColorCorrect {
	n := &ColorCorrect{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindEffectColorCorrect, []graph.PortType{graph.PortRender}, []graph.PortType{graph.PortRender}, colorCorrectSchema)
	return n
}

func (n *ColorCorrect) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	if bundle.Render == nil {
		return bundle, nil
	}
	brightness := n.Param("brightness").F
	contrast := n.Param("contrast").F
	saturation := n.Param("saturation").F
	hue := n.Param("hue").F
	if brightness == 1 && contrast == 1 && saturation == 1 && hue == 0 {
		// Exact identity at the neutral parameters: skipping the float
		// round-trip keeps output bytes byte-identical to input.
		return bundle, nil
	}

	// Clone before writing: the scheduler hands the same raster to every
	// successor of this node's predecessor, so in-place edits would leak
	// into sibling branches.
	r := bundle.Render.Clone()
	bpp := r.Format.BytesPerPixel()
	for i := 0; i+2 < len(r.Bytes); i += bpp {
		cr := float64(r.Bytes[i]) / 255.0
		cg := float64(r.Bytes[i+1]) / 255.0
		cb := float64(r.Bytes[i+2]) / 255.0

		cr = ((cr-0.5)*contrast + 0.5) * brightness
		cg = ((cg-0.5)*contrast + 0.5) * brightness
		cb = ((cb-0.5)*contrast + 0.5) * brightness

		if saturation != 1.0 || hue != 0.0 {
			cr, cg, cb = adjustSaturationHue(cr, cg, cb, saturation, hue)
		}

		r.Bytes[i] = clampByte(cr * 255.0)
		r.Bytes[i+1] = clampByte(cg * 255.0)
		r.Bytes[i+2] = clampByte(cb * 255.0)
	}
	bundle.Render = r
	return bundle, nil
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func adjustSaturationHue(r, g, b, saturation, hueDeg float64) (float64, float64, float64) {
	h, s, v := rgbToHSV(r, g, b)
	s *= saturation
	if s < 0 {
		s = 0
	}
	h = math.Mod(h+hueDeg+360.0, 360.0)
	return hsvToRGB(h, s, v)
}

func rgbToHSV(r, g, b float64) (h, s, v float64) {
	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	v = maxC
	delta := maxC - minC
	if maxC <= 0 {
		return 0, 0, v
	}
	s = delta / maxC
	if delta == 0 {
		return 0, s, v
	}
	switch maxC {
	case r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return r + m, g + m, b + m
}

var blurSchema = map[string]graph.ParamDef{
	"radius":  {Type: graph.TypeFloat, Default: graph.Float(1.0), Min: floatPtr(0), Max: floatPtr(50)},
	"quality": {Type: graph.TypeEnum, Default: graph.Enum("medium")},
}

// Blur is a two-pass separable box blur: a horizontal pass into a scratch
// buffer, then a vertical pass back into the frame, each averaging a
// (2*radius+1)-wide window clamped at the image edge. radius<=0 is the
// identity.
type Blur struct {
	graph.BaseNode
}

func NewBlur(id graph.NodeID, name string) *Blur {
	n := &Blur{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindEffectBlur, []graph.PortType{graph.PortRender}, []graph.PortType{graph.PortRender}, blurSchema)
	return n
}

func (n *Blur) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	if bundle.Render == nil {
		return bundle, nil
	}
	radius := n.Param("radius").F
	if radius <= 0 {
		return bundle, nil
	}
	r := bundle.Render.Clone()
	w, h := r.Width, r.Height
	const channels = 4
	blurRadius := int(math.Round(radius))
	if blurRadius < 1 {
		blurRadius = 1
	}
	temp := make([]byte, len(r.Bytes))
	copy(temp, r.Bytes)

	// Each pass is row-independent, so rows are fanned out across
	// GOMAXPROCS workers and joined before Process returns; no goroutine
	// outlives the call.
	forEachRow(h, func(y int) {
		for x := 0; x < w; x++ {
			var rs, gs, bs float64
			count := 0
			for dx := -blurRadius; dx <= blurRadius; dx++ {
				sx := x + dx
				if sx >= 0 && sx < w {
					idx := (y*w + sx) * channels
					rs += float64(r.Bytes[idx])
					gs += float64(r.Bytes[idx+1])
					bs += float64(r.Bytes[idx+2])
					count++
				}
			}
			if count > 0 {
				idx := (y*w + x) * channels
				temp[idx] = byte(rs / float64(count))
				temp[idx+1] = byte(gs / float64(count))
				temp[idx+2] = byte(bs / float64(count))
			}
		}
	})

	forEachRow(h, func(y int) {
		for x := 0; x < w; x++ {
			var rs, gs, bs float64
			count := 0
			for dy := -blurRadius; dy <= blurRadius; dy++ {
				sy := y + dy
				if sy >= 0 && sy < h {
					idx := (sy*w + x) * channels
					rs += float64(temp[idx])
					gs += float64(temp[idx+1])
					bs += float64(temp[idx+2])
					count++
				}
			}
			if count > 0 {
				idx := (y*w + x) * channels
				r.Bytes[idx] = byte(rs / float64(count))
				r.Bytes[idx+1] = byte(gs / float64(count))
				r.Bytes[idx+2] = byte(bs / float64(count))
			}
		}
	})
	bundle.Render = r
	return bundle, nil
}

var sharpenSchema = map[string]graph.ParamDef{
	"strength": {Type: graph.TypeFloat, Default: graph.Float(1.0), Min: floatPtr(0), Max: floatPtr(5)},
}

// Sharpen applies a 3x3 unsharp-mask kernel with center weight
// `1 + 4*strength` and edge weight `-strength`, leaving the one-pixel
// border unprocessed. strength<=0 is the identity.
type Sharpen struct {
	graph.BaseNode
}

func NewSharpen(id graph.NodeID, name string) *Sharpen {
	n := &Sharpen{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindEffectSharpen, []graph.PortType{graph.PortRender}, []graph.PortType{graph.PortRender}, sharpenSchema)
	return n
}

func (n *Sharpen) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	if bundle.Render == nil {
		return bundle, nil
	}
	strength := n.Param("strength").F
	if strength <= 0 {
		return bundle, nil
	}
	r := bundle.Render
	w, h := r.Width, r.Height
	const channels = 4
	kernel := [9]float64{
		0, -strength, 0,
		-strength, 1.0 + 4.0*strength, -strength,
		0, -strength, 0,
	}
	result := make([]byte, len(r.Bytes))
	copy(result, r.Bytes)

	if h > 2 {
		forEachRow(h-2, func(band int) {
			y := band + 1
			for x := 1; x < w-1; x++ {
				var rs, gs, bs float64
				for ky := 0; ky < 3; ky++ {
					for kx := 0; kx < 3; kx++ {
						sx := x + kx - 1
						sy := y + ky - 1
						idx := (sy*w + sx) * channels
						k := kernel[ky*3+kx]
						rs += float64(r.Bytes[idx]) * k
						gs += float64(r.Bytes[idx+1]) * k
						bs += float64(r.Bytes[idx+2]) * k
					}
				}
				idx := (y*w + x) * channels
				result[idx] = clampByte(rs)
				result[idx+1] = clampByte(gs)
				result[idx+2] = clampByte(bs)
			}
		})
	}
	bundle.Render = &frame.Raster2D{Width: w, Height: h, Format: r.Format, Bytes: result}
	return bundle, nil
}

var transformSchema = map[string]graph.ParamDef{
	"position": {Type: graph.TypeVec2, Default: graph.Value{Type: graph.TypeVec2, Vec: [4]float64{0, 0}}},
	"scale":    {Type: graph.TypeVec2, Default: graph.Value{Type: graph.TypeVec2, Vec: [4]float64{1, 1}}},
	"rotation": {Type: graph.TypeFloat, Default: graph.Float(0.0), Min: floatPtr(-360), Max: floatPtr(360)},
}

// Transform applies a 2D affine position/scale/rotation to the frame via
// inverse-mapped nearest-neighbor sampling into a same-size canvas,
// clearing uncovered pixels to transparent black. Identity at
// position=(0,0), scale=(1,1), rotation=0.
type Transform struct {
	graph.BaseNode
}

func NewTransform(id graph.NodeID, name string) *Transform {
	n := &Transform{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindEffectTransform, []graph.PortType{graph.PortRender}, []graph.PortType{graph.PortRender}, transformSchema)
	return n
}

func (n *Transform) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	if bundle.Render == nil {
		return bundle, nil
	}
	pos := n.Param("position").Vec
	scale := n.Param("scale").Vec
	rotation := n.Param("rotation").F
	if pos[0] == 0 && pos[1] == 0 && scale[0] == 1 && scale[1] == 1 && rotation == 0 {
		return bundle, nil
	}

	src := bundle.Render
	dst := newRaster(src.Width, src.Height)
	cx, cy := float64(src.Width)/2, float64(src.Height)/2
	theta := -rotation * math.Pi / 180.0
	cosT, sinT := math.Cos(theta), math.Sin(theta)
	sx, sy := scale[0], scale[1]
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}

	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			dx := float64(x) - cx - pos[0]
			dy := float64(y) - cy - pos[1]
			rx := (dx*cosT - dy*sinT) / sx
			ry := (dx*sinT + dy*cosT) / sy
			sampleX := int(math.Round(rx + cx))
			sampleY := int(math.Round(ry + cy))
			di := (y*dst.Width + x) * 4
			if sampleX >= 0 && sampleX < src.Width && sampleY >= 0 && sampleY < src.Height {
				si := (sampleY*src.Width + sampleX) * 4
				copy(dst.Bytes[di:di+4], src.Bytes[si:si+4])
			}
		}
	}
	bundle.Render = dst
	return bundle, nil
}

var compositeSchema = map[string]graph.ParamDef{
	"blend_mode": {Type: graph.TypeEnum, Default: graph.Enum("normal")},
	"opacity":    {Type: graph.TypeFloat, Default: graph.Float(1.0), Min: floatPtr(0), Max: floatPtr(1)},
}

// Composite paints bundle.RenderLayers over one another in order — the
// first layer is the base, each subsequent layer is painted on top of the
// accumulated result using the node's blend mode and opacity (painter's-
// algorithm order). RenderLayers holds every render predecessor in
// edge-insertion order, so this is not capped at two inputs. With zero or
// one connected input, Process is an identity pass-through of that input
// (or an empty bundle with none).
type Composite struct {
	graph.BaseNode
}

func NewComposite(id graph.NodeID, name string) *Composite {
	n := &Composite{}
	n.BaseNode = graph.NewBaseNode(id, name, graph.KindEffectComposite, []graph.PortType{graph.PortRender, graph.PortRender}, []graph.PortType{graph.PortRender}, compositeSchema)
	return n
}

func (n *Composite) Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error) {
	layers := bundle.RenderLayers
	if len(layers) == 0 {
		return bundle, nil
	}
	if len(layers) == 1 {
		// Identity pass-through of the single connected input.
		return bundle, nil
	}
	opacity := n.Param("opacity").F
	mode := n.Param("blend_mode").S

	acc := layers[0]
	for _, top := range layers[1:] {
		acc = blendLayer(acc, top, mode, opacity)
	}
	bundle.Render = acc
	bundle.Secondary = nil
	bundle.RenderLayers = nil
	return bundle, nil
}

// blendLayer paints top over base using mode/opacity, producing a new
// Raster2D sized to base (the accumulated result so far).
func blendLayer(base, top *frame.Raster2D, mode string, opacity float64) *frame.Raster2D {
	out := newRaster(base.Width, base.Height)
	for i := 0; i+3 < len(base.Bytes); i += 4 {
		baseR, baseG, baseB := base.Bytes[i], base.Bytes[i+1], base.Bytes[i+2]
		var tr, tg, tb byte
		if top != nil && i+3 < len(top.Bytes) {
			tr, tg, tb = top.Bytes[i], top.Bytes[i+1], top.Bytes[i+2]
		}

		br := blendChannel(mode, baseR, tr)
		bg := blendChannel(mode, baseG, tg)
		bb := blendChannel(mode, baseB, tb)

		out.Bytes[i] = lerpByte(baseR, br, opacity)
		out.Bytes[i+1] = lerpByte(baseG, bg, opacity)
		out.Bytes[i+2] = lerpByte(baseB, bb, opacity)
		out.Bytes[i+3] = base.Bytes[i+3]
	}
	return out
}

func blendChannel(mode string, base, top byte) byte {
	bf, tf := float64(base)/255.0, float64(top)/255.0
	var v float64
	switch mode {
	case "add":
		v = bf + tf
	case "multiply":
		v = bf * tf
	case "screen":
		v = 1 - (1-bf)*(1-tf)
	default:
		v = tf
	}
	return clampByte(v * 255.0)
}

func lerpByte(a, b byte, t float64) byte {
	return clampByte(float64(a)*(1-t) + float64(b)*t)
}
