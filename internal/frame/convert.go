// convert.go - pixel format conversion between Raster2D and RGBA8
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package frame

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ToRGBA8 normalizes r to FormatRGBA8 at targetW x targetH, the only layout
// the effect nodes and render sinks operate on. Passing targetW == 0 keeps
// r's own dimensions (format conversion only, no scaling). A FormatRGBA8
// input already at the target size is returned unchanged.
//
// FormatYCbCr420 frames carry luma only (chroma is not modeled, see
// PixelFormat) and are expanded as a gray image; this is the conversion
// path a real capture backend would need once it starts handing back
// YCbCr-native frames instead of the headless stand-ins' errors.
func ToRGBA8(r *Raster2D, targetW, targetH int) (*Raster2D, error) {
	if r == nil {
		return nil, nil
	}
	w, h := targetW, targetH
	if w == 0 {
		w, h = r.Width, r.Height
	}
	if r.Format == FormatRGBA8 && r.Width == w && r.Height == h {
		return r, nil
	}

	var src image.Image
	switch r.Format {
	case FormatRGBA8:
		src = &image.RGBA{Pix: r.Bytes, Stride: r.Width * 4, Rect: image.Rect(0, 0, r.Width, r.Height)}
	case FormatYCbCr420:
		src = &image.Gray{Pix: r.Bytes, Stride: r.Width, Rect: image.Rect(0, 0, r.Width, r.Height)}
	default:
		return nil, fmt.Errorf("frame: pixel format %d has no RGBA8 conversion", r.Format)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return &Raster2D{Width: w, Height: h, Format: FormatRGBA8, Bytes: dst.Pix}, nil
}
