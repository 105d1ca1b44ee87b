// preview_ebiten.go - ebiten-backed RenderSink for the Preview output node
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package platform

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/constellationstudio/engine/internal/frame"
)

// EbitenPreview is an optional on-screen window behind the Preview output
// node (nodes.RenderSink), disabled unless explicitly started: a
// mutex-guarded frame buffer copied into an ebiten.Image on Draw, window
// lifecycle driven by ebiten.RunGame on its own goroutine so SendFrame
// never blocks on vsync.
type EbitenPreview struct {
	mu          sync.RWMutex
	image       *ebiten.Image
	width       int
	height      int
	buf         []byte
	title       string
	onFirstDraw func()
}

// NewEbitenPreview constructs a preview window sink. Call Start to actually
// open the window; constructing without starting keeps SendFrame a cheap
// no-op, matching Preview's "Sink may be nil" contract.
func NewEbitenPreview(title string) *EbitenPreview {
	return &EbitenPreview{title: title}
}

// Start opens the window and runs ebiten's game loop on a background
// goroutine, returning once the first Draw call confirms the loop is live.
func (p *EbitenPreview) Start() error {
	ready := make(chan struct{})
	ebiten.SetWindowTitle(p.title)
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	p.onFirstDraw = func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	}
	go func() {
		if err := ebiten.RunGame(p); err != nil {
			fmt.Printf("preview window closed: %v\n", err)
		}
	}()
	<-ready
	return nil
}

// SendFrame copies a rendered frame into the window's buffer, implementing
// nodes.RenderSink. Never blocks: it only updates the buffer the Draw
// callback reads on ebiten's own cadence. Non-RGBA8 frames (e.g. a capture
// backend handing back YCbCr) are normalized through frame.ToRGBA8 first,
// since ebiten.Image.WritePixels expects tightly packed RGBA.
func (p *EbitenPreview) SendFrame(r *frame.Raster2D) error {
	if r == nil {
		return nil
	}
	if r.Format != frame.FormatRGBA8 {
		converted, err := frame.ToRGBA8(r, 0, 0)
		if err != nil {
			return err
		}
		r = converted
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.width != r.Width || p.height != r.Height || p.buf == nil {
		p.width, p.height = r.Width, r.Height
		p.buf = make([]byte, len(r.Bytes))
	}
	copy(p.buf, r.Bytes)
	return nil
}

// Update implements ebiten.Game; the preview window has no input handling.
func (p *EbitenPreview) Update() error { return nil }

// Draw implements ebiten.Game. The first-draw callback fires before the
// frame check so Start unblocks as soon as the game loop is live, not only
// once the engine delivers a frame.
func (p *EbitenPreview) Draw(screen *ebiten.Image) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.onFirstDraw != nil {
		p.onFirstDraw()
		p.onFirstDraw = nil
	}
	if p.width == 0 || p.height == 0 {
		return
	}
	if p.image == nil || p.image.Bounds().Dx() != p.width || p.image.Bounds().Dy() != p.height {
		p.image = ebiten.NewImage(p.width, p.height)
	}
	p.image.WritePixels(p.buf)
	screen.DrawImage(p.image, nil)
}

// Layout implements ebiten.Game, sizing the window to the last frame's
// resolution.
func (p *EbitenPreview) Layout(_, _ int) (int, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.width == 0 || p.height == 0 {
		return 1, 1
	}
	return p.width, p.height
}
