// capture.go - headless capture backends
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package platform

import (
	"fmt"

	"github.com/constellationstudio/engine/internal/frame"
)

// Concrete OS camera/screen-capture/file-demux drivers
// (V4L2/DirectShow/CoreMediaIO, container demuxing) live outside this
// module: these backends always return an error, which sends each owning
// node down its own documented fallback-frame path rather than failing the
// tick. They exist so a host can wire a real nodes.CameraBackend/
// nodes.ScreenBackend/nodes.FileReader later without touching node code.

// HeadlessCamera implements nodes.CameraBackend with no real capture.
type HeadlessCamera struct{ DeviceID string }

func (h *HeadlessCamera) CaptureFrame() (*frame.Raster2D, error) {
	return nil, fmt.Errorf("camera device %q not available in this build", h.DeviceID)
}

// HeadlessScreen implements nodes.ScreenBackend (shared by ScreenCapture and
// WindowCapture) with no real capture.
type HeadlessScreen struct{ Target string }

func (h *HeadlessScreen) CaptureFrame() (*frame.Raster2D, error) {
	return nil, fmt.Errorf("screen/window capture %q not available in this build", h.Target)
}

// HeadlessFile implements nodes.FileReader with no real demux.
type HeadlessFile struct{ Path string }

func (h *HeadlessFile) ReadFrame() (*frame.Raster2D, *frame.AudioData, error) {
	return nil, nil, fmt.Errorf("file demux for %q not available in this build", h.Path)
}
