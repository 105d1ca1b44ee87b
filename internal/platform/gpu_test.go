// gpu_test.go
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package platform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/constellationstudio/engine/internal/errs"
)

func TestSoftwareContextAllocateAndRelease(t *testing.T) {
	ctx := newSoftwareContext()
	fb, err := ctx.Allocate(64, 64)
	require.NoError(t, err)
	require.Equal(t, 64*64*4, len(fb.Bytes))
	require.Equal(t, 64*64*4, ctx.allocated)

	ctx.Release(fb)
	require.Equal(t, 0, ctx.allocated)
}

func TestSoftwareContextInsufficientMemory(t *testing.T) {
	ctx := newSoftwareContext()
	ctx.budget = 100

	_, err := ctx.Allocate(10, 10)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.KindInsufficientMemory, e.Kind)
}

func TestProbeHardwareNeverFails(t *testing.T) {
	adv := ProbeHardware()
	require.NotEmpty(t, adv.GPUBackend)
	require.NotEmpty(t, adv.RecommendedMaxResolution)
}

func TestHeadlessCaptureBackendsReportUnavailable(t *testing.T) {
	cam := &HeadlessCamera{DeviceID: "default"}
	_, err := cam.CaptureFrame()
	require.Error(t, err)

	scr := &HeadlessScreen{Target: "primary"}
	_, err = scr.CaptureFrame()
	require.Error(t, err)

	f := &HeadlessFile{Path: "clip.mp4"}
	_, _, err = f.ReadFrame()
	require.Error(t, err)
}
