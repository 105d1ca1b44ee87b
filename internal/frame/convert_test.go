// convert_test.go
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToRGBA8PassthroughWhenAlreadyTargetFormat(t *testing.T) {
	r := &Raster2D{Width: 2, Height: 2, Format: FormatRGBA8, Bytes: make([]byte, 16)}
	out, err := ToRGBA8(r, 0, 0)
	require.NoError(t, err)
	require.Same(t, r, out)
}

func TestToRGBA8ExpandsYCbCr420Luma(t *testing.T) {
	r := &Raster2D{Width: 4, Height: 4, Format: FormatYCbCr420, Bytes: make([]byte, 16)}
	for i := range r.Bytes {
		r.Bytes[i] = 128
	}
	out, err := ToRGBA8(r, 0, 0)
	require.NoError(t, err)
	require.Equal(t, FormatRGBA8, out.Format)
	require.Equal(t, 4, out.Width)
	require.Equal(t, 4, out.Height)
	require.Len(t, out.Bytes, 4*4*4)
	require.Equal(t, byte(128), out.Bytes[0])
	require.Equal(t, byte(128), out.Bytes[1])
	require.Equal(t, byte(128), out.Bytes[2])
}

func TestToRGBA8Scales(t *testing.T) {
	r := &Raster2D{Width: 4, Height: 4, Format: FormatRGBA8, Bytes: make([]byte, 4*4*4)}
	out, err := ToRGBA8(r, 8, 8)
	require.NoError(t, err)
	require.Equal(t, 8, out.Width)
	require.Equal(t, 8, out.Height)
	require.Len(t, out.Bytes, 8*8*4)
}

func TestToRGBA8RejectsUnsupportedFormat(t *testing.T) {
	r := &Raster2D{Width: 2, Height: 2, Format: FormatRGB565, Bytes: make([]byte, 8)}
	_, err := ToRGBA8(r, 0, 0)
	require.Error(t, err)
}

func TestToRGBA8NilInput(t *testing.T) {
	out, err := ToRGBA8(nil, 0, 0)
	require.NoError(t, err)
	require.Nil(t, out)
}
