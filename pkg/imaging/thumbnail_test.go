package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetSize(t *testing.T) {
	cases := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape scales height to min", 1600, 800, 800, 400},
		{"portrait scales width to min", 800, 1600, 400, 800},
		{"square hits min exactly", 1000, 1000, 400, 400},
		{"small image untouched", 300, 200, 300, 200},
		{"one small dimension untouched", 1200, 350, 1200, 350},
		{"already at min untouched", 400, 400, 400, 400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := TargetSize(tc.w, tc.h, 400)
			assert.Equal(t, tc.wantW, w)
			assert.Equal(t, tc.wantH, h)
		})
	}
}

func TestNormalizeNoOpForSmallImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	out := Normalize(img, 400)
	assert.Same(t, image.Image(img), out)
}

func TestNormalizeResizes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1600, 800))
	out := Normalize(img, 400)
	assert.Equal(t, 800, out.Bounds().Dx())
	assert.Equal(t, 400, out.Bounds().Dy())
}

func TestReencodePNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1200, 600))
	for x := 0; x < 1200; x++ {
		src.Set(x, 0, color.RGBA{R: uint8(x % 256), A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := Reencode(buf.Bytes(), "models/m1/m1_thumb.png", 400, 60)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 800, decoded.Bounds().Dx())
	assert.Equal(t, 400, decoded.Bounds().Dy())
}

func TestReencodeRejectsGarbage(t *testing.T) {
	_, err := Reencode([]byte("not an image"), "x.png", 400, 60)
	require.Error(t, err)
}
