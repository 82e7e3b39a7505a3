// Package imaging normalises mesh thumbnails: the shorter dimension is
// scaled to a target size with aspect ratio preserved. Images already
// smaller than the target in both dimensions are left untouched. JPEG
// payloads carrying an EXIF orientation are drawn upright before
// scaling.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// DefaultMinDimension is the normalised length of the shorter side.
const DefaultMinDimension = 400

// DefaultJPEGQuality matches the re-encode quality used for thumbnails.
const DefaultJPEGQuality = 60

// TargetSize computes the normalised dimensions for a width/height pair.
// Returns the input unchanged when either dimension is already below min.
func TargetSize(width, height, min int) (int, int) {
	if min <= 0 {
		min = DefaultMinDimension
	}
	if width < min || height < min {
		return width, height
	}
	if width > height { // landscape
		w := width * min / height
		if w < min {
			w = min
		}
		return w, min
	}
	h := height * min / width
	if h < min {
		h = min
	}
	return min, h
}

// Normalize scales img so its shorter dimension equals min. A no-op copy
// is avoided when no resize is needed.
func Normalize(img image.Image, min int) image.Image {
	bounds := img.Bounds()
	w, h := TargetSize(bounds.Dx(), bounds.Dy(), min)
	if w == bounds.Dx() && h == bounds.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// Reencode decodes raw image bytes, applies the EXIF orientation,
// normalises the size and re-encodes. The output format follows the
// extension of the destination path: PNG for .png, JPEG (at the given
// quality) otherwise.
func Reencode(data []byte, destPath string, min, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode thumbnail: %w", err)
	}
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}

	resized := Normalize(ApplyOrientation(img, Orientation(data)), min)

	var out bytes.Buffer
	if strings.HasSuffix(strings.ToLower(destPath), ".png") {
		if err := png.Encode(&out, resized); err != nil {
			return nil, fmt.Errorf("encode thumbnail png: %w", err)
		}
	} else {
		if err := jpeg.Encode(&out, resized, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode thumbnail jpeg: %w", err)
		}
	}
	return out.Bytes(), nil
}
