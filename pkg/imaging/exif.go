package imaging

import (
	"bytes"
	"encoding/binary"
	"image"
)

const orientationTag = 0x0112

// Orientation extracts the EXIF orientation (1..8) from raw JPEG bytes.
// Anything without a readable tag, including non-JPEG data, reports 1.
func Orientation(data []byte) int {
	if len(data) < 4 || data[0] != 0xff || data[1] != 0xd8 {
		return 1
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xff {
			return 1
		}
		marker := data[i+1]
		if marker == 0xd8 || marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7) {
			i += 2
			continue
		}
		if marker == 0xda { // start of scan, no EXIF past this point
			return 1
		}
		size := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if size < 2 || i+2+size > len(data) {
			return 1
		}
		if marker == 0xe1 && size >= 16 && bytes.Equal(data[i+4:i+10], []byte("Exif\x00\x00")) {
			return tiffOrientation(data[i+10 : i+2+size])
		}
		i += 2 + size
	}
	return 1
}

func tiffOrientation(tiff []byte) int {
	if len(tiff) < 8 {
		return 1
	}
	var order binary.ByteOrder
	switch {
	case tiff[0] == 'I' && tiff[1] == 'I':
		order = binary.LittleEndian
	case tiff[0] == 'M' && tiff[1] == 'M':
		order = binary.BigEndian
	default:
		return 1
	}
	if order.Uint16(tiff[2:4]) != 0x002a {
		return 1
	}
	dir := int(order.Uint32(tiff[4:8]))
	if dir < 0 || dir+2 > len(tiff) {
		return 1
	}
	entries := int(order.Uint16(tiff[dir : dir+2]))
	for n := 0; n < entries; n++ {
		entry := dir + 2 + n*12
		if entry+12 > len(tiff) {
			return 1
		}
		if order.Uint16(tiff[entry:entry+2]) != orientationTag {
			continue
		}
		v := int(order.Uint16(tiff[entry+8 : entry+10]))
		if v >= 1 && v <= 8 {
			return v
		}
		return 1
	}
	return 1
}

// ApplyOrientation redraws img upright for the given EXIF orientation.
// Orientation 1, or anything out of range, returns img unchanged.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dw, dh := w, h
	if orientation >= 5 { // the transposed variants swap the axes
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2: // mirrored
				dx, dy = w-1-x, y
			case 3: // upside down
				dx, dy = w-1-x, h-1-y
			case 4: // flipped vertically
				dx, dy = x, h-1-y
			case 5: // transposed
				dx, dy = y, x
			case 6: // rotated 90 counter-clockwise in camera
				dx, dy = h-1-y, x
			case 7: // transversed
				dx, dy = h-1-y, w-1-x
			case 8: // rotated 90 clockwise in camera
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return dst
}
