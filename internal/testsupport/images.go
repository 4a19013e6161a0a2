package testsupport

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// SolidImage returns a width×height image filled with c.
func SolidImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// SplitImage paints the left half with left and the right half with right.
func SplitImage(width, height int, left, right color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 {
				img.SetNRGBA(x, y, left)
			} else {
				img.SetNRGBA(x, y, right)
			}
		}
	}
	return img
}

// GradientImage returns a horizontal-plus-vertical ramp seeded by offset, so
// different offsets give visibly different textures.
func GradientImage(width, height int, offset uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8((x*255)/max(width-1, 1)) ^ offset
			w := uint8((y * 255) / max(height-1, 1))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: w, B: v / 2, A: 0xff})
		}
	}
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// SolidPNG is shorthand for EncodePNG(SolidImage(...)).
func SolidPNG(t testing.TB, width, height int, c color.NRGBA) []byte {
	t.Helper()
	return EncodePNG(t, SolidImage(width, height, c))
}

// EncodeDDS writes img as an uncompressed 32-bit BGRA DDS surface.
func EncodeDDS(t testing.TB, img *image.NRGBA) []byte {
	t.Helper()
	b := img.Bounds()
	var buf bytes.Buffer
	buf.WriteString("DDS ")
	h := make([]byte, 124)
	binary.LittleEndian.PutUint32(h[0:], 124)
	binary.LittleEndian.PutUint32(h[4:], 0x100f)
	binary.LittleEndian.PutUint32(h[8:], uint32(b.Dy()))
	binary.LittleEndian.PutUint32(h[12:], uint32(b.Dx()))
	binary.LittleEndian.PutUint32(h[16:], uint32(b.Dx()*4))
	binary.LittleEndian.PutUint32(h[72:], 32)
	binary.LittleEndian.PutUint32(h[76:], 0x41)
	binary.LittleEndian.PutUint32(h[84:], 32)
	binary.LittleEndian.PutUint32(h[88:], 0x00ff0000)
	binary.LittleEndian.PutUint32(h[92:], 0x0000ff00)
	binary.LittleEndian.PutUint32(h[96:], 0x000000ff)
	binary.LittleEndian.PutUint32(h[100:], 0xff000000)
	binary.LittleEndian.PutUint32(h[104:], 0x1000)
	buf.Write(h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			buf.Write([]byte{c.B, c.G, c.R, c.A})
		}
	}
	return buf.Bytes()
}
