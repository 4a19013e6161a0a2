package phash

import (
	"image"

	"golang.org/x/image/draw"
)

type planes struct {
	gray  *image.Gray
	red   *image.Gray
	green *image.Gray
	blue  *image.Gray
}

// splitPlanes flattens the image onto RGBA once and derives the luma plane
// and the three channel planes from it.
func splitPlanes(img image.Image) planes {
	rgba := toRGBA(img)
	rect := image.Rect(0, 0, rgba.Rect.Dx(), rgba.Rect.Dy())
	p := planes{
		gray:  image.NewGray(rect),
		red:   image.NewGray(rect),
		green: image.NewGray(rect),
		blue:  image.NewGray(rect),
	}
	for y := 0; y < rect.Dy(); y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+rect.Dx()*4]
		off := y * p.gray.Stride
		for x := 0; x < rect.Dx(); x++ {
			r, g, b := src[x*4], src[x*4+1], src[x*4+2]
			p.red.Pix[off+x] = r
			p.green.Pix[off+x] = g
			p.blue.Pix[off+x] = b
			p.gray.Pix[off+x] = luma(r, g, b)
		}
	}
	return p
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// luma matches image/color.GrayModel so fingerprints agree with any gray
// conversion done through the standard library.
func luma(r, g, b uint8) uint8 {
	r16 := uint32(r) * 0x101
	g16 := uint32(g) * 0x101
	b16 := uint32(b) * 0x101
	return uint8((19595*r16 + 38470*g16 + 7471*b16 + 1<<15) >> 24)
}
