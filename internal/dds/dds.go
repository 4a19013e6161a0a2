package dds

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

const (
	magic      = "DDS "
	headerSize = 124

	pfAlphaPixels = 0x1
	pfFourCC      = 0x4
	pfRGB         = 0x40
	pfLuminance   = 0x20000

	maxDimension = 16384
)

var (
	// ErrUnsupported marks well-formed surfaces whose pixel layout is not decoded.
	ErrUnsupported = errors.New("dds: unsupported pixel format")
	// ErrFormat marks data that is not a valid DDS file.
	ErrFormat = errors.New("dds: invalid format")
)

func init() {
	image.RegisterFormat("dds", magic, Decode, DecodeConfig)
}

type pixelFormat struct {
	flags    uint32
	fourCC   string
	bitCount uint32
	rMask    uint32
	gMask    uint32
	bMask    uint32
	aMask    uint32
}

type header struct {
	width  int
	height int
	format pixelFormat
}

func readHeader(r io.Reader) (header, error) {
	var buf [4 + headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return header{}, fmt.Errorf("%w: short header: %v", ErrFormat, err)
	}
	if string(buf[:4]) != magic {
		return header{}, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	h := buf[4:]
	if size := binary.LittleEndian.Uint32(h[0:]); size != headerSize {
		return header{}, fmt.Errorf("%w: header size %d", ErrFormat, size)
	}
	height := binary.LittleEndian.Uint32(h[8:])
	width := binary.LittleEndian.Uint32(h[12:])
	if width == 0 || height == 0 || width > maxDimension || height > maxDimension {
		return header{}, fmt.Errorf("%w: dimensions %dx%d", ErrFormat, width, height)
	}
	pf := h[72:104]
	format := pixelFormat{
		flags:    binary.LittleEndian.Uint32(pf[4:]),
		fourCC:   string(pf[8:12]),
		bitCount: binary.LittleEndian.Uint32(pf[12:]),
		rMask:    binary.LittleEndian.Uint32(pf[16:]),
		gMask:    binary.LittleEndian.Uint32(pf[20:]),
		bMask:    binary.LittleEndian.Uint32(pf[24:]),
		aMask:    binary.LittleEndian.Uint32(pf[28:]),
	}
	return header{width: int(width), height: int(height), format: format}, nil
}

// DecodeConfig returns the dimensions of the surface without decoding pixels.
func DecodeConfig(r io.Reader) (image.Config, error) {
	h, err := readHeader(r)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.NRGBAModel, Width: h.width, Height: h.height}, nil
}

// Decode reads the top-level surface.
func Decode(r io.Reader) (image.Image, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, h.width, h.height))

	pf := h.format
	switch {
	case pf.flags&pfFourCC != 0:
		blockBytes := 16
		var decodeBlock func(block []byte, dst *[16]color.NRGBA)
		switch pf.fourCC {
		case "DXT1":
			blockBytes = 8
			decodeBlock = decodeDXT1
		case "DXT3":
			decodeBlock = decodeDXT3
		case "DXT5":
			decodeBlock = decodeDXT5
		default:
			return nil, fmt.Errorf("%w: fourcc %q", ErrUnsupported, pf.fourCC)
		}
		if err := decodeBlocks(r, img, blockBytes, decodeBlock); err != nil {
			return nil, err
		}
	case pf.flags&(pfRGB|pfLuminance) != 0:
		if err := decodeMasked(r, img, pf); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: flags 0x%x", ErrUnsupported, pf.flags)
	}
	return img, nil
}

func decodeBlocks(r io.Reader, img *image.NRGBA, blockBytes int, decodeBlock func([]byte, *[16]color.NRGBA)) error {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	blocksWide := (width + 3) / 4
	blocksHigh := (height + 3) / 4
	row := make([]byte, blocksWide*blockBytes)
	var texels [16]color.NRGBA

	for by := 0; by < blocksHigh; by++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return fmt.Errorf("%w: truncated block data: %v", ErrFormat, err)
		}
		for bx := 0; bx < blocksWide; bx++ {
			decodeBlock(row[bx*blockBytes:(bx+1)*blockBytes], &texels)
			for i, c := range texels {
				x := bx*4 + i%4
				y := by*4 + i/4
				if x < width && y < height {
					img.SetNRGBA(x, y, c)
				}
			}
		}
	}
	return nil
}

func decodeMasked(r io.Reader, img *image.NRGBA, pf pixelFormat) error {
	if pf.bitCount == 0 || pf.bitCount > 32 || pf.bitCount%8 != 0 {
		return fmt.Errorf("%w: %d bits per pixel", ErrUnsupported, pf.bitCount)
	}
	bytesPerPixel := int(pf.bitCount / 8)
	width, height := img.Rect.Dx(), img.Rect.Dy()
	row := make([]byte, width*bytesPerPixel)
	luminance := pf.flags&pfLuminance != 0
	hasAlpha := pf.flags&pfAlphaPixels != 0 && pf.aMask != 0

	for y := 0; y < height; y++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return fmt.Errorf("%w: truncated pixel data: %v", ErrFormat, err)
		}
		for x := 0; x < width; x++ {
			var v uint32
			for b := 0; b < bytesPerPixel; b++ {
				v |= uint32(row[x*bytesPerPixel+b]) << (8 * b)
			}
			c := color.NRGBA{A: 0xff}
			if luminance {
				l := extract(v, pf.rMask)
				c.R, c.G, c.B = l, l, l
			} else {
				c.R = extract(v, pf.rMask)
				c.G = extract(v, pf.gMask)
				c.B = extract(v, pf.bMask)
			}
			if hasAlpha {
				c.A = extract(v, pf.aMask)
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return nil
}

// extract isolates the masked channel and rescales it to 8 bits.
func extract(v, mask uint32) uint8 {
	if mask == 0 {
		return 0
	}
	shift := 0
	for mask&1 == 0 {
		mask >>= 1
		shift++
	}
	value := (v >> shift) & mask
	if mask == 0xff {
		return uint8(value)
	}
	return uint8((value*255 + mask/2) / mask)
}
