package dds

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"testing"
)

type surface struct {
	width, height int
	flags         uint32
	fourCC        string
	bitCount      uint32
	masks         [4]uint32
}

func buildDDS(s surface, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("DDS ")
	h := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(h[0:], headerSize)
	binary.LittleEndian.PutUint32(h[4:], 0x1007)
	binary.LittleEndian.PutUint32(h[8:], uint32(s.height))
	binary.LittleEndian.PutUint32(h[12:], uint32(s.width))
	binary.LittleEndian.PutUint32(h[72:], 32)
	binary.LittleEndian.PutUint32(h[76:], s.flags)
	copy(h[80:84], s.fourCC)
	binary.LittleEndian.PutUint32(h[84:], s.bitCount)
	for i, m := range s.masks {
		binary.LittleEndian.PutUint32(h[88+4*i:], m)
	}
	buf.Write(h)
	buf.Write(payload)
	return buf.Bytes()
}

func TestDecodeUncompressedBGRA(t *testing.T) {
	s := surface{
		width: 2, height: 2,
		flags:    pfRGB | pfAlphaPixels,
		bitCount: 32,
		masks:    [4]uint32{0x00ff0000, 0x0000ff00, 0x000000ff, 0xff000000},
	}
	// B, G, R, A byte order.
	payload := []byte{
		0x00, 0x00, 0xff, 0xff, 0x00, 0xff, 0x00, 0xff,
		0xff, 0x00, 0x00, 0x80, 0x10, 0x20, 0x30, 0x00,
	}
	img, err := Decode(bytes.NewReader(buildDDS(s, payload)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	nrgba := img.(*image.NRGBA)
	want := map[image.Point]color.NRGBA{
		{0, 0}: {R: 0xff, A: 0xff},
		{1, 0}: {G: 0xff, A: 0xff},
		{0, 1}: {B: 0xff, A: 0x80},
		{1, 1}: {R: 0x30, G: 0x20, B: 0x10, A: 0x00},
	}
	for pt, c := range want {
		if got := nrgba.NRGBAAt(pt.X, pt.Y); got != c {
			t.Errorf("pixel %v = %#v, want %#v", pt, got, c)
		}
	}
}

func TestDecodeRGB565(t *testing.T) {
	s := surface{
		width: 1, height: 1,
		flags:    pfRGB,
		bitCount: 16,
		masks:    [4]uint32{0xf800, 0x07e0, 0x001f, 0},
	}
	payload := []byte{0x00, 0xf8}
	img, err := Decode(bytes.NewReader(buildDDS(s, payload)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := img.(*image.NRGBA).NRGBAAt(0, 0); got != (color.NRGBA{R: 0xff, A: 0xff}) {
		t.Fatalf("pixel = %#v", got)
	}
}

func TestDecodeDXT1(t *testing.T) {
	block := make([]byte, 8)
	binary.LittleEndian.PutUint16(block[0:], 0xf800) // red
	binary.LittleEndian.PutUint16(block[2:], 0x001f) // blue
	// first row uses palette index 1, remaining rows index 0
	binary.LittleEndian.PutUint32(block[4:], 0x55)

	s := surface{width: 4, height: 4, flags: pfFourCC, fourCC: "DXT1"}
	img, err := Decode(bytes.NewReader(buildDDS(s, block)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	nrgba := img.(*image.NRGBA)
	if got := nrgba.NRGBAAt(2, 0); got != (color.NRGBA{B: 0xff, A: 0xff}) {
		t.Fatalf("row 0 = %#v, want blue", got)
	}
	if got := nrgba.NRGBAAt(2, 3); got != (color.NRGBA{R: 0xff, A: 0xff}) {
		t.Fatalf("row 3 = %#v, want red", got)
	}
}

func TestDecodeDXT1PartialBlock(t *testing.T) {
	block := make([]byte, 8)
	binary.LittleEndian.PutUint16(block[0:], 0x07e0)
	s := surface{width: 3, height: 2, flags: pfFourCC, fourCC: "DXT1"}
	img, err := Decode(bytes.NewReader(buildDDS(s, block)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("bounds = %v", b)
	}
	if got := img.(*image.NRGBA).NRGBAAt(2, 1); got != (color.NRGBA{G: 0xff, A: 0xff}) {
		t.Fatalf("pixel = %#v, want green", got)
	}
}

func TestDecodeDXT5Alpha(t *testing.T) {
	block := make([]byte, 16)
	block[0] = 0xff
	block[1] = 0x00
	// all alpha indices 1 -> palette[1] == 0
	bits := uint64(0)
	for i := 0; i < 16; i++ {
		bits |= 1 << (3 * i)
	}
	for i := 0; i < 6; i++ {
		block[2+i] = byte(bits >> (8 * i))
	}
	binary.LittleEndian.PutUint16(block[8:], 0xffff)
	binary.LittleEndian.PutUint16(block[10:], 0x0000)

	s := surface{width: 4, height: 4, flags: pfFourCC, fourCC: "DXT5"}
	img, err := Decode(bytes.NewReader(buildDDS(s, block)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := img.(*image.NRGBA).NRGBAAt(1, 1)
	if got.A != 0 || got.R != 0xff || got.G != 0xff || got.B != 0xff {
		t.Fatalf("pixel = %#v, want transparent white", got)
	}
}

func TestDecodeRejectsUnsupportedFourCC(t *testing.T) {
	s := surface{width: 4, height: 4, flags: pfFourCC, fourCC: "ATI2"}
	_, err := Decode(bytes.NewReader(buildDDS(s, make([]byte, 16))))
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("not a texture at all"))); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
	s := surface{width: 4, height: 4, flags: pfFourCC, fourCC: "DXT1"}
	if _, err := Decode(bytes.NewReader(buildDDS(s, []byte{1, 2}))); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat for truncated data, got %v", err)
	}
}

func TestRegisteredWithImageDecode(t *testing.T) {
	s := surface{width: 8, height: 4, flags: pfFourCC, fourCC: "DXT1"}
	data := buildDDS(s, make([]byte, 16))
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if format != "dds" || cfg.Width != 8 || cfg.Height != 4 {
		t.Fatalf("unexpected config %q %+v", format, cfg)
	}
	if _, format, err := image.Decode(bytes.NewReader(data)); err != nil || format != "dds" {
		t.Fatalf("image.Decode = %q, %v", format, err)
	}
}
