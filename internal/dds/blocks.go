package dds

import (
	"encoding/binary"
	"image/color"
)

func rgb565(v uint16) color.NRGBA {
	r := uint32(v>>11) & 0x1f
	g := uint32(v>>5) & 0x3f
	b := uint32(v) & 0x1f
	return color.NRGBA{
		R: uint8((r*255 + 15) / 31),
		G: uint8((g*255 + 31) / 63),
		B: uint8((b*255 + 15) / 31),
		A: 0xff,
	}
}

func mix(a, b color.NRGBA, wa, wb, div uint32) color.NRGBA {
	return color.NRGBA{
		R: uint8((uint32(a.R)*wa + uint32(b.R)*wb) / div),
		G: uint8((uint32(a.G)*wa + uint32(b.G)*wb) / div),
		B: uint8((uint32(a.B)*wa + uint32(b.B)*wb) / div),
		A: 0xff,
	}
}

// decodeColors expands the 8-byte color half shared by every DXT variant.
// DXT3 and DXT5 always use the four-color palette.
func decodeColors(block []byte, dst *[16]color.NRGBA, allowPunchThrough bool) {
	c0 := binary.LittleEndian.Uint16(block[0:])
	c1 := binary.LittleEndian.Uint16(block[2:])
	var palette [4]color.NRGBA
	palette[0] = rgb565(c0)
	palette[1] = rgb565(c1)
	if c0 > c1 || !allowPunchThrough {
		palette[2] = mix(palette[0], palette[1], 2, 1, 3)
		palette[3] = mix(palette[0], palette[1], 1, 2, 3)
	} else {
		palette[2] = mix(palette[0], palette[1], 1, 1, 2)
		palette[3] = color.NRGBA{}
	}
	indices := binary.LittleEndian.Uint32(block[4:])
	for i := 0; i < 16; i++ {
		dst[i] = palette[(indices>>(2*i))&0x3]
	}
}

func decodeDXT1(block []byte, dst *[16]color.NRGBA) {
	decodeColors(block, dst, true)
}

func decodeDXT3(block []byte, dst *[16]color.NRGBA) {
	decodeColors(block[8:], dst, false)
	alpha := binary.LittleEndian.Uint64(block[0:])
	for i := 0; i < 16; i++ {
		a := uint8((alpha >> (4 * i)) & 0xf)
		dst[i].A = a<<4 | a
	}
}

func decodeDXT5(block []byte, dst *[16]color.NRGBA) {
	decodeColors(block[8:], dst, false)
	a0 := uint32(block[0])
	a1 := uint32(block[1])
	var palette [8]uint8
	palette[0] = uint8(a0)
	palette[1] = uint8(a1)
	if a0 > a1 {
		for i := uint32(1); i <= 6; i++ {
			palette[1+i] = uint8(((7-i)*a0 + i*a1) / 7)
		}
	} else {
		for i := uint32(1); i <= 4; i++ {
			palette[1+i] = uint8(((5-i)*a0 + i*a1) / 5)
		}
		palette[6] = 0
		palette[7] = 0xff
	}
	var bits uint64
	for i := 0; i < 6; i++ {
		bits |= uint64(block[2+i]) << (8 * i)
	}
	for i := 0; i < 16; i++ {
		dst[i].A = palette[(bits>>(3*i))&0x7]
	}
}
