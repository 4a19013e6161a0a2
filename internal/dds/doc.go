// Package dds decodes the top mip level of DirectDraw Surface textures into
// image.NRGBA so extracted game textures can be fingerprinted.
//
// Supported layouts: uncompressed RGB/RGBA/luminance described by bit masks,
// and the block-compressed DXT1, DXT3 and DXT5 FourCCs. Everything else
// (DX10 extended headers, cube maps beyond the first face, volume textures)
// returns ErrUnsupported. Importing the package registers the "dds" format
// with image.Decode.
package dds
