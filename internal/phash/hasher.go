package phash

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	// Decoders for every texture format the extraction tools emit.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	_ "assetreg/internal/dds"
)

const (
	DefaultHashSize       = 8
	DefaultHighFreqFactor = 4
	DefaultMaxPixels      = 64 * 1024 * 1024
)

// ErrUnsupportedImageFormat marks content that could not be decoded into
// pixels. The catalog row is still written; it simply carries no fingerprints.
var ErrUnsupportedImageFormat = errors.New("unsupported image format")

// Options tunes grid sizes. Zero values select the defaults.
type Options struct {
	HashSize       int
	HighFreqFactor int
	MaxPixels      int
}

// Hasher computes fingerprint sets.
type Hasher struct {
	hashSize  int
	dctSize   int
	maxPixels int
	cosines   []float64
}

// NewHasher validates options and precomputes the DCT basis.
func NewHasher(opts Options) (*Hasher, error) {
	if opts.HashSize == 0 {
		opts.HashSize = DefaultHashSize
	}
	if opts.HighFreqFactor == 0 {
		opts.HighFreqFactor = DefaultHighFreqFactor
	}
	if opts.MaxPixels == 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if opts.HashSize < 4 || opts.HashSize > 32 || opts.HashSize%4 != 0 {
		return nil, fmt.Errorf("hash size must be a multiple of 4 between 4 and 32, got %d", opts.HashSize)
	}
	if opts.HighFreqFactor < 1 || opts.HighFreqFactor > 8 {
		return nil, fmt.Errorf("high frequency factor must be between 1 and 8, got %d", opts.HighFreqFactor)
	}
	if opts.MaxPixels < 0 {
		return nil, fmt.Errorf("max pixels must not be negative, got %d", opts.MaxPixels)
	}
	n := opts.HashSize * opts.HighFreqFactor
	return &Hasher{
		hashSize:  opts.HashSize,
		dctSize:   n,
		maxPixels: opts.MaxPixels,
		cosines:   dctBasis(n),
	}, nil
}

// HashBits returns the bit length of a grayscale fingerprint. Color
// fingerprints are three times as long.
func (h *Hasher) HashBits() int {
	return h.hashSize * h.hashSize
}

// ComputeBytes decodes an encoded image and fingerprints it.
func (h *Hasher) ComputeBytes(data []byte) (Set, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Set{}, fmt.Errorf("%w: %v", ErrUnsupportedImageFormat, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Set{}, fmt.Errorf("%w: empty %s image", ErrUnsupportedImageFormat, format)
	}
	if h.maxPixels > 0 && cfg.Width*cfg.Height > h.maxPixels {
		return Set{}, fmt.Errorf("%w: %dx%d exceeds pixel limit", ErrUnsupportedImageFormat, cfg.Width, cfg.Height)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Set{}, fmt.Errorf("%w: decode %s: %v", ErrUnsupportedImageFormat, format, err)
	}
	set, err := h.Compute(img)
	if err != nil {
		return Set{}, err
	}
	set.Format = format
	return set, nil
}

// Compute fingerprints decoded pixels. Identical pixels always produce
// identical sets.
func (h *Hasher) Compute(img image.Image) (Set, error) {
	if img == nil || img.Bounds().Empty() {
		return Set{}, fmt.Errorf("%w: empty image", ErrUnsupportedImageFormat)
	}
	p := splitPlanes(img)

	red := h.planeHashes(p.red)
	green := h.planeHashes(p.green)
	blue := h.planeHashes(p.blue)
	gray := h.planeHashes(p.gray)

	return Set{
		GrayAverage:     gray.average,
		GrayDifference:  gray.difference,
		GrayPerceptual:  gray.perceptual,
		ColorAverage:    concat(red.average, green.average, blue.average),
		ColorDifference: concat(red.difference, green.difference, blue.difference),
		ColorPerceptual: concat(red.perceptual, green.perceptual, blue.perceptual),
		Width:           img.Bounds().Dx(),
		Height:          img.Bounds().Dy(),
	}, nil
}

type hashTriple struct {
	average    Hash
	difference Hash
	perceptual Hash
}

func (h *Hasher) planeHashes(plane *image.Gray) hashTriple {
	return hashTriple{
		average:    h.averageHash(plane),
		difference: h.differenceHash(plane),
		perceptual: h.perceptualHash(plane),
	}
}

func (h *Hasher) averageHash(plane *image.Gray) Hash {
	px := downsample(plane, h.hashSize, h.hashSize)
	var sum float64
	for _, v := range px {
		sum += v
	}
	mean := sum / float64(len(px))
	set := make([]bool, len(px))
	for i, v := range px {
		set[i] = v > mean
	}
	return packBits(set)
}

func (h *Hasher) differenceHash(plane *image.Gray) Hash {
	width := h.hashSize + 1
	px := downsample(plane, width, h.hashSize)
	set := make([]bool, 0, h.hashSize*h.hashSize)
	for y := 0; y < h.hashSize; y++ {
		row := px[y*width : (y+1)*width]
		for x := 0; x < h.hashSize; x++ {
			set = append(set, row[x+1] > row[x])
		}
	}
	return packBits(set)
}

func (h *Hasher) perceptualHash(plane *image.Gray) Hash {
	n := h.dctSize
	px := downsample(plane, n, n)
	coeffs := h.dct2D(px)

	low := make([]float64, 0, h.hashSize*h.hashSize)
	for y := 0; y < h.hashSize; y++ {
		low = append(low, coeffs[y*n:y*n+h.hashSize]...)
	}
	med := median(low)
	set := make([]bool, len(low))
	for i, v := range low {
		set[i] = v > med
	}
	return packBits(set)
}

// dct2D applies an unnormalized DCT-II along columns, then rows.
func (h *Hasher) dct2D(px []float64) []float64 {
	n := h.dctSize
	tmp := make([]float64, n*n)
	out := make([]float64, n*n)
	for x := 0; x < n; x++ {
		for k := 0; k < n; k++ {
			var acc float64
			for y := 0; y < n; y++ {
				acc += px[y*n+x] * h.cosines[k*n+y]
			}
			tmp[k*n+x] = 2 * acc
		}
	}
	for y := 0; y < n; y++ {
		for k := 0; k < n; k++ {
			var acc float64
			for x := 0; x < n; x++ {
				acc += tmp[y*n+x] * h.cosines[k*n+x]
			}
			out[y*n+k] = 2 * acc
		}
	}
	return out
}

func dctBasis(n int) []float64 {
	basis := make([]float64, n*n)
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			basis[k*n+i] = math.Cos(math.Pi * float64(k) * float64(2*i+1) / float64(2*n))
		}
	}
	return basis
}

func downsample(plane *image.Gray, width, height int) []float64 {
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), plane, plane.Bounds(), draw.Src, nil)
	out := make([]float64, width*height)
	for y := 0; y < height; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+width]
		for x, v := range row {
			out[y*width+x] = float64(v)
		}
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
