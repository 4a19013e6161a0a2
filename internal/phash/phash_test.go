package phash_test

import (
	"errors"
	"image/color"
	"testing"

	"assetreg/internal/phash"
	"assetreg/internal/testsupport"
)

func newHasher(t *testing.T) *phash.Hasher {
	t.Helper()
	h, err := phash.NewHasher(phash.Options{})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

func TestComputeIsDeterministic(t *testing.T) {
	h := newHasher(t)
	data := testsupport.EncodePNG(t, testsupport.GradientImage(64, 48, 0x17))

	first, err := h.ComputeBytes(data)
	if err != nil {
		t.Fatalf("ComputeBytes: %v", err)
	}
	second, err := h.ComputeBytes(append([]byte(nil), data...))
	if err != nil {
		t.Fatalf("ComputeBytes: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("identical bytes produced different fingerprints")
	}
	if !first.Complete() {
		t.Fatalf("expected all six fingerprints, got %+v", first)
	}
	if first.Width != 64 || first.Height != 48 || first.Format != "png" {
		t.Fatalf("unexpected geometry %dx%d %s", first.Width, first.Height, first.Format)
	}
	for _, kind := range phash.Kinds() {
		want := 64
		if kind.IsColor() {
			want = 192
		}
		if got := first.Get(kind).Bits(); got != want {
			t.Fatalf("%s: %d bits, want %d", kind, got, want)
		}
	}
}

func TestIdenticalPixelsAcrossContainers(t *testing.T) {
	h := newHasher(t)
	img := testsupport.GradientImage(32, 32, 0x40)

	fromPNG, err := h.ComputeBytes(testsupport.EncodePNG(t, img))
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	fromDDS, err := h.ComputeBytes(testsupport.EncodeDDS(t, img))
	if err != nil {
		t.Fatalf("dds: %v", err)
	}
	if fromDDS.Format != "dds" {
		t.Fatalf("format = %q, want dds", fromDDS.Format)
	}
	if !fromPNG.Equal(fromDDS) {
		t.Fatalf("same pixels in png and dds produced different fingerprints")
	}
}

func TestHueShiftKeepsGrayChangesColor(t *testing.T) {
	h := newHasher(t)

	warm := color.NRGBA{R: 200, G: 40, B: 40, A: 0xff}
	gray := color.GrayModel.Convert(warm).(color.Gray).Y
	cool := color.NRGBA{R: 40, B: 40, A: 0xff}
	found := false
	for g := 0; g < 256; g++ {
		cool.G = uint8(g)
		if color.GrayModel.Convert(cool).(color.Gray).Y == gray {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("no green level matches luma %d", gray)
	}

	a, err := h.Compute(testsupport.SplitImage(64, 64, warm, cool))
	if err != nil {
		t.Fatalf("Compute a: %v", err)
	}
	b, err := h.Compute(testsupport.SplitImage(64, 64, cool, warm))
	if err != nil {
		t.Fatalf("Compute b: %v", err)
	}

	for _, kind := range []phash.Kind{phash.GrayAverage, phash.GrayDifference, phash.GrayPerceptual} {
		if !a.Get(kind).Equal(b.Get(kind)) {
			t.Fatalf("%s differs for a hue swap", kind)
		}
	}
	for _, kind := range []phash.Kind{phash.ColorAverage, phash.ColorDifference, phash.ColorPerceptual} {
		d, err := a.Get(kind).Distance(b.Get(kind))
		if err != nil {
			t.Fatalf("%s distance: %v", kind, err)
		}
		if d == 0 {
			t.Fatalf("%s did not change for a hue swap", kind)
		}
	}
}

func TestDifferentImagesDiffer(t *testing.T) {
	h := newHasher(t)
	a, err := h.Compute(testsupport.GradientImage(64, 64, 0x00))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, err := h.Compute(testsupport.SplitImage(64, 64, color.NRGBA{A: 0xff}, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if a.Equal(b) {
		t.Fatalf("unrelated images share every fingerprint")
	}
}

func TestUndecodableBytes(t *testing.T) {
	h := newHasher(t)
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
		"short-dds": append([]byte("DDS "), make([]byte, 8)...),
	} {
		if _, err := h.ComputeBytes(data); !errors.Is(err, phash.ErrUnsupportedImageFormat) {
			t.Fatalf("%s: expected ErrUnsupportedImageFormat, got %v", name, err)
		}
	}
}

func TestPixelLimit(t *testing.T) {
	h, err := phash.NewHasher(phash.Options{MaxPixels: 100})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	data := testsupport.SolidPNG(t, 20, 20, color.NRGBA{R: 9, A: 0xff})
	if _, err := h.ComputeBytes(data); !errors.Is(err, phash.ErrUnsupportedImageFormat) {
		t.Fatalf("expected pixel limit rejection, got %v", err)
	}
}

func TestNewHasherValidation(t *testing.T) {
	for _, opts := range []phash.Options{
		{HashSize: 6},
		{HashSize: 64},
		{HighFreqFactor: 9},
		{MaxPixels: -1},
	} {
		if _, err := phash.NewHasher(opts); err == nil {
			t.Fatalf("expected error for %+v", opts)
		}
	}
	h, err := phash.NewHasher(phash.Options{HashSize: 16})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	if h.HashBits() != 256 {
		t.Fatalf("HashBits = %d, want 256", h.HashBits())
	}
}

func TestDistance(t *testing.T) {
	a, _ := phash.ParseHash("ff00")
	b, _ := phash.ParseHash("0f01")
	d, err := a.Distance(b)
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if d != 5 {
		t.Fatalf("distance = %d, want 5", d)
	}
	c, _ := phash.ParseHash("ff")
	if _, err := a.Distance(c); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if a.String() != "ff00" || !a.Bit(0) || a.Bit(8) {
		t.Fatalf("bit accessors disagree with hex %s", a)
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]phash.Kind{
		"gray_average":     phash.GrayAverage,
		"dhash":            phash.GrayDifference,
		"PHASH":            phash.GrayPerceptual,
		"color-perceptual": phash.ColorPerceptual,
		"color_ahash":      phash.ColorAverage,
	}
	for in, want := range cases {
		got, err := phash.ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := phash.ParseKind("wavelet"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
