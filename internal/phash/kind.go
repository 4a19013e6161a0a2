package phash

import (
	"fmt"
	"strings"
)

// Kind names one of the six stored fingerprints.
type Kind string

const (
	GrayAverage     Kind = "gray_average"
	GrayDifference  Kind = "gray_difference"
	GrayPerceptual  Kind = "gray_perceptual"
	ColorAverage    Kind = "color_average"
	ColorDifference Kind = "color_difference"
	ColorPerceptual Kind = "color_perceptual"
)

var allKinds = []Kind{GrayAverage, GrayDifference, GrayPerceptual, ColorAverage, ColorDifference, ColorPerceptual}

var kindAliases = map[string]Kind{
	"ahash":       GrayAverage,
	"dhash":       GrayDifference,
	"phash":       GrayPerceptual,
	"color_ahash": ColorAverage,
	"color_dhash": ColorDifference,
	"color_phash": ColorPerceptual,
}

// Kinds returns every fingerprint kind in storage order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// ParseKind accepts the canonical names and the short ahash/dhash/phash
// spellings.
func ParseKind(value string) (Kind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	for _, k := range allKinds {
		if string(k) == normalized {
			return k, nil
		}
	}
	if k, ok := kindAliases[normalized]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown fingerprint kind %q", value)
}

// IsColor reports whether the kind is a per-channel fingerprint.
func (k Kind) IsColor() bool {
	return k == ColorAverage || k == ColorDifference || k == ColorPerceptual
}
