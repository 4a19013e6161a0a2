package phash

// Set holds the six fingerprints of one image plus the decoded geometry.
type Set struct {
	GrayAverage     Hash
	GrayDifference  Hash
	GrayPerceptual  Hash
	ColorAverage    Hash
	ColorDifference Hash
	ColorPerceptual Hash

	Width  int
	Height int
	Format string
}

// Get returns the fingerprint of the requested kind.
func (s Set) Get(kind Kind) Hash {
	switch kind {
	case GrayAverage:
		return s.GrayAverage
	case GrayDifference:
		return s.GrayDifference
	case GrayPerceptual:
		return s.GrayPerceptual
	case ColorAverage:
		return s.ColorAverage
	case ColorDifference:
		return s.ColorDifference
	case ColorPerceptual:
		return s.ColorPerceptual
	default:
		return nil
	}
}

// Complete reports whether every fingerprint is present.
func (s Set) Complete() bool {
	for _, k := range allKinds {
		if len(s.Get(k)) == 0 {
			return false
		}
	}
	return true
}

// Equal compares the six fingerprints; geometry is ignored.
func (s Set) Equal(other Set) bool {
	for _, k := range allKinds {
		if !s.Get(k).Equal(other.Get(k)) {
			return false
		}
	}
	return true
}
