package phash

import (
	"encoding/hex"
	"fmt"
	"math/bits"
	"strings"
)

// Hash is a fixed-length bit string packed most significant bit first.
type Hash []byte

// ParseHash decodes the hex form produced by Hash.String.
func ParseHash(value string) (Hash, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	data, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("parse hash: %w", err)
	}
	return Hash(data), nil
}

// String returns the lowercase hex encoding.
func (h Hash) String() string {
	return hex.EncodeToString(h)
}

// Bits returns the bit length.
func (h Hash) Bits() int {
	return len(h) * 8
}

// Bit reports whether bit i (0 = most significant) is set.
func (h Hash) Bit(i int) bool {
	return h[i/8]&(0x80>>(i%8)) != 0
}

// Distance returns the Hamming distance between two hashes of equal length.
func (h Hash) Distance(other Hash) (int, error) {
	if len(h) != len(other) {
		return 0, fmt.Errorf("hash length mismatch: %d vs %d bits", h.Bits(), other.Bits())
	}
	d := 0
	for i := range h {
		d += bits.OnesCount8(h[i] ^ other[i])
	}
	return d, nil
}

// Equal reports whether both hashes have identical bits.
func (h Hash) Equal(other Hash) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}

func packBits(set []bool) Hash {
	out := make(Hash, (len(set)+7)/8)
	for i, on := range set {
		if on {
			out[i/8] |= 0x80 >> (i % 8)
		}
	}
	return out
}

func concat(parts ...Hash) Hash {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make(Hash, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
