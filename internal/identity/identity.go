package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

// Size is the length in hex characters of an identity and a content digest.
const Size = sha256.Size * 2

// Fingerprints carries the digests computed for one file.
type Fingerprints struct {
	Identity    string
	Content     string
	Path        string
	LogicalPath string
}

// Assign computes the content digest, path digest, and combined identity for
// a file. Empty content is valid and hashes deterministically.
func Assign(content []byte, logicalPath string) Fingerprints {
	sum := sha256.Sum256(content)
	return combine(sum, NormalizePath(logicalPath))
}

// AssignReader is Assign for content that should be streamed rather than
// held in memory.
func AssignReader(r io.Reader, logicalPath string) (Fingerprints, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Fingerprints{}, fmt.Errorf("hash content: %w", err)
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return combine(sum, NormalizePath(logicalPath)), nil
}

// PathFingerprint returns the fast digest of a logical path after
// normalization. It is a lookup key, not a unique identifier.
func PathFingerprint(logicalPath string) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64String(NormalizePath(logicalPath)))
	return hex.EncodeToString(buf[:])
}

func combine(content [sha256.Size]byte, normalized string) Fingerprints {
	var pathDigest [8]byte
	binary.BigEndian.PutUint64(pathDigest[:], xxhash.Sum64String(normalized))

	h := sha256.New()
	h.Write(content[:])
	h.Write(pathDigest[:])

	return Fingerprints{
		Identity:    hex.EncodeToString(h.Sum(nil)),
		Content:     hex.EncodeToString(content[:]),
		Path:        hex.EncodeToString(pathDigest[:]),
		LogicalPath: normalized,
	}
}

// NormalizePath converts a collaborator-supplied relative path into the
// canonical form stored in the catalog.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = norm.NFC.String(p)
	p = path.Clean(p)
	p = strings.TrimLeft(p, "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	if p == "." {
		return ""
	}
	return p
}

// EscapesRoot reports whether a normalized path climbs above the
// extraction root.
func EscapesRoot(normalized string) bool {
	return normalized == ".." || strings.HasPrefix(normalized, "../")
}

// BaseName returns the final element of a normalized logical path.
func BaseName(logicalPath string) string {
	normalized := NormalizePath(logicalPath)
	if normalized == "" {
		return ""
	}
	return path.Base(normalized)
}

// Valid reports whether value looks like an identity produced by Assign.
func Valid(value string) bool {
	if len(value) != Size {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}
