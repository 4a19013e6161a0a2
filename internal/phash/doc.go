// Package phash computes the six perceptual fingerprints stored for every
// extracted image: average, difference and DCT-based perceptual hashes, each
// over Rec.601 luma and over the R, G and B channels.
//
// Grayscale hashes are hashSize² bits. Color hashes concatenate the three
// per-channel hashes (R, then G, then B), so two textures with the same
// structure but a different hue share their grayscale hashes while their
// color hashes diverge. Hashers are immutable after construction and safe
// for concurrent use; no work here touches I/O.
package phash
