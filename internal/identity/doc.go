// Package identity derives the stable identifiers the registry keys every
// catalogued file by.
//
// An identity is a SHA-256 digest over the file's content digest and the
// xxhash digest of its normalized logical path, so identical bytes at two
// paths, or two versions of the bytes at one path, never share an identity.
// Logical paths are normalized here (forward slashes, cleaned, NFC) and every
// other package relies on NormalizePath instead of rolling its own rules.
package identity
