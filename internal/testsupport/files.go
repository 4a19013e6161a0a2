package testsupport

// PatternBytes returns size bytes of a repeating pattern seeded by fill, so
// callers can produce distinct non-image payloads. A size <= 0 yields a
// single byte.
func PatternBytes(size int, fill byte) []byte {
	if size <= 0 {
		size = 1
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = fill + byte(i%7)
	}
	return buf
}
