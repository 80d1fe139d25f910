package bitbuf

// BitsToBytes rounds a bit count up to whole bytes.
func BitsToBytes(bits int) int {
	return (bits + 7) >> 3
}

// BitsFor returns the number of bits needed to store values in [0, n].
func BitsFor(n uint32) int {
	bits := 0
	for n > 0 {
		bits++
		n >>= 1
	}
	return bits
}
