package netchan

import "hash/crc32"

// Checksum returns the 16-bit packet checksum: the IEEE CRC32 of data with
// its high and low halves folded together.
func Checksum(data []byte) uint16 {
	crc := crc32.ChecksumIEEE(data)
	return uint16(crc) ^ uint16(crc>>16)
}
