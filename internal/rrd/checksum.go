package rrd

import "hash/crc32"

// Checksum computes the CRC-32 the producer stores alongside the region.
// The producer links zlib's crc32, which is the IEEE polynomial with the
// standard init and final xor, so this must stay crc32.ChecksumIEEE
// bit-for-bit.
func Checksum(p []byte) uint32 {
	return crc32.ChecksumIEEE(p)
}
