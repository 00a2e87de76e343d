package icmp

// Checksum computes the RFC 1071 Internet checksum of b.
// An odd trailing byte is treated as the high byte of a zero-padded word.
func Checksum(b []byte) uint16 {
	return ^fold(sum(b))
}

// VerifyChecksum reports whether b, including its embedded checksum field,
// sums to zero in one's complement arithmetic.
func VerifyChecksum(b []byte) bool {
	return ^fold(sum(b)) == 0
}

func sum(b []byte) uint32 {
	var s uint32
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		s += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if n%2 == 1 {
		s += uint32(b[n-1]) << 8
	}
	return s
}

func fold(s uint32) uint16 {
	for s>>16 != 0 {
		s = (s >> 16) + (s & 0xffff)
	}
	return uint16(s)
}
