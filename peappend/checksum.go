package peappend

// Checksum computes the PE image checksum of buf.
//
// buf is summed as little-endian 32-bit words with the carry folded back in
// after every addition. A trailing partial word is zero padded. The sum is
// folded to 16 bits twice and the image length added. Whatever is currently
// stored in the checksum field is summed like any other data.
//
// http://stackoverflow.com/questions/6429779/can-anyone-define-the-windows-pe-checksum-algorithm
func Checksum(buf []byte) uint32 {
	var sum uint64

	words := len(buf) &^ 3
	for i := 0; i < words; i += 4 {
		sum = foldCarry(sum + uint64(byteOrder.Uint32(buf[i:i+4])))
	}

	if words < len(buf) {
		var tail [4]byte
		copy(tail[:], buf[words:])
		sum = foldCarry(sum + uint64(byteOrder.Uint32(tail[:])))
	}

	sum = (sum >> 16) + (sum & 0xffff)
	sum = (sum >> 16) + (sum & 0xffff)

	return uint32(sum&0xffff) + uint32(len(buf))
}

func foldCarry(sum uint64) uint64 {
	if sum >= 1<<32 {
		sum = (sum & 0xffffffff) + (sum >> 32)
	}
	return sum
}
