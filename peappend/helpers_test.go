package peappend

import "encoding/binary"

const (
	testPEOffset   = 0x80
	testImageLen   = 0x200
	testCertOffset = 0x180
	testCertLength = testImageLen - testCertOffset
)

// buildImage returns a synthetic PE32 stub. A zero certTableOffset leaves the
// image unsigned; otherwise certTableSize is written both to the data
// directory and to the head of the table.
func buildImage(totalLen int, peHeaderOffset uint32, peMagicNumber uint16, certTableOffset, certTableSize uint32) []byte {
	mapped := make([]byte, totalLen)
	optionalHeaderOffset := peHeaderOffset + 24

	binary.LittleEndian.PutUint32(mapped[0x3C:0x40], peHeaderOffset)
	binary.LittleEndian.PutUint32(mapped[peHeaderOffset:peHeaderOffset+4], 0x00004550)
	binary.LittleEndian.PutUint16(mapped[peHeaderOffset+20:peHeaderOffset+22], 224)
	binary.LittleEndian.PutUint16(mapped[optionalHeaderOffset:optionalHeaderOffset+2], peMagicNumber)
	// something other than zero in the stale checksum
	binary.LittleEndian.PutUint32(mapped[optionalHeaderOffset+64:optionalHeaderOffset+68], 0xdeadbeef)

	if certTableOffset != 0 {
		binary.LittleEndian.PutUint32(mapped[optionalHeaderOffset+128:optionalHeaderOffset+132], certTableOffset)
		binary.LittleEndian.PutUint32(mapped[optionalHeaderOffset+132:optionalHeaderOffset+136], certTableSize)
		binary.LittleEndian.PutUint32(mapped[certTableOffset:certTableOffset+4], certTableSize)
	}

	// filler so the checksum has something to chew on
	for i := 0x40; i < int(peHeaderOffset); i++ {
		mapped[i] = byte(i * 7)
	}

	return mapped
}

func unsignedImage() []byte {
	return buildImage(testImageLen, testPEOffset, 0x10b, 0, 0)
}

func signedImage() []byte {
	return buildImage(testImageLen, testPEOffset, 0x10b, testCertOffset, testCertLength)
}

// referenceChecksum is the checksum as it is usually written down, with
// modular arithmetic on a zero padded copy.
func referenceChecksum(buf []byte) uint64 {
	const limit = uint64(1) << 32

	padded := append([]byte{}, buf...)
	for len(padded)%4 != 0 {
		padded = append(padded, 0)
	}

	var checksum uint64
	for i := 0; i < len(padded); i += 4 {
		checksum += uint64(binary.LittleEndian.Uint32(padded[i : i+4]))
		if checksum >= limit {
			checksum = checksum%limit + checksum/limit
		}
	}

	checksum = (checksum >> 16) + (checksum & 0xffff)
	checksum = (checksum >> 16) + checksum

	return (checksum & 0xffff) + uint64(len(buf))
}

// expectedAppend applies an append by hand: trailer, certificate lengths and
// the checksum over the result.
func expectedAppend(orig, payload []byte) []byte {
	out := append([]byte{}, orig...)
	marker := make([]byte, 4)
	binary.LittleEndian.PutUint32(marker, uint32(len(orig)))

	peOffset := binary.LittleEndian.Uint32(out[0x3C:0x40])
	opt := peOffset + 24
	if certOffset := binary.LittleEndian.Uint32(out[opt+128 : opt+132]); certOffset != 0 {
		n := binary.LittleEndian.Uint32(out[opt+132:opt+136]) + uint32(len(payload)+4)
		binary.LittleEndian.PutUint32(out[opt+132:opt+136], n)
		binary.LittleEndian.PutUint32(out[certOffset:certOffset+4], n)
	}

	out = append(out, payload...)
	out = append(out, marker...)
	binary.LittleEndian.PutUint32(out[opt+64:opt+68], uint32(referenceChecksum(out)))
	return out
}
