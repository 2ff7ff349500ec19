package handlers

import "encoding/binary"

// testExe returns a minimal signed PE32 image: PE header at 0x80 and a
// certificate table filling the last 0x80 bytes.
func testExe() []byte {
	const (
		peOffset   = 0x80
		opt        = peOffset + 24
		certOffset = 0x180
		total      = 0x200
	)
	b := make([]byte, total)
	copy(b, "MZ")
	binary.LittleEndian.PutUint32(b[0x3C:], peOffset)
	binary.LittleEndian.PutUint32(b[peOffset:], 0x00004550)
	binary.LittleEndian.PutUint16(b[peOffset+20:], 224)
	binary.LittleEndian.PutUint16(b[opt:], 0x10b)
	binary.LittleEndian.PutUint32(b[opt+128:], certOffset)
	binary.LittleEndian.PutUint32(b[opt+132:], total-certOffset)
	binary.LittleEndian.PutUint32(b[certOffset:], total-certOffset)
	return b
}
