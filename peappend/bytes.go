package peappend

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/constraints"
)

var byteOrder = binary.LittleEndian

// OutOfBoundsError is returned when a read or write would run past the end
// of an image. It matches ErrOutOfBounds with errors.Is.
type OutOfBoundsError struct {
	Offset int
	Width  int
	Len    int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("peappend: %d byte access at offset %d exceeds image length %d", e.Width, e.Offset, e.Len)
}

func (e *OutOfBoundsError) Is(target error) bool {
	return target == ErrOutOfBounds
}

func checkBounds(buf []byte, off, width int) error {
	if off < 0 || width < 0 || off > len(buf)-width {
		return &OutOfBoundsError{Offset: off, Width: width, Len: len(buf)}
	}
	return nil
}

// readLE reads a little-endian unsigned integer of T's width at off. T is
// at most 32 bits wide.
func readLE[T constraints.Unsigned](buf []byte, off int) (T, error) {
	var v T
	width := binary.Size(v)
	if err := checkBounds(buf, off, width); err != nil {
		return 0, err
	}
	var acc uint32
	for i := width - 1; i >= 0; i-- {
		acc = acc<<8 | uint32(buf[off+i])
	}
	return T(acc), nil
}

func readUint8(buf []byte, off int) (uint8, error) {
	return readLE[uint8](buf, off)
}

func readUint16(buf []byte, off int) (uint16, error) {
	return readLE[uint16](buf, off)
}

func readUint32(buf []byte, off int) (uint32, error) {
	return readLE[uint32](buf, off)
}

// writeUint32 overwrites four bytes at off. buf is never resized.
func writeUint32(buf []byte, off int, v uint32) error {
	if err := checkBounds(buf, off, 4); err != nil {
		return err
	}
	byteOrder.PutUint32(buf[off:off+4], v)
	return nil
}
