package peappend

import (
	"fmt"
	"math"
)

// CertificateTable is the attribute certificate table that holds an
// Authenticode signature. Its length is recorded twice: in the optional
// header's data directory and in the first four bytes of the table.
type CertificateTable struct {
	// Offset is the file offset of the table.
	Offset int
	// Length is the declared table length. Both copies agree.
	Length uint32

	lengthField int
}

// locateCertificateTable returns nil, nil when the image carries no
// certificate table.
func locateCertificateTable(buf []byte, loc *HeaderLocation) (*CertificateTable, error) {
	offset, err := readUint32(buf, loc.CertOffsetField)
	if err != nil {
		return nil, err
	}
	if offset == 0 {
		return nil, nil
	}

	dirLength, err := readUint32(buf, loc.CertLengthField)
	if err != nil {
		return nil, err
	}
	tableLength, err := readUint32(buf, int(offset))
	if err != nil {
		return nil, err
	}
	if dirLength != tableLength {
		return nil, fmt.Errorf("%w: directory declares %d bytes, table header %d", ErrCertLengthMismatch, dirLength, tableLength)
	}

	return &CertificateTable{
		Offset:      int(offset),
		Length:      dirLength,
		lengthField: loc.CertLengthField,
	}, nil
}

// canGrow reports whether delta more bytes can be declared without
// overflowing the 32-bit length fields.
func (c *CertificateTable) canGrow(delta int) bool {
	return uint64(c.Length)+uint64(delta) <= math.MaxUint32
}

// grow adds delta to both length fields, keeping them in sync.
func (c *CertificateTable) grow(buf []byte, delta int) error {
	if !c.canGrow(delta) {
		return ErrImageTooLarge
	}
	n := c.Length + uint32(delta)
	if err := writeUint32(buf, c.lengthField, n); err != nil {
		return err
	}
	if err := writeUint32(buf, c.Offset, n); err != nil {
		return err
	}
	c.Length = n
	return nil
}
