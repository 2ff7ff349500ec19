package peappend

import "fmt"

// HeaderLocation holds the offsets derived from an image's DOS and COFF
// headers. It is recomputed on every append and never cached.
type HeaderLocation struct {
	PEOffset             int
	OptionalHeaderOffset int
	ChecksumOffset       int

	// Certificate table data directory entry.
	CertOffsetField int
	CertLengthField int
}

// LocateHeaders walks the fixed header offsets of a PE32 image.
//
// Checks run in a fixed order: the PE signature, then a non-zero optional
// header size, then the PE32 magic. Truncated images fail with
// ErrOutOfBounds. A PE offset pointing outside the image matches both
// ErrInvalidPEHeader and ErrOutOfBounds.
func LocateHeaders(buf []byte) (*HeaderLocation, error) {
	peOffset, err := readUint32(buf, peOffsetField)
	if err != nil {
		return nil, err
	}
	pe := int(peOffset)

	sig, err := readUint32(buf, pe)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPEHeader, err)
	}
	if sig != peSignature {
		return nil, ErrInvalidPEHeader
	}

	optSize, err := readUint16(buf, pe+sizeOfOptionalHeaderField)
	if err != nil {
		return nil, err
	}
	if optSize == 0 {
		return nil, ErrMissingOptionalHeader
	}

	opt := pe + optionalHeaderStart
	magic, err := readUint16(buf, opt)
	if err != nil {
		return nil, err
	}
	if magic != pe32Magic {
		return nil, ErrUnsupportedPEFormat
	}

	return &HeaderLocation{
		PEOffset:             pe,
		OptionalHeaderOffset: opt,
		ChecksumOffset:       opt + checksumField,
		CertOffsetField:      opt + certTableOffsetField,
		CertLengthField:      opt + certTableLengthField,
	}, nil
}
