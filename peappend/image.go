package peappend

import (
	"errors"
	"fmt"
	"math"
	"os"
)

var (
	ErrInvalidPEHeader       = errors.New("peappend: no valid PE header found")
	ErrMissingOptionalHeader = errors.New("peappend: no optional COFF header found")
	ErrUnsupportedPEFormat   = errors.New("peappend: PE format is not PE32")
	ErrCertLengthMismatch    = errors.New("peappend: certificate length does not match COFF header")
	ErrOutOfBounds           = errors.New("peappend: offset out of bounds")
	ErrImageTooLarge         = errors.New("peappend: image would exceed 4GiB")
	ErrNoTrailer             = errors.New("peappend: no appended payload found")
	ErrNoDestination         = errors.New("peappend: no destination to write to")
)

// Image is a PE32 executable held in memory while payloads are appended to
// it. Appending keeps an embedded Authenticode signature valid: the payload
// lands at the end of the certificate table, whose declared length is grown
// to cover it, and the image checksum is recomputed.
//
// An Image is not safe for concurrent use.
type Image struct {
	name string
	data []byte
}

// New returns an Image holding a copy of data.
func New(data []byte) *Image {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Image{data: buf}
}

// OpenFile reads the named executable into memory. Write with an empty
// destination overwrites it.
func OpenFile(name string) (*Image, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("peappend: %w", err)
	}
	return &Image{name: name, data: data}, nil
}

// Name returns the path the image was opened from, if any.
func (img *Image) Name() string {
	return img.name
}

// Bytes returns the current image contents. The slice aliases the image and
// is invalidated by the next Append.
func (img *Image) Bytes() []byte {
	return img.data
}

// Len returns the current image length in bytes.
func (img *Image) Len() int {
	return len(img.data)
}

// Headers validates the image and returns its header offsets.
func (img *Image) Headers() (*HeaderLocation, error) {
	return LocateHeaders(img.data)
}

// CertificateTable returns the image's certificate table, or nil if it is
// unsigned.
func (img *Image) CertificateTable() (*CertificateTable, error) {
	loc, err := LocateHeaders(img.data)
	if err != nil {
		return nil, err
	}
	return locateCertificateTable(img.data, loc)
}

// StoredChecksum returns the value currently in the optional header's
// checksum field.
func (img *Image) StoredChecksum() (uint32, error) {
	loc, err := LocateHeaders(img.data)
	if err != nil {
		return 0, err
	}
	return readUint32(img.data, loc.ChecksumOffset)
}

// Append adds payload to the end of the image followed by a four byte
// little-endian marker holding the image length before the append, so the
// most recent payload can be found from the last four bytes of the file.
//
// Structure is revalidated on every call. Every failure is detected before
// the image is touched, so a failed Append leaves it unchanged.
func (img *Image) Append(payload []byte) error {
	size := len(img.data)
	delta := len(payload) + markerSize
	if uint64(size)+uint64(delta) > math.MaxUint32 {
		return ErrImageTooLarge
	}

	loc, err := LocateHeaders(img.data)
	if err != nil {
		return err
	}
	cert, err := locateCertificateTable(img.data, loc)
	if err != nil {
		return err
	}
	if cert != nil && !cert.canGrow(delta) {
		return ErrImageTooLarge
	}
	if err := checkBounds(img.data, loc.ChecksumOffset, 4); err != nil {
		return err
	}

	trailer := make([]byte, delta)
	copy(trailer, payload)
	byteOrder.PutUint32(trailer[len(payload):], uint32(size))

	if cert != nil {
		if err := cert.grow(img.data, delta); err != nil {
			return err
		}
	}

	img.data = append(img.data, trailer...)
	return writeUint32(img.data, loc.ChecksumOffset, Checksum(img.data))
}

// Write persists the image verbatim to dest. An empty dest overwrites the
// file the image was opened from.
func (img *Image) Write(dest string) error {
	if dest == "" {
		dest = img.name
	}
	if dest == "" {
		return ErrNoDestination
	}
	if err := os.WriteFile(dest, img.data, 0o644); err != nil {
		return fmt.Errorf("peappend: %w", err)
	}
	return nil
}
