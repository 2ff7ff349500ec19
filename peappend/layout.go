package peappend

// DOS header
const (
	// peOffsetField holds the file offset of the PE signature (e_lfanew).
	peOffsetField = 0x3c
)

// PE signature and COFF file header, relative to the PE signature.
const (
	peSignature               = 0x00004550 // "PE\0\0"
	sizeOfOptionalHeaderField = 20
	optionalHeaderStart       = 24
)

// COFF optional header, relative to its start.
const (
	pe32Magic     = 0x10b
	checksumField = 64
)

// Certificate table data directory entry, relative to the optional header.
const (
	certTableOffsetField = 128
	certTableLengthField = 132
)

// markerSize is the width of the trailer marker written after every payload.
const markerSize = 4
