package peappend

import "fmt"

// LastPayload returns the most recently appended payload of buf, located
// through the marker in the last four bytes.
func LastPayload(buf []byte) ([]byte, error) {
	if len(buf) < markerSize {
		return nil, ErrNoTrailer
	}
	end := len(buf) - markerSize
	start := int(byteOrder.Uint32(buf[end:]))
	if start < 0 || start > end {
		return nil, fmt.Errorf("%w: marker %d points past %d", ErrNoTrailer, start, end)
	}
	return buf[start:end], nil
}

// Payloads returns every payload appended to buf since it was base bytes
// long, oldest first. A marker is indistinguishable from data, so the
// caller has to know where the original image ended.
func Payloads(buf []byte, base int) ([][]byte, error) {
	if base < 0 || base > len(buf) {
		return nil, fmt.Errorf("%w: base %d outside image of %d bytes", ErrNoTrailer, base, len(buf))
	}

	var payloads [][]byte
	for end := len(buf); end > base; {
		payload, err := LastPayload(buf[:end])
		if err != nil {
			return nil, err
		}
		start := end - markerSize - len(payload)
		if start < base {
			return nil, fmt.Errorf("%w: marker %d precedes base %d", ErrNoTrailer, start, base)
		}
		payloads = append(payloads, payload)
		end = start
	}

	for i, j := 0, len(payloads)-1; i < j; i, j = i+1, j-1 {
		payloads[i], payloads[j] = payloads[j], payloads[i]
	}
	return payloads, nil
}
