// Package compression provides generic byte-level compression algorithms
// used as optional second passes over already-encoded wire formats.
package compression

import (
	"errors"
)

// RLE compression errors
var (
	ErrRLECorrupted = errors.New("compression: corrupted RLE data")
	ErrRLEOverflow  = errors.New("compression: RLE decompressed size overflow")
)

// RLE constants
const (
	// rleMinRunLength is the minimum run length that triggers encoding
	// as a run rather than as literals.
	rleMinRunLength = 3
	// rleMaxRunLength is the maximum run length a single run byte can
	// encode, and also the maximum length of one literal span.
	rleMaxRunLength = 127
)

// RLECompress applies a byte-run RLE pass, the cheapest of the two
// WireEnvelope backends. It is most effective on a SparseImage's own
// run-length-encoded bytes when many partners in a composite share long
// stretches of identical background depth or color, which show up here
// as runs of identical encoded bytes even after the pixel-level codec
// has already done its own run-length pass.
//
// The encoding uses signed bytes to indicate run types:
//   - Negative count (-n): the next byte is repeated (n+1) times (a run)
//   - Positive count (+n): the next (n+1) bytes are copied literally
//
// For example:
//
//	[A, A, A, A, B, C, D] -> [-3, A, 2, B, C, D]
//	(4 copies of A, then 3 literal bytes B, C, D)
func RLECompress(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}

	// Initial capacity only: a run costs 2 bytes and a literal span its
	// bytes plus one count byte; append grows dst if needed.
	dst := make([]byte, 0, len(src)+len(src)/2)

	pos := 0
	for pos < len(src) {
		runEnd := pos + 1
		val := src[pos]
		for runEnd < len(src) && src[runEnd] == val && runEnd-pos < rleMaxRunLength {
			runEnd++
		}
		if runEnd-pos >= rleMinRunLength {
			dst = append(dst, byte(-(runEnd-pos-1)), val)
			pos = runEnd
			continue
		}

		literalStart := pos
		for pos < len(src) && pos-literalStart < rleMaxRunLength {
			if pos+rleMinRunLength <= len(src) {
				v := src[pos]
				if src[pos+1] == v && src[pos+2] == v {
					break
				}
			}
			pos++
		}
		if literalLength := pos - literalStart; literalLength > 0 {
			dst = append(dst, byte(literalLength-1))
			dst = append(dst, src[literalStart:pos]...)
		}
	}

	return dst
}

// RLEDecompress reverses RLECompress. expectedSize is the decompressed
// size the caller already knows (from the SparseImage envelope header),
// used to preallocate the output buffer and validate the result without
// an extra growing pass.
func RLEDecompress(src []byte, expectedSize int) ([]byte, error) {
	if len(src) == 0 {
		if expectedSize != 0 {
			return nil, ErrRLECorrupted
		}
		return nil, nil
	}
	dst := make([]byte, expectedSize)
	if err := RLEDecompressTo(src, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// RLEDecompressTo decompresses src into a pre-allocated dst, letting a
// caller that already sized its receive buffer to the envelope's
// declared raw length (the common case in UnpackageEnvelope) avoid the
// extra allocation RLEDecompress would otherwise make.
func RLEDecompressTo(src []byte, dst []byte) error {
	if len(src) == 0 {
		if len(dst) != 0 {
			return ErrRLECorrupted
		}
		return nil
	}

	expectedSize := len(dst)
	dstPos := 0
	pos := 0
	for pos < len(src) {
		count := int(int8(src[pos]))
		pos++

		if count < 0 {
			runLength := -count + 1
			if pos >= len(src) {
				return ErrRLECorrupted
			}
			if dstPos+runLength > expectedSize {
				return ErrRLEOverflow
			}
			val := src[pos]
			pos++
			for end := dstPos + runLength; dstPos < end; dstPos++ {
				dst[dstPos] = val
			}
			continue
		}

		literalLength := count + 1
		if pos+literalLength > len(src) {
			return ErrRLECorrupted
		}
		if dstPos+literalLength > expectedSize {
			return ErrRLEOverflow
		}
		copy(dst[dstPos:], src[pos:pos+literalLength])
		dstPos += literalLength
		pos += literalLength
	}

	if dstPos != expectedSize {
		return ErrRLECorrupted
	}
	return nil
}
