// Package compression provides generic byte-level compression algorithms
// used as optional second passes over already-encoded wire formats.
package compression

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/zlib"
)

// ZIP compression errors
var (
	ErrZIPCorrupted = errors.New("compression: corrupted ZIP data")
	ErrZIPOverflow  = errors.New("compression: ZIP decompressed size overflow")
)

// CompressionLevel represents a zlib compression level.
// Valid values are -2 to 9, where:
//   - -2: Huffman-only compression (klauspost extension)
//   - -1: Default compression (level 6)
//   - 0: No compression (store)
//   - 1: Best speed
//   - 9: Best compression
type CompressionLevel int

// Standard compression levels
const (
	CompressionLevelHuffmanOnly CompressionLevel = -2 // Huffman-only (fastest, klauspost)
	CompressionLevelDefault     CompressionLevel = -1 // Default (level 6)
	CompressionLevelNone        CompressionLevel = 0  // No compression
	CompressionLevelBestSpeed   CompressionLevel = 1  // Best speed
	CompressionLevelBestSize    CompressionLevel = 9  // Best compression
)

// ZIPCompress compresses data using zlib/deflate at the default level.
func ZIPCompress(src []byte) ([]byte, error) {
	return ZIPCompressLevel(src, CompressionLevelDefault)
}

// ZIPCompressLevel compresses data using the specified compression level.
// PackageEnvelopeLevel calls this for every WireEnvelopeZlib envelope,
// with the session's configured level, trading composite-rank CPU for
// wire size on bandwidth-constrained links. Level should be -2 to 9:
//   - -2: Huffman-only (fastest, klauspost extension)
//   - -1: Default compression (level 6)
//   - 0: No compression
//   - 1-9: Increasing compression (1=fastest, 9=best)
//
// There is one envelope per tile transfer, not a per-channel chunk loop
// over an open file, so a fresh writer per call costs nothing worth
// pooling against.
func ZIPCompressLevel(src []byte, level CompressionLevel) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}

	buf := new(bytes.Buffer)
	w, err := zlib.NewWriterLevel(buf, int(level))
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(src); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ZIPDecompress decompresses ZIP-encoded data. It works regardless of
// which CompressionLevel the sender used to produce src: zlib's framing
// carries no level byte a decoder needs to match, only compressed
// blocks a zlib.Reader can drain uniformly.
// The expectedSize parameter is the expected decompressed size.
func ZIPDecompress(src []byte, expectedSize int) ([]byte, error) {
	if len(src) == 0 {
		if expectedSize != 0 {
			return nil, ErrZIPCorrupted
		}
		return nil, nil
	}
	dst := make([]byte, expectedSize)
	if err := ZIPDecompressTo(dst, src); err != nil {
		return nil, err
	}
	return dst, nil
}

// ZIPDecompressTo decompresses ZIP-encoded data into the provided buffer.
// The dst buffer must be exactly the right size for the decompressed data.
// One envelope is unpackaged per received tile contribution, so a plain
// zlib.NewReader per call is used rather than a pooled, resettable one:
// there is no tight per-chunk decode loop here for a pool to pay for
// itself against.
func ZIPDecompressTo(dst, src []byte) error {
	if len(src) == 0 {
		if len(dst) != 0 {
			return ErrZIPCorrupted
		}
		return nil
	}

	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return ErrZIPCorrupted
	}
	defer r.Close()

	n, err := io.ReadFull(r, dst)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return ErrZIPCorrupted
	}
	if n != len(dst) {
		return ErrZIPCorrupted
	}

	return nil
}
