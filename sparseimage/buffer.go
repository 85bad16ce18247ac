package sparseimage

import (
	"errors"

	"github.com/mrjoshuak/go-radixcompose/internal/xdr"
)

// ErrFormatMismatch is raised when a decoded or composited image disagrees
// with the caller's expected pixel count, width, or height.
var ErrFormatMismatch = errors.New("sparseimage: format mismatch")

// ErrCorrupt is raised when a wire buffer fails its header sanity check.
var ErrCorrupt = errors.New("sparseimage: corrupt buffer")

const (
	headerMagic = 0x53504958 // "SPIX"
	headerSize  = 4 + 1 + 1 + 2 + 4 + 4 + 4 + 4
	runPairSize = 4 + 4 // inactive count + active count, both uint32
)

// SparseImage is a run-length encoded partial image. It is a non-owning
// view over a byte buffer: Bytes() always starts at the header.
//
// Encoding: header, then a sequence of (inactiveCount, activeCount, that
// many pixel records) triples. Either count may be zero. The sum of every
// inactiveCount and activeCount equals NumPixels.
type SparseImage struct {
	buf    []byte
	format PixelFormat
	width  int
	height int
}

// NewSparseImage wraps buf as a SparseImage view, writing a fresh empty
// (all-inactive) header. buf must be at least BufferSize(format, width*height)
// bytes; NewSparseImage truncates it to the size actually used.
func NewSparseImage(buf []byte, format PixelFormat, width, height int) *SparseImage {
	n := width * height
	need := headerSize + runPairSize
	if len(buf) < need {
		buf = make([]byte, need)
	}
	w := xdr.NewWriter(buf)
	writeHeader(w, format, width, height, n, 0)
	w.WriteUint32(uint32(n)) // one inactive run covering everything
	w.WriteUint32(0)         // zero active pixels
	s := &SparseImage{buf: buf[:w.Pos()], format: format, width: width, height: height}
	return s
}

func writeHeader(w *xdr.Writer, format PixelFormat, width, height, n, active int) {
	w.WriteUint32(headerMagic)
	w.WriteUint8(uint8(format.Color))
	w.WriteUint8(uint8(format.Depth))
	w.WriteUint16(0)
	w.WriteUint32(uint32(n))
	w.WriteUint32(uint32(active))
	w.WriteUint32(uint32(width))
	w.WriteUint32(uint32(height))
}

// Format returns the fixed color/depth layout of s.
func (s *SparseImage) Format() PixelFormat { return s.format }

// Width returns the declared width metadata (informational only).
func (s *SparseImage) Width() int { return s.width }

// Height returns the declared height metadata (informational only).
func (s *SparseImage) Height() int { return s.height }

// NumPixels returns the total pixel count N covered by s (active+inactive).
func (s *SparseImage) NumPixels() int {
	r := xdr.NewReader(s.buf)
	r.Skip(4 + 1 + 1 + 2)
	n, _ := r.ReadUint32()
	return int(n)
}

// NumActive returns the number of active pixels encoded in s.
func (s *SparseImage) NumActive() int {
	r := xdr.NewReader(s.buf)
	r.Skip(4 + 1 + 1 + 2 + 4)
	a, _ := r.ReadUint32()
	return int(a)
}

// Bytes returns the backing buffer, sized to exactly the bytes in use.
// This is what PackageForSend hands to the transport.
func (s *SparseImage) Bytes() []byte { return s.buf }

// body returns the byte slice following the fixed header.
func (s *SparseImage) body() []byte { return s.buf[headerSize:] }

// PackageForSend returns the byte-exact wire representation of s. The
// returned slice aliases s's backing buffer; callers must not mutate s
// until the send completes.
func (s *SparseImage) PackageForSend() []byte { return s.Bytes() }

// UnpackageFromReceive reconstructs a SparseImage view over a received
// byte buffer, entirely from the buffer's self-describing header.
func UnpackageFromReceive(buf []byte) (*SparseImage, error) {
	if len(buf) < headerSize {
		return nil, ErrCorrupt
	}
	r := xdr.NewReader(buf)
	magic, _ := r.ReadUint32()
	if magic != headerMagic {
		return nil, ErrCorrupt
	}
	colorFmt, _ := r.ReadUint8()
	depthFmt, _ := r.ReadUint8()
	r.Skip(2)
	_, _ = r.ReadUint32() // pixelCount, re-derived by callers via NumPixels
	_, _ = r.ReadUint32() // activeCount
	width, _ := r.ReadUint32()
	height, _ := r.ReadUint32()
	return &SparseImage{
		buf:    buf,
		format: PixelFormat{Color: ColorFormat(colorFmt), Depth: DepthFormat(depthFmt)},
		width:  int(width),
		height: int(height),
	}, nil
}

// BufferSize returns a safe upper bound, in bytes, for a SparseImage of n
// pixels under format, covering the worst case where every pixel forms its
// own one-pixel active run (the actual worst-case encoding, alternating
// inactive/active runs of length 1, never exceeds this bound since it has
// half as many run headers).
func BufferSize(format PixelFormat, n int) int {
	if n <= 0 {
		return headerSize + runPairSize
	}
	return headerSize + n*(runPairSize+format.PixelSize())
}

// maxPixelSize is the largest PixelFormat.PixelSize() across every
// recognized combination (RGBA_FLOAT + FLOAT depth).
const maxPixelSize = 16 + 4

// MaxBufferSize returns the format-independent upper bound for a
// SparseImage of n pixels, usable before the eventual pixel format of a
// remote peer's piece is known (e.g. to size a receive buffer generically).
func MaxBufferSize(n int) int {
	if n <= 0 {
		return headerSize + runPairSize
	}
	return headerSize + n*(runPairSize+maxPixelSize)
}
