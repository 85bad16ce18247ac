package sparseimage

import (
	"github.com/mrjoshuak/go-radixcompose/compression"
	"github.com/mrjoshuak/go-radixcompose/internal/xdr"
)

// WireEnvelope selects an optional lossless second pass applied to a
// SparseImage's already run-length-encoded bytes before handing them to a
// transport. It never touches pixel values, so it composes freely with
// every invariant in this package; it exists purely to shrink what goes on
// the wire when the run-length encoding itself still has redundancy (runs
// of identical depth values, repeated color, etc).
type WireEnvelope uint8

const (
	// WireEnvelopeNone sends PackageForSend's bytes uncompressed behind
	// the envelope header.
	WireEnvelopeNone WireEnvelope = 0
	// WireEnvelopeRLE applies a byte-level RLE pass on top of the
	// sparse-image's own pixel-run encoding.
	WireEnvelopeRLE WireEnvelope = 1
	// WireEnvelopeZlib applies zlib/deflate.
	WireEnvelopeZlib WireEnvelope = 2
)

// envelopeMagic flags which envelope a wrapped buffer used, so
// UnpackageEnvelope doesn't need the sender's choice communicated
// out-of-band.
const envelopeMagic = 0x45564C50 // "EVLP"

// PackageEnvelope wraps s's wire bytes in the envelope selected by kind,
// using zlib's default compression level when kind is WireEnvelopeZlib.
// The returned buffer is self-describing: UnpackageEnvelope recovers kind
// and the original length without any side channel.
func PackageEnvelope(s *SparseImage, kind WireEnvelope) ([]byte, error) {
	return PackageEnvelopeLevel(s, kind, compression.CompressionLevelDefault)
}

// PackageEnvelopeLevel is PackageEnvelope with an explicit zlib
// compression level, letting a session trade CPU for wire size on
// links where bandwidth is scarcer than the compositing ranks'
// spare cycles. level is ignored for WireEnvelopeNone and
// WireEnvelopeRLE, which have no level concept of their own.
func PackageEnvelopeLevel(s *SparseImage, kind WireEnvelope, level compression.CompressionLevel) ([]byte, error) {
	raw := s.PackageForSend()
	if kind == WireEnvelopeNone {
		return wrapEnvelope(kind, len(raw), raw), nil
	}

	var body []byte
	switch kind {
	case WireEnvelopeRLE:
		body = compression.RLECompress(raw)
	case WireEnvelopeZlib:
		z, err := compression.ZIPCompressLevel(raw, level)
		if err != nil {
			return nil, err
		}
		body = z
	default:
		return nil, ErrFormatMismatch
	}
	return wrapEnvelope(kind, len(raw), body), nil
}

// UnpackageEnvelope reverses PackageEnvelope and then UnpackageFromReceive,
// returning the reconstructed SparseImage.
func UnpackageEnvelope(buf []byte) (*SparseImage, error) {
	kind, rawLen, body, err := unwrapEnvelope(buf)
	if err != nil {
		return nil, err
	}

	var raw []byte
	switch kind {
	case WireEnvelopeNone:
		raw = body
	case WireEnvelopeRLE:
		raw, err = compression.RLEDecompress(body, rawLen)
	case WireEnvelopeZlib:
		raw, err = compression.ZIPDecompress(body, rawLen)
	default:
		return nil, ErrCorrupt
	}
	if err != nil {
		return nil, err
	}
	return UnpackageFromReceive(raw)
}

// envelopeHeaderSize carries bodyLen explicitly (rather than trusting
// len(buf)) so a receiver whose buffer was allocated larger than the
// actual message — the normal case, since receive buffers are sized to
// a format's upper bound before the real message arrives — doesn't feed
// trailing padding into RLEDecompress/ZIPDecompress as if it were
// compressed data.
const envelopeHeaderSize = 4 + 1 + 4 + 4

func wrapEnvelope(kind WireEnvelope, rawLen int, body []byte) []byte {
	out := make([]byte, envelopeHeaderSize+len(body))
	w := xdr.NewWriter(out)
	w.WriteUint32(envelopeMagic)
	w.WriteUint8(uint8(kind))
	w.WriteUint32(uint32(rawLen))
	w.WriteUint32(uint32(len(body)))
	copy(out[envelopeHeaderSize:], body)
	return out
}

func unwrapEnvelope(buf []byte) (kind WireEnvelope, rawLen int, body []byte, err error) {
	if len(buf) < envelopeHeaderSize {
		return 0, 0, nil, ErrCorrupt
	}
	r := xdr.NewReader(buf)
	magic, _ := r.ReadUint32()
	if magic != envelopeMagic {
		return 0, 0, nil, ErrCorrupt
	}
	k, _ := r.ReadUint8()
	n, _ := r.ReadUint32()
	bodyLen, _ := r.ReadUint32()
	if envelopeHeaderSize+int(bodyLen) > len(buf) {
		return 0, 0, nil, ErrCorrupt
	}
	return WireEnvelope(k), int(n), buf[envelopeHeaderSize : envelopeHeaderSize+int(bodyLen)], nil
}
