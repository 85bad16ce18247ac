package sparseimage

import "github.com/mrjoshuak/go-radixcompose/internal/xdr"

// pixelState is the fully materialized form of one logical pixel, used as
// the common intermediate representation for decode/encode, compress, and
// composite. Inactive pixels always carry the sentinel record (all zero
// except Z, which is InactiveDepth) so that Combine treats them as the
// identity element of the composite operator under either mode.
type pixelState struct {
	active bool
	rec    PixelRecord
}

var inactiveSentinel = PixelRecord{Z: InactiveDepth}

// decode expands s into one pixelState per logical pixel.
func decode(s *SparseImage) []pixelState {
	n := s.NumPixels()
	out := make([]pixelState, 0, n)
	r := xdr.NewReader(s.body())
	for len(out) < n {
		inactiveCount, _ := r.ReadUint32()
		for i := uint32(0); i < inactiveCount; i++ {
			out = append(out, pixelState{active: false, rec: inactiveSentinel})
		}
		activeCount, _ := r.ReadUint32()
		for i := uint32(0); i < activeCount; i++ {
			out = append(out, pixelState{active: true, rec: readPixelRecord(r, s.format)})
		}
	}
	return out
}

func readPixelRecord(r *xdr.Reader, format PixelFormat) PixelRecord {
	var p PixelRecord
	switch format.Color {
	case ColorRGBAUByte:
		rb, _ := r.ReadUint8()
		gb, _ := r.ReadUint8()
		bb, _ := r.ReadUint8()
		ab, _ := r.ReadUint8()
		p.R = float32(rb) / 255
		p.G = float32(gb) / 255
		p.B = float32(bb) / 255
		p.A = float32(ab) / 255
	case ColorRGBAFloat:
		p.R, _ = r.ReadFloat32()
		p.G, _ = r.ReadFloat32()
		p.B, _ = r.ReadFloat32()
		p.A, _ = r.ReadFloat32()
	}
	if format.Depth == DepthFloat {
		p.Z, _ = r.ReadFloat32()
	}
	return p
}

func writePixelRecord(w *xdr.Writer, format PixelFormat, p PixelRecord) {
	switch format.Color {
	case ColorRGBAUByte:
		w.WriteUint8(clampByte(p.R))
		w.WriteUint8(clampByte(p.G))
		w.WriteUint8(clampByte(p.B))
		w.WriteUint8(clampByte(p.A))
	case ColorRGBAFloat:
		w.WriteFloat32(p.R)
		w.WriteFloat32(p.G)
		w.WriteFloat32(p.B)
		w.WriteFloat32(p.A)
	}
	if format.Depth == DepthFloat {
		w.WriteFloat32(p.Z)
	}
}

// encode packs states into dst (which must be at least
// BufferSize(format, len(states)) bytes) and returns the trimmed
// SparseImage view. Runs are collapsed to the minimal representation:
// maximal consecutive inactive/active spans.
func encode(dst []byte, format PixelFormat, width, height int, states []pixelState) *SparseImage {
	n := len(states)
	if len(dst) < BufferSize(format, n) {
		dst = make([]byte, BufferSize(format, n))
	}
	w := xdr.NewWriter(dst)
	writeHeader(w, format, width, height, n, 0) // activeCount patched below
	activeTotal := 0

	i := 0
	for i < n {
		inactiveStart := i
		for i < n && !states[i].active {
			i++
		}
		inactiveCount := i - inactiveStart
		w.WriteUint32(uint32(inactiveCount))

		activeStart := i
		for i < n && states[i].active {
			i++
		}
		activeCount := i - activeStart
		w.WriteUint32(uint32(activeCount))
		for j := activeStart; j < i; j++ {
			writePixelRecord(w, format, states[j].rec)
		}
		activeTotal += activeCount
	}
	if n == 0 {
		// A zero-pixel image still needs one (empty) run pair.
		w.WriteUint32(0)
		w.WriteUint32(0)
	}

	used := dst[:w.Pos()]
	// Patch activeCount now that it's known.
	patch := xdr.NewWriter(used)
	writeHeader(patch, format, width, height, n, activeTotal)

	return &SparseImage{buf: used, format: format, width: width, height: height}
}
