package sparseimage

// Composite combines a and b under mode, writing the result into dst.
// a and b must cover the same pixel range (equal NumPixels); dst must not
// alias either input's backing buffer.
//
// For every pixel i, the result is C(a[i], b[i]): a pixel inactive in
// both a and b is inactive in the result, and otherwise active with the
// operator applied (an inactive operand behaves as the identity element
// of C, so no special-casing is needed beyond Combine).
func Composite(a, b *SparseImage, dst []byte, mode CompositeMode) (*SparseImage, error) {
	if a.NumPixels() != b.NumPixels() {
		return nil, ErrFormatMismatch
	}
	as := decode(a)
	bs := decode(b)
	format := a.format
	out := make([]pixelState, len(as))
	for i := range as {
		rec := Combine(mode, as[i].rec, bs[i].rec)
		out[i] = pixelState{active: !isInactive(rec, mode, format), rec: rec}
	}
	width, height := a.width, a.height
	if dst == nil {
		dst = make([]byte, BufferSize(format, len(out)))
	}
	return encode(dst, format, width, height, out), nil
}

// CompositeSub composites a sparse image into a subrange of a dense image.
// orientation selects whether the sparse image is treated as being on top
// of the existing dense contents (SourceOnTop) or beneath them
// (DestOnTop). This is the older, non-tree composite path, kept for
// interface completeness; radixk.Compose uses the pairwise tree instead.
type Orientation uint8

const (
	SourceOnTop Orientation = 0
	DestOnTop   Orientation = 1
)

// CompositeSub composites sparseIn into dense's pixel range
// [offset, offset+sparseIn.NumPixels()), under mode and orientation.
func CompositeSub(dense *DenseImage, offset int, sparseIn *SparseImage, mode CompositeMode, orientation Orientation) *DenseImage {
	states := decode(sparseIn)
	for i, st := range states {
		if !st.active {
			continue
		}
		existing := dense.Pixel(offset + i)
		var combined PixelRecord
		if orientation == SourceOnTop {
			combined = Combine(mode, st.rec, existing)
		} else {
			combined = Combine(mode, existing, st.rec)
		}
		dense.SetPixel(offset+i, combined)
	}
	return dense
}
