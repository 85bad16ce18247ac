package sparseimage

// Compress emits the run-length form of dense under mode. A pixel is
// inactive if depth-test compositing is in use and depth == InactiveDepth,
// or if blend compositing is in use and alpha == 0; otherwise it is active.
// Active pixel values are preserved bit-exactly.
func Compress(dense *DenseImage, mode CompositeMode) *SparseImage {
	return CompressSub(dense, 0, dense.NumPixels(), mode)
}

// CompressSub compresses the pixel range [offset, offset+n) of dense,
// producing a SparseImage whose own pixel indexing starts at 0 (the caller
// tracks offset separately, as the Radix-k composer does via piece_offset).
func CompressSub(dense *DenseImage, offset, n int, mode CompositeMode) *SparseImage {
	states := make([]pixelState, n)
	for i := 0; i < n; i++ {
		p := dense.Pixel(offset + i)
		if isInactive(p, mode, dense.Format) {
			states[i] = pixelState{active: false, rec: inactiveSentinel}
		} else {
			states[i] = pixelState{active: true, rec: p}
		}
	}
	width := n
	height := 1
	if dense.Width > 0 && n%dense.Width == 0 {
		width, height = dense.Width, n/dense.Width
	}
	dst := make([]byte, BufferSize(dense.Format, n))
	return encode(dst, dense.Format, width, height, states)
}

// Decompress reconstructs a DenseImage from s, the inverse of Compress.
// Inactive pixels are left at their zero-value (InactiveDepth / alpha 0).
func Decompress(s *SparseImage) *DenseImage {
	states := decode(s)
	dense := NewDenseImage(s.width, s.height, s.format)
	if dense.Width*dense.Height != len(states) {
		dense.Width, dense.Height = len(states), 1
	}
	for i, st := range states {
		if st.active {
			dense.SetPixel(i, st.rec)
		}
	}
	return dense
}
