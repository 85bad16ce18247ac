package sparseimage

// Interlace permutes sparseIn's pixels into groups interleaved round-robin:
// pixel i moves to group i%groups, at position i/groups within that
// group's contiguous block. Group blocks are laid out in group order, each
// sized floor(N/groups) or one more for the first N%groups groups. Later
// splitting the interlaced image into `groups` even pieces therefore
// recovers the original strided subsamples, which is what keeps
// active-pixel density balanced across partitions that would otherwise be
// contiguous (and so biased toward whatever spatial region of the
// rendered scene they came from).
func Interlace(sparseIn *SparseImage, groups int, dst []byte) (*SparseImage, error) {
	if groups <= 0 {
		return nil, ErrFormatMismatch
	}
	states := decode(sparseIn)
	n := len(states)
	out := make([]pixelState, n)
	for i, st := range states {
		out[interlaceIndex(i, groups, n)] = st
	}
	if dst == nil || len(dst) < BufferSize(sparseIn.format, n) {
		dst = make([]byte, BufferSize(sparseIn.format, n))
	}
	return encode(dst, sparseIn.format, sparseIn.width, sparseIn.height, out), nil
}

// Deinterlace undoes Interlace, given the same groups used to produce
// sparseIn.
func Deinterlace(sparseIn *SparseImage, groups int, dst []byte) (*SparseImage, error) {
	if groups <= 0 {
		return nil, ErrFormatMismatch
	}
	states := decode(sparseIn)
	n := len(states)
	out := make([]pixelState, n)
	for j := range states {
		out[deinterlaceIndex(j, groups, n)] = states[j]
	}
	if dst == nil || len(dst) < BufferSize(sparseIn.format, n) {
		dst = make([]byte, BufferSize(sparseIn.format, n))
	}
	return encode(dst, sparseIn.format, sparseIn.width, sparseIn.height, out), nil
}

// groupSize returns the number of original pixels assigned to group g, out
// of n pixels interlaced into groups groups.
func groupSize(g, groups, n int) int {
	size := n / groups
	if g < n%groups {
		size++
	}
	return size
}

// InterlaceOffset returns the start offset, in interlaced (post-Interlace)
// pixel space, of the contiguous block holding group's pixels. It depends
// only on (group, groups, n), so a caller tracking piece offsets through a
// round of Radix-k splitting can compute it without having the interlaced
// image materialized.
func InterlaceOffset(group, groups, n int) int {
	offset := 0
	for g := 0; g < group; g++ {
		offset += groupSize(g, groups, n)
	}
	return offset
}

// interlaceIndex maps an original pixel index to its interlaced position.
func interlaceIndex(i, groups, n int) int {
	g := i % groups
	p := i / groups
	return InterlaceOffset(g, groups, n) + p
}

// deinterlaceIndex maps an interlaced pixel index back to its original
// position, the inverse of interlaceIndex.
func deinterlaceIndex(j, groups, n int) int {
	g := 0
	start := 0
	for {
		size := groupSize(g, groups, n)
		if j < start+size {
			p := j - start
			return p*groups + g
		}
		start += size
		g++
	}
}
