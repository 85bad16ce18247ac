// Package radixk implements the Radix-k swap-composite algorithm: given a
// group of participating process ranks each holding a sparse image
// covering the same pixel range, it produces, on every process, a
// disjoint evenly-sized partition of the pixel-wise composite of all of
// their inputs. It drives a transport.Transport directly; the codec it
// calls into (sparseimage) never touches the network itself.
package radixk

import (
	"github.com/mrjoshuak/go-radixcompose/diag"
	"github.com/mrjoshuak/go-radixcompose/sparseimage"
	"github.com/mrjoshuak/go-radixcompose/state"
	"github.com/mrjoshuak/go-radixcompose/transport"
)

// findRankInGroup returns the index of rank within group, or -1.
func findRankInGroup(group []int, rank int) int {
	for i, r := range group {
		if r == rank {
			return i
		}
	}
	return -1
}

// partitionIndices returns, for each round, the caller's index within
// that round's group of partners: my position forms a num_rounds-
// dimensional mixed-radix vector over the k_array.
func partitionIndices(ks []int, groupRank int) []int {
	indices := make([]int, len(ks))
	step := 1
	for i, k := range ks {
		indices[i] = (groupRank / step) % k
		step *= k
	}
	return indices
}

// Compose runs the Radix-k algorithm for the caller's process. group is
// the ordered list of participating ranks (the caller's own rank, read
// from sess.Rank(), must appear in it); input is this process's sparse
// image, covering the pixel range all of group's images cover.
// imageDest is advisory only — Radix-k always leaves the result evenly
// partitioned across group, regardless of which rank was nominally asked
// for the whole image.
//
// Compose returns the caller's partition of the full composite and that
// partition's offset in the final image's pixel space.
func Compose(
	group []int,
	imageDest int,
	input *sparseimage.SparseImage,
	sess *state.Session,
	buffers *state.Buffers,
	t transport.Transport,
	sink diag.Sink,
) (*sparseimage.SparseImage, int, error) {
	_ = imageDest // Radix-k leaves the image evenly partitioned; the nominal destination is unused.

	groupRank := findRankInGroup(group, sess.Rank())
	if groupRank < 0 {
		sink.RaiseError(diag.ErrTopology, "local process not in compose group")
		return nil, 0, ErrNotInGroup
	}

	if len(group) == 1 {
		return input, 0, nil
	}

	ks, err := factorK(len(group), sess.MagicK())
	if err != nil {
		sink.RaiseError(diag.ErrSanityCheck, "radix-k factorization failed")
		return nil, 0, err
	}
	if len(ks) == 0 {
		sink.RaiseError(diag.ErrSanityCheck, "radix-k has no rounds")
		return nil, 0, ErrSanityCheck
	}

	format := sess.Format()
	mode := sess.CompositeMode()

	useInterlace := len(ks) > 1 && sess.InterlaceImages()
	workingImage := input
	if useInterlace {
		interlaceBuf := buffers.Get(state.BufInterlaced, sparseimage.BufferSize(format, input.NumPixels()))
		interlaced, err := sparseimage.Interlace(input, len(group), interlaceBuf)
		if err != nil {
			sink.RaiseError(diag.ErrSanityCheck, "interlace failed")
			return nil, 0, err
		}
		workingImage = interlaced
	}

	indices := partitionIndices(ks, groupRank)

	myOffset := 0
	remainingPartitions := len(group)

	for round, currentK := range ks {
		mySize := workingImage.NumPixels()
		partitionIndex := indices[round]

		partners := getPartners(ks, round, partitionIndex, remainingPartitions, group, groupRank, mySize, format, buffers)

		receiveRequests, err := postReceives(partners, round, partitionIndex, t)
		if err != nil {
			sink.RaiseError(diag.ErrTransportFailure, "posting receives failed")
			return nil, 0, err
		}

		sendRequests, err := postSends(partners, round, partitionIndex, remainingPartitions, myOffset, workingImage, t)
		if err != nil {
			sink.RaiseError(diag.ErrTransportFailure, "posting sends failed")
			return nil, 0, err
		}

		partitionNumPixels := sparseimage.SplitPartitionNumPixels(mySize, currentK, remainingPartitions)
		imageSize := sparseimage.BufferSize(format, partitionNumPixels)
		rs := &roundState{
			partners: partners,
			format:   format,
			mode:     mode,
			spareBuf: buffers.Get(state.BufSpare, imageSize),
			finalBuf: buffers.Get(state.BufWorking, imageSize),
		}

		if err := compositeIncomingImages(rs, t, receiveRequests, partitionIndex); err != nil {
			sink.RaiseError(diag.ErrSanityCheck, "composite tree failed")
			return nil, 0, err
		}

		if err := t.WaitAll(sendRequests); err != nil {
			sink.RaiseError(diag.ErrTransportFailure, "waiting for sends failed")
			return nil, 0, err
		}

		workingImage = partners[0].receiveImage
		myOffset = partners[partitionIndex].offset
		remainingPartitions /= currentK
	}

	if useInterlace {
		// indices is groupRank's mixed-radix decomposition over ks, so
		// groupRank itself is already the reconstructed global partition
		// number: the position this process's piece occupies among the
		// groups Interlace produced.
		myOffset = sparseimage.InterlaceOffset(groupRank, len(group), input.NumPixels())
	}

	return workingImage, myOffset, nil
}
