package radixk

import (
	"github.com/mrjoshuak/go-radixcompose/sparseimage"
	"github.com/mrjoshuak/go-radixcompose/state"
)

// partnerInfo is one of the current round's k trading partners: the
// peer's rank, where its piece lands in the final image (once known),
// the byte regions backing its send/receive buffers, the sparse-image
// views over those regions, and its position (compositeLevel) in the
// pairwise composite tree. compositeLevel == -1 means "not yet arrived".
type partnerInfo struct {
	rank           int
	offset         int
	sendBuf        []byte
	recvBuf        []byte
	sendImage      *sparseimage.SparseImage
	receiveImage   *sparseimage.SparseImage
	compositeLevel int

	// buf is the full-capacity buffer currently backing receiveImage,
	// tracked separately from receiveImage's own trimmed view so the
	// composite tree can hand a partner's freed buffer on to the next
	// composite once that partner's piece has been promoted.
	buf []byte

	// sendExpectedPixels is the pixel count of the piece split off for
	// this partner in postSends. An arriving piece is checked against the
	// caller's own entry, since every partner sends a piece covering the
	// caller's partition.
	sendExpectedPixels int
}

// getPartners allocates the send/receive buffer pool for current_round
// and identifies the current_k peers participating in it: the processes
// whose partition index matches the caller's in every earlier round and
// whose round-r index ranges over [0, current_k).
func getPartners(
	ks []int,
	round, partitionIndex, remainingPartitions int,
	composeGroup []int,
	groupRank, startSize int,
	format sparseimage.PixelFormat,
	buffers *state.Buffers,
) []*partnerInfo {
	currentK := ks[round]

	step := 1
	for i := 0; i < round; i++ {
		step *= ks[i]
	}

	partitionNumPixels := sparseimage.SplitPartitionNumPixels(startSize, currentK, remainingPartitions)
	imageSize := sparseimage.BufferSize(format, partitionNumPixels)
	recvPool := buffers.Get(state.BufReceive, imageSize*currentK)
	sendPool := buffers.Get(state.BufSend, imageSize*currentK)

	partners := make([]*partnerInfo, currentK)
	firstPartnerGroupRank := groupRank - partitionIndex*step
	for i := 0; i < currentK; i++ {
		partnerGroupRank := firstPartnerGroupRank + i*step
		partners[i] = &partnerInfo{
			rank:           composeGroup[partnerGroupRank],
			offset:         -1,
			recvBuf:        recvPool[i*imageSize : (i+1)*imageSize],
			sendBuf:        sendPool[i*imageSize : (i+1)*imageSize],
			compositeLevel: -1,
		}
	}
	return partners
}
