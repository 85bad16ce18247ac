package radixk

import (
	"github.com/mrjoshuak/go-radixcompose/sparseimage"
	"github.com/mrjoshuak/go-radixcompose/transport"
)

// swapImageTagBase is added to the current round index to form the
// message tag for that round's swap, so a late arrival from an earlier
// round can never be mistaken for a current-round message.
const swapImageTagBase = 2200

// postReceives posts a non-blocking receive for every partner but the
// caller's own slot (which needs no network trip); the caller's own
// piece is instead aliased in during postSends.
func postReceives(partners []*partnerInfo, round, currentPartitionIndex int, t transport.Transport) ([]transport.Request, error) {
	tag := swapImageTagBase + round
	reqs := make([]transport.Request, len(partners))
	for i, p := range partners {
		if i == currentPartitionIndex {
			reqs[i] = nil
			p.compositeLevel = 0
			continue
		}
		req, err := t.Irecv(p.recvBuf, p.rank, tag)
		if err != nil {
			return nil, err
		}
		reqs[i] = req
		p.compositeLevel = -1
	}
	return reqs, nil
}

// postSends splits image into len(partners) pieces and sends each to its
// partner, following a pivot sequence around the caller's own index so
// that partners receive first whatever piece lets them start their own
// composite tree soonest. The caller's own piece is aliased directly
// into its receiveImage slot rather than sent anywhere.
func postSends(
	partners []*partnerInfo,
	round, currentPartitionIndex, remainingPartitions, startOffset int,
	image *sparseimage.SparseImage,
	t transport.Transport,
) ([]transport.Request, error) {
	currentK := len(partners)
	pieces := make([][]byte, currentK)
	offsets := make([]int, currentK)
	for i, p := range partners {
		pieces[i] = p.sendBuf
	}

	results, err := sparseimage.Split(image, startOffset, currentK, remainingPartitions, pieces, offsets)
	if err != nil {
		return nil, err
	}

	tag := swapImageTagBase + round
	reqs := make([]transport.Request, currentK)
	for _, i := range pivotSeq(0, currentPartitionIndex, currentK) {
		p := partners[i]
		p.offset = offsets[i]
		p.sendImage = results[i]
		p.sendExpectedPixels = results[i].NumPixels()

		if i == currentPartitionIndex {
			p.receiveImage = p.sendImage
			p.buf = p.sendBuf
			continue
		}
		req, err := t.Isend(p.sendImage.PackageForSend(), p.rank, tag)
		if err != nil {
			return nil, err
		}
		reqs[i] = req
	}
	return reqs, nil
}
