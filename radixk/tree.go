package radixk

import (
	"github.com/mrjoshuak/go-radixcompose/sparseimage"
	"github.com/mrjoshuak/go-radixcompose/transport"
)

// roundState carries the buffers that ping-pong through one round's
// pairwise composite tree: spareBuf is the one extra buffer that
// circulates as each composite's destination, finalBuf is where the
// round's last composite (the one producing the caller's own piece)
// lands.
type roundState struct {
	partners []*partnerInfo
	format   sparseimage.PixelFormat
	mode     sparseimage.CompositeMode
	spareBuf []byte
	finalBuf []byte
}

// tryCompositeIncoming promotes partner incomingIndex's arrival up the
// binary composite tree as far as siblings at matching levels allow,
// following the level-doubling rule in the composer's pairwise tree:
// sibling distance 2^level, subtree rounded down to a multiple of
// 2^(level+1), composite when both siblings are at the same level,
// promote and continue from the front (lower) index. Returns true once
// the tree is fully reduced (partner 0 has absorbed all current_k
// pieces).
func (rs *roundState) tryCompositeIncoming(incomingIndex int) (bool, error) {
	currentK := len(rs.partners)
	toCompositeIndex := incomingIndex

	for {
		level := rs.partners[toCompositeIndex].compositeLevel
		distToSibling := 1 << uint(level)
		subtreeSize := distToSibling << 1

		var frontIndex, backIndex int
		if toCompositeIndex%subtreeSize == 0 {
			frontIndex = toCompositeIndex
			backIndex = toCompositeIndex + distToSibling
			if backIndex >= currentK {
				if frontIndex == 0 {
					break
				}
				rs.partners[toCompositeIndex].compositeLevel++
				continue
			}
		} else {
			backIndex = toCompositeIndex
			frontIndex = toCompositeIndex - distToSibling
		}

		if rs.partners[frontIndex].compositeLevel != rs.partners[backIndex].compositeLevel {
			break
		}

		isFinal := frontIndex == 0 && subtreeSize >= currentK
		dstBuf := rs.spareBuf
		if isFinal {
			dstBuf = rs.finalBuf
		}

		front := rs.partners[frontIndex]
		back := rs.partners[backIndex]
		result, err := sparseimage.Composite(front.receiveImage, back.receiveImage, dstBuf, rs.mode)
		if err != nil {
			return false, err
		}

		oldBuf := front.buf
		front.receiveImage = result
		front.buf = dstBuf
		if !isFinal {
			rs.spareBuf = oldBuf
		}
		front.compositeLevel++
		toCompositeIndex = frontIndex
	}

	return (1 << uint(rs.partners[0].compositeLevel)) >= currentK, nil
}

// compositeIncomingImages drains receiveRequests via WaitAny, feeding
// each arrival into the composite tree, until the tree reports it has
// absorbed every partner's piece. The caller's own piece (already
// "arrived" via the self-aliasing in postReceives/postSends) primes the
// tree first, which may on its own promote some levels before any
// network arrival is needed.
func compositeIncomingImages(
	rs *roundState,
	t transport.Transport,
	receiveRequests []transport.Request,
	currentPartitionIndex int,
) error {
	done, err := rs.tryCompositeIncoming(currentPartitionIndex)
	if err != nil {
		return err
	}

	for !done {
		idx, err := t.WaitAny(receiveRequests)
		if err != nil {
			return err
		}
		p := rs.partners[idx]
		img, err := sparseimage.UnpackageFromReceive(p.recvBuf)
		if err != nil {
			return err
		}
		if img.NumPixels() != rs.partners[currentPartitionIndex].sendExpectedPixels {
			return ErrSanityCheck
		}
		p.receiveImage = img
		p.buf = p.recvBuf
		p.compositeLevel = 0

		done, err = rs.tryCompositeIncoming(idx)
		if err != nil {
			return err
		}
	}
	return nil
}
