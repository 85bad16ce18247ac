// Package compose is the thin façade that dispatches between a direct
// Radix-k compose (single tile) and a Reduce-delegated compose (multiple
// tiles), and drives the render-transfer step that gets a locally
// rendered, already-compressed image to whichever process will
// composite it.
package compose

import (
	"errors"

	"github.com/mrjoshuak/go-radixcompose/diag"
	"github.com/mrjoshuak/go-radixcompose/internal/xdr"
	"github.com/mrjoshuak/go-radixcompose/radixk"
	"github.com/mrjoshuak/go-radixcompose/reduce"
	"github.com/mrjoshuak/go-radixcompose/sparseimage"
	"github.com/mrjoshuak/go-radixcompose/state"
	"github.com/mrjoshuak/go-radixcompose/transport"
)

// collectOffsetPrefixSize is the width of the little-endian offset prefix
// that precedes each gathered piece's own self-describing bytes.
const collectOffsetPrefixSize = 4

// ErrSanityCheck is raised when a received tile contribution cannot be
// composited with this process's own, when a gathered piece is too large
// or falls outside the tile, or when a composed tile has no pixel count.
var ErrSanityCheck = errors.New("compose: sanity check failed")

// transferTagBase offsets radixk's own tag range (2200 and up) so a
// tile transfer can never be mistaken for a Radix-k round message.
const transferTagBase = 1000

// Result is one process's output of a Compose call: the tile it ended
// up compositing (or -1 if none) and that tile's piece of the final
// image, at the given offset in the tile's pixel space. Group and
// ImageDest describe the compose-group collect needs to gather the full
// tile image; they are meaningless when Tile == -1.
type Result struct {
	Tile      int
	Piece     *sparseimage.SparseImage
	Offset    int
	Group     []int
	ImageDest int
}

// Session ties the four collaborator interfaces together and exposes the
// one entry point callers need.
type Session struct {
	sess      *state.Session
	buffers   *state.Buffers
	transport transport.Transport
	sink      diag.Sink
}

// NewSession wraps the collaborators a compose needs.
func NewSession(sess *state.Session, buffers *state.Buffers, t transport.Transport, sink diag.Sink) *Session {
	return &Session{sess: sess, buffers: buffers, transport: t, sink: sink}
}

// Compose drives one compose across all of this session's tiles. inputs
// is indexed by tile number; inputs[t] is this process's contribution to
// tile t (nil if this process renders nothing for t). It returns this
// process's Result for the tile it ends up compositing, or a Result with
// Tile == -1 if it only forwarded contributions to other processes.
func (s *Session) Compose(inputs []*sparseimage.SparseImage) (Result, error) {
	if s.sess.NumTiles() <= 1 {
		return s.composeSingleTile(inputs)
	}
	return s.composeMultiTile(inputs)
}

func (s *Session) composeSingleTile(inputs []*sparseimage.SparseImage) (Result, error) {
	var input *sparseimage.SparseImage
	if len(inputs) > 0 {
		input = inputs[0]
	}
	group := make([]int, s.sess.NumProcesses())
	for i := range group {
		group[i] = i
	}
	imageDest := group[0]
	if d := s.sess.DisplayNodes(); len(d) > 0 {
		imageDest = d[0]
	}
	piece, offset, err := radixk.Compose(group, imageDest, input, s.sess, s.buffers, s.transport, s.sink)
	if err != nil {
		return Result{Tile: -1}, err
	}
	return Result{Tile: 0, Piece: piece, Offset: offset, Group: group, ImageDest: imageDest}, nil
}

func (s *Session) composeMultiTile(inputs []*sparseimage.SparseImage) (Result, error) {
	groups, sendDest, err := reduce.GlobalPlan(s.sess)
	if err != nil {
		s.sink.RaiseError(diag.ErrSanityCheck, "reduce global plan failed")
		return Result{Tile: -1}, err
	}

	rank := s.sess.Rank()
	numTiles := s.sess.NumTiles()

	composeTile := -1
	var composeGroup []int
	for t, g := range groups {
		for _, m := range g {
			if m == rank {
				composeTile = t
				composeGroup = g
			}
		}
	}

	// Forward every contribution this process owns but doesn't
	// composite itself.
	for t := 0; t < numTiles; t++ {
		if t >= len(inputs) || inputs[t] == nil || sendDest[t] == nil {
			continue
		}
		dest := sendDest[t][rank]
		if dest == -1 || dest == rank {
			continue
		}
		if err := s.transferToDestination(t, dest, inputs[t]); err != nil {
			s.sink.RaiseError(diag.ErrTransportFailure, "transfer to destination failed")
			return Result{Tile: -1}, err
		}
	}

	if composeTile == -1 {
		return Result{Tile: -1}, nil
	}

	var own *sparseimage.SparseImage
	if composeTile < len(inputs) {
		own = inputs[composeTile]
	}
	merged, err := s.receiveContributions(composeTile, own, groups, sendDest)
	if err != nil {
		return Result{Tile: -1}, err
	}

	imageDest := composeGroup[0]
	if s.sess.OrderedComposite() {
		imageDest = s.sess.DisplayNodes()[composeTile]
	}
	piece, offset, err := radixk.Compose(composeGroup, imageDest, merged, s.sess, s.buffers, s.transport, s.sink)
	if err != nil {
		return Result{Tile: -1}, err
	}
	return Result{Tile: composeTile, Piece: piece, Offset: offset, Group: composeGroup, ImageDest: imageDest}, nil
}

// transferToDestination blocking-sends this process's contribution for
// tile to dest, tagged by tile so it can't be confused with another
// tile's transfer or a Radix-k round message.
func (s *Session) transferToDestination(tile, dest int, input *sparseimage.SparseImage) error {
	payload, err := sparseimage.PackageEnvelopeLevel(input, s.sess.WireEnvelopeKind(), s.sess.WireEnvelopeLevel())
	if err != nil {
		return err
	}
	return s.transport.Send(payload, dest, transferTagBase+tile)
}

// receiveContributions composites own (this process's own contribution
// to tile, possibly nil) with every other contributor's piece sent to
// this process for tile, per the global plan. The merge uses the plain
// z-buffer/blend composite operator directly (not the Radix-k tree),
// since the number of incoming pieces here is small and bounded by the
// tile's contributor count, not the process count.
func (s *Session) receiveContributions(tile int, own *sparseimage.SparseImage, groups [][]int, sendDest [][]int) (*sparseimage.SparseImage, error) {
	rank := s.sess.Rank()
	format := s.sess.Format()
	mode := s.sess.CompositeMode()

	result := own
	if sendDest[tile] == nil {
		return result, nil
	}
	// Composite's dst must not alias either operand, so successive merges
	// ping-pong between two named regions rather than writing every merge
	// back into the same one (which would alias result, this loop's
	// previous output, on the very next iteration).
	dstNames := [2]state.BufferName{state.BufWorking, state.BufSpare}
	merges := 0
	for src, dest := range sendDest[tile] {
		if dest != rank || src == rank {
			continue
		}
		// +32 covers the envelope header regardless of WireEnvelope kind.
		buf := s.buffers.Get(state.BufReceive, sparseimage.MaxBufferSize(expectedPixelCount(own, result))+32)
		req, err := s.transport.Irecv(buf, src, transferTagBase+tile)
		if err != nil {
			return nil, err
		}
		if err := s.transport.WaitAll([]transport.Request{req}); err != nil {
			return nil, err
		}
		incoming, err := sparseimage.UnpackageEnvelope(buf)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = incoming
			continue
		}
		dst := s.buffers.Get(dstNames[merges%2], sparseimage.BufferSize(format, result.NumPixels()))
		merges++
		result, err = sparseimage.Composite(result, incoming, dst, mode)
		if err != nil {
			return nil, ErrSanityCheck
		}
	}
	return result, nil
}

func expectedPixelCount(candidates ...*sparseimage.SparseImage) int {
	for _, c := range candidates {
		if c != nil {
			return c.NumPixels()
		}
	}
	return 0
}

// collect gathers every group member's evenly-sized partition, as left by
// radixk.Compose, to displayRank and reconstructs the tile's full dense
// image there. totalPixels is the tile's full pixel count, known to every
// group member regardless of how much of it its own partition covers.
// Every caller but displayRank gets a nil DenseImage back.
func (s *Session) collect(group []int, displayRank, totalPixels int, piece *sparseimage.SparseImage, offset int) (*sparseimage.DenseImage, error) {
	maxPiece := sparseimage.MaxBufferSize(totalPixels)
	payloadLen := collectOffsetPrefixSize + maxPiece

	send := s.buffers.Get(state.BufGather, payloadLen)
	for i := range send {
		send[i] = 0
	}
	w := xdr.NewWriter(send)
	if err := w.WriteUint32(uint32(offset)); err != nil {
		return nil, err
	}
	body := piece.Bytes()
	if len(body) > maxPiece {
		return nil, ErrSanityCheck
	}
	copy(send[collectOffsetPrefixSize:], body)

	gathered, err := s.transport.Gather(send, group, displayRank)
	if err != nil {
		return nil, err
	}
	if s.sess.Rank() != displayRank {
		return nil, nil
	}

	dense := sparseimage.NewDenseImage(totalPixels, 1, s.sess.Format())
	for _, buf := range gathered {
		r := xdr.NewReader(buf)
		pieceOffset, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		pieceImg, err := sparseimage.UnpackageFromReceive(buf[collectOffsetPrefixSize:])
		if err != nil {
			return nil, err
		}
		pieceDense := sparseimage.Decompress(pieceImg)
		base := int(pieceOffset)
		if base+pieceDense.NumPixels() > totalPixels {
			return nil, ErrSanityCheck
		}
		for i := 0; i < pieceDense.NumPixels(); i++ {
			dense.SetPixel(base+i, pieceDense.Pixel(i))
		}
	}
	return dense, nil
}

// ComposeTileImage runs Compose and, for the tile this process ends up
// seated in (if any), follows it with collect so the tile's display node
// comes away with the full dense image. tileNumPixels is indexed by tile
// number and gives each tile's total pixel count, known ahead of compose
// from the tile's resolution. It returns the tile index and, on the
// display node only, the reconstructed dense image.
func (s *Session) ComposeTileImage(inputs []*sparseimage.SparseImage, tileNumPixels []int) (*sparseimage.DenseImage, int, error) {
	result, err := s.Compose(inputs)
	if err != nil {
		return nil, -1, err
	}
	if result.Tile == -1 {
		return nil, -1, nil
	}
	if result.Tile >= len(tileNumPixels) {
		s.sink.RaiseError(diag.ErrSanityCheck, "tile pixel count missing for composed tile")
		return nil, -1, ErrSanityCheck
	}
	dense, err := s.collect(result.Group, result.ImageDest, tileNumPixels[result.Tile], result.Piece, result.Offset)
	if err != nil {
		return nil, result.Tile, err
	}
	return dense, result.Tile, nil
}
