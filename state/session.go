package state

import (
	"github.com/mrjoshuak/go-radixcompose/compression"
	"github.com/mrjoshuak/go-radixcompose/sparseimage"
)

// SessionConfig is the set of recognized session options the composer
// packages consume, gathered in one place for convenient construction.
type SessionConfig struct {
	CompositeMode          sparseimage.CompositeMode
	Format                 sparseimage.PixelFormat
	OrderedComposite       bool
	CompositeOrder         []int
	InterlaceImages        bool
	MagicK                 int // 0 means DefaultMagicK
	NumProcesses           int
	Rank                   int
	NumTiles               int
	DisplayNodes           []int
	TileContribCounts      []int
	AllContainedTilesMasks [][]bool
	WireEnvelope           sparseimage.WireEnvelope
	// WireEnvelopeLevel tunes WireEnvelopeZlib's compression effort. It
	// is ignored by WireEnvelopeNone and WireEnvelopeRLE. Zero means
	// compression.CompressionLevelDefault.
	WireEnvelopeLevel compression.CompressionLevel
}

// DefaultMagicK is the target k used when a SessionConfig doesn't
// override it.
const DefaultMagicK = 8

// Session is the typed session/option reader the composer packages are
// specified against. It is an immutable snapshot: construct one with
// NewSession at the start of a compose and pass it down; there is no
// hidden global state.
type Session struct {
	cfg SessionConfig
}

// NewSession wraps cfg as a Session, applying defaults (MagicK and
// WireEnvelopeLevel).
func NewSession(cfg SessionConfig) *Session {
	if cfg.MagicK <= 0 {
		cfg.MagicK = DefaultMagicK
	}
	if cfg.WireEnvelopeLevel == 0 {
		cfg.WireEnvelopeLevel = compression.CompressionLevelDefault
	}
	return &Session{cfg: cfg}
}

func (s *Session) CompositeMode() sparseimage.CompositeMode  { return s.cfg.CompositeMode }
func (s *Session) Format() sparseimage.PixelFormat           { return s.cfg.Format }
func (s *Session) OrderedComposite() bool                    { return s.cfg.OrderedComposite }
func (s *Session) CompositeOrder() []int                      { return s.cfg.CompositeOrder }
func (s *Session) InterlaceImages() bool                      { return s.cfg.InterlaceImages }
func (s *Session) MagicK() int                                 { return s.cfg.MagicK }
func (s *Session) NumProcesses() int                            { return s.cfg.NumProcesses }
func (s *Session) Rank() int                                     { return s.cfg.Rank }
func (s *Session) NumTiles() int                                  { return s.cfg.NumTiles }
func (s *Session) DisplayNodes() []int                             { return s.cfg.DisplayNodes }
func (s *Session) TileContribCounts() []int                        { return s.cfg.TileContribCounts }
func (s *Session) AllContainedTilesMasks() [][]bool                { return s.cfg.AllContainedTilesMasks }
func (s *Session) WireEnvelopeKind() sparseimage.WireEnvelope      { return s.cfg.WireEnvelope }
func (s *Session) WireEnvelopeLevel() compression.CompressionLevel { return s.cfg.WireEnvelopeLevel }
