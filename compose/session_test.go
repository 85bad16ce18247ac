package compose

import (
	"sync"
	"testing"

	"github.com/mrjoshuak/go-radixcompose/diag"
	"github.com/mrjoshuak/go-radixcompose/sparseimage"
	"github.com/mrjoshuak/go-radixcompose/state"
	"github.com/mrjoshuak/go-radixcompose/transport/simtransport"
)

func zbufferFormat() sparseimage.PixelFormat {
	return sparseimage.PixelFormat{Color: sparseimage.ColorNone, Depth: sparseimage.DepthFloat}
}

// rankInput builds a fully-active dense image of n pixels for rank, where
// pixel i's depth is a per-rank, per-pixel mix so every (rank, pixel) pair
// gets a distinct depth, then compresses it.
func rankInput(n, rank int) *sparseimage.SparseImage {
	dense := sparseimage.NewDenseImage(n, 1, zbufferFormat())
	for i := 0; i < n; i++ {
		dense.SetPixel(i, sparseimage.PixelRecord{Z: float32((i*5 + rank*3) % 17)})
	}
	return sparseimage.Compress(dense, sparseimage.CompositeZBuffer)
}

// nearestDepth returns the smallest depth value any of ranks produces for
// pixel i, the z-buffer-correct answer.
func nearestDepth(n, i int, ranks []int) float32 {
	best := sparseimage.InactiveDepth
	for _, r := range ranks {
		z := float32((i*5 + r*3) % 17)
		if z < best {
			best = z
		}
	}
	return best
}

type worldFixture struct {
	world *simtransport.World
	mu    sync.Mutex
}

func runRank(t *testing.T, wf *worldFixture, cfg state.SessionConfig, inputs []*sparseimage.SparseImage, tileNumPixels []int, out *[]*sparseimage.DenseImage, tileOut *[]int, wg *sync.WaitGroup) {
	defer wg.Done()
	sess := state.NewSession(cfg)
	buffers := state.NewBuffers()
	tr := wf.world.Endpoint(cfg.Rank)
	s := NewSession(sess, buffers, tr, diag.Discard)
	dense, tile, err := s.ComposeTileImage(inputs, tileNumPixels)
	if err != nil {
		t.Errorf("rank %d: ComposeTileImage: %v", cfg.Rank, err)
		return
	}
	wf.mu.Lock()
	(*out)[cfg.Rank] = dense
	(*tileOut)[cfg.Rank] = tile
	wf.mu.Unlock()
}

func TestComposeTileImageSingleTile(t *testing.T) {
	const p = 4
	const n = 12
	wf := &worldFixture{world: simtransport.NewWorld(p)}

	inputs := make([][]*sparseimage.SparseImage, p)
	for r := 0; r < p; r++ {
		inputs[r] = []*sparseimage.SparseImage{rankInput(n, r)}
	}

	dense := make([]*sparseimage.DenseImage, p)
	tiles := make([]int, p)
	var wg sync.WaitGroup
	for r := 0; r < p; r++ {
		wg.Add(1)
		cfg := state.SessionConfig{
			CompositeMode: sparseimage.CompositeZBuffer,
			Format:        zbufferFormat(),
			MagicK:        8,
			NumProcesses:  p,
			Rank:          r,
			NumTiles:      1,
		}
		go runRank(t, wf, cfg, inputs[r], []int{n}, &dense, &tiles, &wg)
	}
	wg.Wait()

	allRanks := []int{0, 1, 2, 3}
	// group[0] == 0 is the single-tile compose's advisory image_dest.
	if dense[0] == nil {
		t.Fatalf("rank 0 (image_dest): expected a reconstructed dense image, got nil")
	}
	for i := 0; i < n; i++ {
		want := nearestDepth(n, i, allRanks)
		got := dense[0].Pixel(i).Z
		if got != want {
			t.Errorf("pixel %d: depth = %v, want %v", i, got, want)
		}
	}
	for r := 1; r < p; r++ {
		if dense[r] != nil {
			t.Errorf("rank %d: expected nil dense image (not the display node), got one", r)
		}
		if tiles[r] != 0 {
			t.Errorf("rank %d: tile = %d, want 0", r, tiles[r])
		}
	}
}

func TestComposeTileImageMultiTile(t *testing.T) {
	const p = 4
	const n = 10
	wf := &worldFixture{world: simtransport.NewWorld(p)}

	// Tile 0 is contributed by ranks 0,1 (display rank 0); tile 1 by
	// ranks 2,3 (display rank 2). Quota seats each pair into its own
	// tile with no fillers, so every contributor self-sends.
	masks := [][]bool{
		{true, false},
		{true, false},
		{false, true},
		{false, true},
	}
	contrib := []int{2, 2}
	display := []int{0, 2}

	inputs := make([][]*sparseimage.SparseImage, p)
	inputs[0] = []*sparseimage.SparseImage{rankInput(n, 0), nil}
	inputs[1] = []*sparseimage.SparseImage{rankInput(n, 1), nil}
	inputs[2] = []*sparseimage.SparseImage{nil, rankInput(n, 2)}
	inputs[3] = []*sparseimage.SparseImage{nil, rankInput(n, 3)}

	dense := make([]*sparseimage.DenseImage, p)
	tiles := make([]int, p)
	var wg sync.WaitGroup
	for r := 0; r < p; r++ {
		wg.Add(1)
		cfg := state.SessionConfig{
			CompositeMode:          sparseimage.CompositeZBuffer,
			Format:                 zbufferFormat(),
			MagicK:                 8,
			NumProcesses:           p,
			Rank:                   r,
			NumTiles:               2,
			TileContribCounts:      contrib,
			DisplayNodes:           display,
			AllContainedTilesMasks: masks,
		}
		go runRank(t, wf, cfg, inputs[r], []int{n, n}, &dense, &tiles, &wg)
	}
	wg.Wait()

	if dense[0] == nil {
		t.Fatalf("rank 0 (tile 0 display): expected a dense image, got nil")
	}
	if tiles[0] != 0 {
		t.Errorf("rank 0: tile = %d, want 0", tiles[0])
	}
	for i := 0; i < n; i++ {
		want := nearestDepth(n, i, []int{0, 1})
		got := dense[0].Pixel(i).Z
		if got != want {
			t.Errorf("tile 0, pixel %d: depth = %v, want %v", i, got, want)
		}
	}

	if dense[2] == nil {
		t.Fatalf("rank 2 (tile 1 display): expected a dense image, got nil")
	}
	if tiles[2] != 1 {
		t.Errorf("rank 2: tile = %d, want 1", tiles[2])
	}
	for i := 0; i < n; i++ {
		want := nearestDepth(n, i, []int{2, 3})
		got := dense[2].Pixel(i).Z
		if got != want {
			t.Errorf("tile 1, pixel %d: depth = %v, want %v", i, got, want)
		}
	}

	for _, r := range []int{1, 3} {
		if dense[r] != nil {
			t.Errorf("rank %d: expected nil dense image, got one", r)
		}
	}
}

func tileDepth(n, i, tile, rank int) float32 {
	return float32((i*5 + rank*3 + tile*11) % 23)
}

func nearestTileDepth(n, i, tile int, ranks []int) float32 {
	best := sparseimage.InactiveDepth
	for _, r := range ranks {
		z := tileDepth(n, i, tile, r)
		if z < best {
			best = z
		}
	}
	return best
}

func tileInput(n, tile, rank int) *sparseimage.SparseImage {
	dense := sparseimage.NewDenseImage(n, 1, zbufferFormat())
	for i := 0; i < n; i++ {
		dense.SetPixel(i, sparseimage.PixelRecord{Z: tileDepth(n, i, tile, rank)})
	}
	return sparseimage.Compress(dense, sparseimage.CompositeZBuffer)
}

// TestComposeTileImageForwardsThroughNonSeatedContributors covers the
// case where a tile's quota seats fewer processes than contribute to it,
// so transferToDestination and receiveContributions actually move a
// contribution across the network rather than every contributor landing
// in its own tile's compose-group.
func TestComposeTileImageForwardsThroughNonSeatedContributors(t *testing.T) {
	const p = 3
	const n = 9
	wf := &worldFixture{world: simtransport.NewWorld(p)}

	// Every rank contributes to both tiles.
	masks := [][]bool{
		{true, true},
		{true, true},
		{true, true},
	}
	contrib := []int{3, 3}
	display := []int{0, 1}

	inputs := make([][]*sparseimage.SparseImage, p)
	for r := 0; r < p; r++ {
		inputs[r] = []*sparseimage.SparseImage{tileInput(n, 0, r), tileInput(n, 1, r)}
	}

	dense := make([]*sparseimage.DenseImage, p)
	tiles := make([]int, p)
	var wg sync.WaitGroup
	for r := 0; r < p; r++ {
		wg.Add(1)
		cfg := state.SessionConfig{
			CompositeMode:          sparseimage.CompositeZBuffer,
			Format:                 zbufferFormat(),
			MagicK:                 8,
			NumProcesses:           p,
			Rank:                   r,
			NumTiles:               2,
			TileContribCounts:      contrib,
			DisplayNodes:           display,
			AllContainedTilesMasks: masks,
		}
		go runRank(t, wf, cfg, inputs[r], []int{n, n}, &dense, &tiles, &wg)
	}
	wg.Wait()

	allRanks := []int{0, 1, 2}
	if dense[0] == nil {
		t.Fatalf("rank 0 (tile 0 display): expected a dense image, got nil")
	}
	if tiles[0] != 0 {
		t.Errorf("rank 0: tile = %d, want 0", tiles[0])
	}
	for i := 0; i < n; i++ {
		want := nearestTileDepth(n, i, 0, allRanks)
		got := dense[0].Pixel(i).Z
		if got != want {
			t.Errorf("tile 0, pixel %d: depth = %v, want %v", i, got, want)
		}
	}

	if dense[1] == nil {
		t.Fatalf("rank 1 (tile 1 display): expected a dense image, got nil")
	}
	if tiles[1] != 1 {
		t.Errorf("rank 1: tile = %d, want 1", tiles[1])
	}
	for i := 0; i < n; i++ {
		want := nearestTileDepth(n, i, 1, allRanks)
		got := dense[1].Pixel(i).Z
		if got != want {
			t.Errorf("tile 1, pixel %d: depth = %v, want %v", i, got, want)
		}
	}

	// Rank 2 is tile 0's second compose-group member (quota seats two of
	// the three tile-0 contributors), but tile 0's image_dest is rank 0,
	// so rank 2 itself never gets the reconstructed dense image back.
	if tiles[2] != 0 {
		t.Errorf("rank 2: tile = %d, want 0", tiles[2])
	}
	if dense[2] != nil {
		t.Errorf("rank 2: expected nil dense image (not tile 0's image_dest), got one")
	}
}
