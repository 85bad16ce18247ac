package reduce

import (
	"testing"

	"github.com/mrjoshuak/go-radixcompose/state"
)

func TestQuotaSumsToP(t *testing.T) {
	contrib := []int{6, 2, 8}
	quota := Quota(contrib, 8)
	sum := 0
	for _, q := range quota {
		sum += q
	}
	if sum != 8 {
		t.Fatalf("sum(Quota) = %d, want 8", sum)
	}
	if quota[2] < 3 {
		t.Errorf("Quota(tile 2) = %d, want >= 3", quota[2])
	}
}

func TestQuotaZeroContribTileGetsNoSeats(t *testing.T) {
	quota := Quota([]int{4, 0, 4}, 4)
	if quota[1] != 0 {
		t.Fatalf("Quota(zero-contrib tile) = %d, want 0", quota[1])
	}
	sum := quota[0] + quota[1] + quota[2]
	if sum != 4 {
		t.Fatalf("sum(Quota) = %d, want 4", sum)
	}
}

// buildMasks returns a [p][numTiles]bool matrix from a list of (proc,
// tile) pairs that contribute.
func buildMasks(p, numTiles int, pairs [][2]int) [][]bool {
	masks := make([][]bool, p)
	for i := range masks {
		masks[i] = make([]bool, numTiles)
	}
	for _, pr := range pairs {
		masks[pr[0]][pr[1]] = true
	}
	return masks
}

// delegateAll runs Delegate once per rank in [0,p) against identical
// topology inputs (only Rank differs), returning one TilePlan per rank.
func delegateAll(t *testing.T, p int, base state.SessionConfig) []*TilePlan {
	t.Helper()
	plans := make([]*TilePlan, p)
	for r := 0; r < p; r++ {
		cfg := base
		cfg.Rank = r
		sess := state.NewSession(cfg)
		plan, err := Delegate(sess)
		if err != nil {
			t.Fatalf("Delegate(rank %d): %v", r, err)
		}
		plans[r] = plan
	}
	return plans
}

func TestDelegateStressScenario(t *testing.T) {
	const p = 8
	const numTiles = 3
	contrib := []int{6, 2, 8}
	display := []int{0, 6, 7}

	var pairs [][2]int
	for proc := 0; proc < 6; proc++ {
		pairs = append(pairs, [2]int{proc, 0})
	}
	pairs = append(pairs, [2]int{6, 1}, [2]int{7, 1})
	for proc := 0; proc < p; proc++ {
		pairs = append(pairs, [2]int{proc, 2})
	}
	masks := buildMasks(p, numTiles, pairs)

	base := state.SessionConfig{
		NumProcesses:           p,
		NumTiles:                numTiles,
		TileContribCounts:       contrib,
		DisplayNodes:            display,
		AllContainedTilesMasks:  masks,
	}
	plans := delegateAll(t, p, base)

	seatedTile := make([]int, p)
	for r, plan := range plans {
		seatedTile[r] = plan.ComposeTile
		if plan.ComposeTile == -1 {
			t.Fatalf("rank %d not seated in any tile", r)
		}
	}

	groupSizes := make(map[int]int)
	for r, plan := range plans {
		groupSizes[plan.ComposeTile] = len(plan.ComposeGroup)
		found := false
		for _, m := range plan.ComposeGroup {
			if m == r {
				found = true
			}
		}
		if !found {
			t.Errorf("rank %d's own ComposeGroup does not contain itself", r)
		}
	}
	sum := 0
	for _, sz := range groupSizes {
		sum += sz
	}
	if sum != p {
		t.Fatalf("sum of group sizes = %d, want %d", sum, p)
	}
	if groupSizes[2] < 3 {
		t.Errorf("tile 2 group size = %d, want >= 3", groupSizes[2])
	}

	// Every contributor has exactly one send-destination per tile it
	// contributes to, and that destination is a member of that tile's
	// compose-group.
	groupOf := make(map[int][]int)
	for r, plan := range plans {
		groupOf[plan.ComposeTile] = plan.ComposeGroup
		_ = r
	}
	for r, plan := range plans {
		for tile := 0; tile < numTiles; tile++ {
			if !masks[r][tile] {
				if plan.SendDest[tile] != -1 {
					t.Errorf("rank %d, tile %d: non-contributor has a send-destination", r, tile)
				}
				continue
			}
			dest := plan.SendDest[tile]
			if dest == -1 {
				t.Errorf("rank %d, tile %d: contributor has no send-destination", r, tile)
				continue
			}
			group := groupOf[tile]
			if group == nil {
				// Find the group via any seated member of that tile.
				for _, p2 := range plans {
					if p2.ComposeTile == tile {
						group = p2.ComposeGroup
						break
					}
				}
			}
			if indexOf(group, dest) == -1 {
				t.Errorf("rank %d, tile %d: send-dest %d not in tile's group %v", r, tile, dest, group)
			}
		}
	}

	// Display node for each tile appears in that tile's group.
	for tile, d := range display {
		var group []int
		for _, plan := range plans {
			if plan.ComposeTile == tile {
				group = plan.ComposeGroup
				break
			}
		}
		if indexOf(group, d) == -1 {
			t.Errorf("tile %d's display node %d is not in its group %v", tile, d, group)
		}
	}
}

func TestDelegateOrderedModeContiguousPartition(t *testing.T) {
	const p = 6
	const numTiles = 1
	contrib := []int{6}
	display := []int{0}
	order := []int{5, 4, 3, 2, 1, 0}

	masks := buildMasks(p, numTiles, [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}})

	base := state.SessionConfig{
		NumProcesses:           p,
		NumTiles:                numTiles,
		TileContribCounts:       contrib,
		DisplayNodes:            display,
		AllContainedTilesMasks:  masks,
		OrderedComposite:        true,
		CompositeOrder:          order,
	}
	plans := delegateAll(t, p, base)

	group := plans[0].ComposeGroup
	if len(group) != p {
		t.Fatalf("group size = %d, want %d", len(group), p)
	}
	// Every rank contributes and every rank is seated (single tile
	// absorbs everyone), so each contributor sends to itself.
	for r, plan := range plans {
		if plan.SendDest[0] != r {
			t.Errorf("rank %d: send-dest = %d, want self (%d)", r, plan.SendDest[0], r)
		}
	}
}

// TestDelegateOrderedModeLeftoverReassignmentStaysInGroup covers the case
// TestDelegateOrderedModeContiguousPartition doesn't: a tile whose
// contributor count exceeds its quota, so not every contributor is seated
// and orderedAssign's leftover-reassignment path (plan.go's loop over
// `leftovers`) actually has to run instead of the degenerate "every
// contributor is already seated" shortcut.
func TestDelegateOrderedModeLeftoverReassignmentStaysInGroup(t *testing.T) {
	const p = 8
	const numTiles = 3
	contrib := []int{6, 2, 2}
	display := []int{0, 6, 7}
	order := []int{0, 1, 2, 3, 4, 5, 6, 7}

	var pairs [][2]int
	for proc := 0; proc < 6; proc++ {
		pairs = append(pairs, [2]int{proc, 0})
	}
	pairs = append(pairs, [2]int{6, 1}, [2]int{7, 1})
	pairs = append(pairs, [2]int{6, 2}, [2]int{7, 2})
	masks := buildMasks(p, numTiles, pairs)

	base := state.SessionConfig{
		NumProcesses:           p,
		NumTiles:               numTiles,
		TileContribCounts:      contrib,
		DisplayNodes:           display,
		AllContainedTilesMasks: masks,
		OrderedComposite:       true,
		CompositeOrder:         order,
	}
	plans := delegateAll(t, p, base)

	// Tile 0 takes contrib=6 against a rebalanced quota of 4, so ranks
	// 0-3 are seated and ranks 4-5 are not. Among the seated, targets[i]
	// = i*groupSize/numContrib puts both rank 0 and rank 1 on slot 0 —
	// only one of them keeps it, so the other must be reassigned from
	// the group's leftovers rather than landing on itself.
	group := plans[0].ComposeGroup
	if len(group) != 4 {
		t.Fatalf("tile 0 group size = %d, want 4", len(group))
	}
	inGroup := make(map[int]bool, len(group))
	for _, m := range group {
		inGroup[m] = true
	}

	selfSends := 0
	for r := 0; r <= 5; r++ {
		dest := plans[r].SendDest[0]
		if !inGroup[dest] {
			t.Errorf("rank %d: send-dest %d not in tile 0's group %v", r, dest, group)
		}
		if dest == r {
			selfSends++
		}
	}
	if selfSends == 6 {
		t.Error("every tile-0 contributor self-sent; leftover reassignment path never ran")
	}
}

func TestDelegateSingleTileAllSeated(t *testing.T) {
	const p = 4
	masks := buildMasks(p, 1, [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}})
	base := state.SessionConfig{
		NumProcesses:           p,
		NumTiles:                1,
		TileContribCounts:       []int{4},
		DisplayNodes:            []int{0},
		AllContainedTilesMasks:  masks,
	}
	plans := delegateAll(t, p, base)
	for r, plan := range plans {
		if plan.ComposeTile != 0 {
			t.Errorf("rank %d: ComposeTile = %d, want 0", r, plan.ComposeTile)
		}
		if len(plan.ComposeGroup) != p {
			t.Errorf("rank %d: group size = %d, want %d", r, len(plan.ComposeGroup), p)
		}
		if plan.SendDest[0] != r {
			t.Errorf("rank %d: send-dest = %d, want self", r, plan.SendDest[0])
		}
		if plan.GroupImageDest != 0 {
			t.Errorf("rank %d: GroupImageDest = %d, want 0 (unordered mode)", r, plan.GroupImageDest)
		}
	}
}
