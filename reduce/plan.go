// Package reduce implements the Reduce strategy's delegation planner:
// given multiple output tiles and per-process tile contribution masks, it
// computes a process-to-tile seating and a per-tile send-destination map
// that minimizes traffic while respecting ordered-composite constraints.
// Every process runs Delegate independently against the same session
// topology and arrives at the same plan; there is no coordinator.
package reduce

import (
	"errors"
	"math"

	"github.com/mrjoshuak/go-radixcompose/state"
)

// ErrSanityCheck is raised when the session's topology inputs are
// inconsistent (mismatched lengths, a display node seated twice, not
// enough processes to seat every tile's quota).
var ErrSanityCheck = errors.New("reduce: sanity check failed")

// TilePlan is the caller's view of the global delegation plan: which tile
// (if any) it is seated in to composite, and where its contribution to
// each tile should be sent.
type TilePlan struct {
	// SendDest[t] is the rank this process should send its tile-t
	// contribution to, or -1 if this process does not contribute to t.
	SendDest []int
	// ComposeGroup is the ordered compose-group of the tile this process
	// is seated in, nil if it is not seated in any tile. Order matters
	// under ordered composite: group[0] is nearest.
	ComposeGroup []int
	// ComposeTile is the index of the tile this process is seated in,
	// or -1.
	ComposeTile int
	// GroupImageDest is the index within ComposeGroup of the tile's
	// display node (0 in unordered mode, by construction: step 3 always
	// seats the display node first and unordered mode never reshuffles
	// the group).
	GroupImageDest int
}

// Quota assigns each tile t a process count Q(t), per §4.3 step 1-2:
// Q(t) = max(1 if contrib(t)>0, min(contrib(t), floor(contrib(t)*P/total))),
// then rebalanced toward sum(Q) == p. The sum reaches p whenever total > 0
// and p lies between the number of contributing tiles and total; no tile
// gets more processes than it has contributors.
func Quota(contrib []int, p int) []int {
	total := sumInts(contrib)
	quota := make([]int, len(contrib))
	if total == 0 {
		return quota
	}
	for t, c := range contrib {
		if c == 0 {
			continue
		}
		q := c * p / total
		if q > c {
			q = c
		}
		if q < 1 {
			q = 1
		}
		quota[t] = q
	}
	rebalance(quota, contrib, p)
	return quota
}

func sumInts(xs []int) int {
	s := 0
	for _, x := range xs {
		s += x
	}
	return s
}

// rebalance adjusts quota in place until it sums to p, giving to (or
// taking from) the tile with the largest (or smallest) contrib/Q ratio,
// ties broken toward the earlier tile index.
func rebalance(quota, contrib []int, p int) {
	for sumInts(quota) < p {
		best, bestRatio := -1, -1.0
		for t := range quota {
			if contrib[t] <= quota[t] {
				continue
			}
			ratio := math.Inf(1)
			if quota[t] > 0 {
				ratio = float64(contrib[t]) / float64(quota[t])
			}
			if ratio > bestRatio {
				bestRatio, best = ratio, t
			}
		}
		if best == -1 {
			break
		}
		quota[best]++
	}
	for sumInts(quota) > p {
		best, bestRatio := -1, math.Inf(1)
		for t := range quota {
			if quota[t] < 2 {
				continue
			}
			ratio := float64(contrib[t]) / float64(quota[t])
			if ratio < bestRatio {
				bestRatio, best = ratio, t
			}
		}
		if best == -1 {
			break
		}
		quota[best]--
	}
}

// seatProcesses runs steps 3-5: display nodes first, then each unseated
// contributor into the first under-full tile it contributes to, then
// every remaining process into whatever tile still needs seats, in tile
// order.
func seatProcesses(p, numTiles int, quota []int, masks [][]bool, display []int) ([][]int, error) {
	groups := make([][]int, numTiles)
	seated := make([]int, p)
	for i := range seated {
		seated[i] = -1
	}

	for t := 0; t < numTiles; t++ {
		if quota[t] == 0 {
			continue
		}
		d := display[t]
		if d < 0 || d >= p || seated[d] != -1 {
			return nil, ErrSanityCheck
		}
		groups[t] = append(groups[t], d)
		seated[d] = t
	}

	for proc := 0; proc < p; proc++ {
		if seated[proc] != -1 {
			continue
		}
		for t := 0; t < numTiles; t++ {
			if quota[t] == 0 || len(groups[t]) >= quota[t] {
				continue
			}
			if masks[proc][t] {
				groups[t] = append(groups[t], proc)
				seated[proc] = t
				break
			}
		}
	}

	next := 0
	for t := 0; t < numTiles; t++ {
		for len(groups[t]) < quota[t] {
			for next < p && seated[next] != -1 {
				next++
			}
			if next >= p {
				return nil, ErrSanityCheck
			}
			groups[t] = append(groups[t], next)
			seated[next] = t
			next++
		}
	}
	return groups, nil
}

// unorderedAssign fills dest, for tile t, per §4.3 step 6's unordered
// mode: a contributor already seated in t's group sends to itself;
// others round-robin across the group's non-contributing members (so a
// destination isn't also busy sending its own contribution elsewhere),
// falling back to the whole group if it has no non-contributing member.
func unorderedAssign(t, p int, group []int, masks [][]bool, dest []int) {
	inGroup := make(map[int]bool, len(group))
	for _, m := range group {
		inGroup[m] = true
	}
	var nonContrib []int
	for _, m := range group {
		if !masks[m][t] {
			nonContrib = append(nonContrib, m)
		}
	}
	rr := 0
	for proc := 0; proc < p; proc++ {
		if !masks[proc][t] {
			continue
		}
		if inGroup[proc] {
			dest[proc] = proc
			continue
		}
		switch {
		case len(nonContrib) > 0:
			dest[proc] = nonContrib[rr%len(nonContrib)]
		default:
			dest[proc] = group[rr%len(group)]
		}
		rr++
	}
}

// orderedAssign fills dest, for tile t, per §4.3 step 6's ordered mode:
// contributors are walked in composite order, each assigned to
// group[i*groupSize/numContrib]; the group itself is reshuffled first so
// that a contributor already seated in it owns exactly the slot it would
// be assigned, eliminating its transfer.
func orderedAssign(t, p int, group []int, masks [][]bool, order []int, dest []int) {
	var contributors []int
	seen := make(map[int]bool)
	for _, rank := range order {
		if rank >= 0 && rank < p && masks[rank][t] {
			contributors = append(contributors, rank)
			seen[rank] = true
		}
	}
	for proc := 0; proc < p; proc++ {
		if masks[proc][t] && !seen[proc] {
			contributors = append(contributors, proc)
		}
	}

	groupSize := len(group)
	numContrib := len(contributors)
	if numContrib == 0 || groupSize == 0 {
		return
	}

	targets := make([]int, numContrib)
	for i := range contributors {
		targets[i] = i * groupSize / numContrib
	}

	inGroup := make(map[int]bool, groupSize)
	for _, m := range group {
		inGroup[m] = true
	}

	newGroup := make([]int, groupSize)
	for i := range newGroup {
		newGroup[i] = -1
	}
	placed := make(map[int]bool, groupSize)
	for i, c := range contributors {
		if inGroup[c] && newGroup[targets[i]] == -1 {
			newGroup[targets[i]] = c
			placed[c] = true
		}
	}
	var leftovers []int
	for _, m := range group {
		if !placed[m] {
			leftovers = append(leftovers, m)
		}
	}
	li := 0
	for i := range newGroup {
		if newGroup[i] == -1 {
			newGroup[i] = leftovers[li]
			li++
		}
	}
	copy(group, newGroup)

	for i, c := range contributors {
		dest[c] = group[targets[i]]
	}
}

// GlobalPlan computes the full delegation plan from sess's topology
// options: groups[t] is tile t's seated compose-group and sendDest[t][p]
// is process p's send-destination for tile t (-1 if p doesn't contribute
// to t). It does not depend on sess.Rank(), so every process computing it
// against the same topology gets the identical result; this is what lets
// a process determine not just where it sends its own contributions but
// also which other processes will be sending contributions to it.
func GlobalPlan(sess *state.Session) (groups [][]int, sendDest [][]int, err error) {
	p := sess.NumProcesses()
	numTiles := sess.NumTiles()
	contrib := sess.TileContribCounts()
	masks := sess.AllContainedTilesMasks()
	display := sess.DisplayNodes()

	if len(contrib) != numTiles || len(display) != numTiles || len(masks) != p {
		return nil, nil, ErrSanityCheck
	}
	for _, row := range masks {
		if len(row) != numTiles {
			return nil, nil, ErrSanityCheck
		}
	}

	quota := Quota(contrib, p)
	if sumInts(quota) != p {
		return nil, nil, ErrSanityCheck
	}

	groups, err = seatProcesses(p, numTiles, quota, masks, display)
	if err != nil {
		return nil, nil, err
	}

	sendDest = make([][]int, numTiles)
	for t := 0; t < numTiles; t++ {
		if contrib[t] == 0 {
			continue
		}
		dest := make([]int, p)
		for i := range dest {
			dest[i] = -1
		}
		if sess.OrderedComposite() {
			orderedAssign(t, p, groups[t], masks, sess.CompositeOrder(), dest)
		} else {
			unorderedAssign(t, p, groups[t], masks, dest)
		}
		sendDest[t] = dest
	}
	return groups, sendDest, nil
}

// Delegate computes the full delegation plan from sess's topology
// options and returns the caller's (sess.Rank()'s) view of it.
func Delegate(sess *state.Session) (*TilePlan, error) {
	groups, sendDest, err := GlobalPlan(sess)
	if err != nil {
		return nil, err
	}

	rank := sess.Rank()
	numTiles := sess.NumTiles()
	display := sess.DisplayNodes()
	plan := &TilePlan{SendDest: make([]int, numTiles), ComposeTile: -1}
	for t := 0; t < numTiles; t++ {
		if sendDest[t] == nil {
			plan.SendDest[t] = -1
			continue
		}
		plan.SendDest[t] = sendDest[t][rank]
	}
	for t, g := range groups {
		if indexOf(g, rank) == -1 {
			continue
		}
		plan.ComposeTile = t
		plan.ComposeGroup = append([]int(nil), g...)
		if sess.OrderedComposite() {
			plan.GroupImageDest = indexOf(g, display[t])
		} else {
			plan.GroupImageDest = 0
		}
	}
	return plan, nil
}

func indexOf(xs []int, v int) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}
