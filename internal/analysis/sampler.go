package analysis

import "sort"

const (
	// MaxMovesPerGame caps how many player moves are evaluated per game.
	MaxMovesPerGame = 15
	// MovesPerStage is the number of moves taken from each third of a game.
	MovesPerStage = 5
)

// MoveSet is a set of 0-based player-move indices.
type MoveSet map[int]struct{}

// Contains reports whether i is in the set.
func (s MoveSet) Contains(i int) bool {
	_, ok := s[i]
	return ok
}

// Sorted returns the indices in ascending order.
func (s MoveSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Sampler selects which player moves of a game get evaluated. The selection
// depends only on the move count, never on the moves themselves.
type Sampler struct {
	MaxMoves int
	PerStage int
}

// DefaultSampler returns a sampler with the standard limits.
func DefaultSampler() Sampler {
	return Sampler{MaxMoves: MaxMovesPerGame, PerStage: MovesPerStage}
}

// Select returns every index when n fits the cap. Otherwise it takes the first
// PerStage indices of the opening third, the last PerStage of the final third
// and PerStage evenly spaced ones from the middle third, then tops up from the
// remaining indices until MaxMoves are chosen.
func (s Sampler) Select(n int) MoveSet {
	maxMoves, perStage := s.MaxMoves, s.PerStage
	if maxMoves <= 0 {
		maxMoves = MaxMovesPerGame
	}
	if perStage <= 0 {
		perStage = MovesPerStage
	}

	set := make(MoveSet)
	if n <= 0 {
		return set
	}
	if n <= maxMoves {
		for i := 0; i < n; i++ {
			set[i] = struct{}{}
		}
		return set
	}

	firstEnd := n / 3
	lastStart := 2 * n / 3

	for i := 0; i < min(perStage, firstEnd); i++ {
		set[i] = struct{}{}
	}
	for i := max(lastStart, n-perStage); i < n; i++ {
		set[i] = struct{}{}
	}

	middle := lastStart - firstEnd
	if middle <= perStage {
		for i := firstEnd; i < lastStart; i++ {
			set[i] = struct{}{}
		}
	} else {
		step := float64(middle) / float64(perStage)
		for k := 0; k < perStage; k++ {
			set[firstEnd+int(float64(k)*step)] = struct{}{}
		}
	}

	for len(set) > maxMoves {
		// Only reachable when PerStage*3 exceeds MaxMoves: drop from the middle out.
		idx := set.Sorted()
		delete(set, idx[len(idx)/2])
	}

	if need := maxMoves - len(set); need > 0 {
		var remaining []int
		for i := 0; i < n; i++ {
			if !set.Contains(i) {
				remaining = append(remaining, i)
			}
		}
		if need >= len(remaining) {
			for _, i := range remaining {
				set[i] = struct{}{}
			}
		} else {
			for k := 0; k < need; k++ {
				set[remaining[k*len(remaining)/need]] = struct{}{}
			}
		}
	}

	return set
}
