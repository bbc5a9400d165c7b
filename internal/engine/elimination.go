package engine

import "slices"

// EliminationInterval is the number of rounds between eliminations for a
// lobby of total players, eliminated ones included.
func EliminationInterval(total int) int {
	return max(MinEliminationInterval, total/2)
}

// SelectEliminations marks the lowest scoring quarter of the active players
// as eliminated (at least one, never all) and returns them lowest first.
// Equal scores are broken by join order, earliest joiner first.
func SelectEliminations(players []*Player) []*Player {
	var active []*Player
	for _, p := range players {
		if !p.Eliminated {
			active = append(active, p)
		}
	}
	if len(active) <= 1 {
		return nil
	}

	slices.SortStableFunc(active, func(a, b *Player) int {
		if a.Score != b.Score {
			return a.Score - b.Score
		}
		return a.Seq - b.Seq
	})

	count := len(active) / 4
	if count < 1 {
		count = 1
	}
	if len(active)-count < 1 {
		count = len(active) - 1
	}

	out := active[:count]
	for _, p := range out {
		p.Eliminated = true
		p.Ready = false
	}
	return out
}
