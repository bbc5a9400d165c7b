package engine

import "math"

// PlayerRef names a player inside a round result.
type PlayerRef struct {
	ID   string
	Name string
}

type RoundResult struct {
	Average       float64
	Target        float64
	ExactGuessers []PlayerRef
	Closest       *PlayerRef // nil when anyone hit the target exactly
	ClosestDiff   float64
	Eliminated    []Standing
}

// Score computes the round target from the submissions and awards points.
// players must be in join order: ties for closest go to the earliest joiner.
// Submissions from ids not in players are ignored. Returns nil when nothing
// was submitted.
func Score(players []*Player, submissions map[string]float64) *RoundResult {
	var entrants []*Player
	sum := 0.0
	for _, p := range players {
		if n, ok := submissions[p.ID]; ok {
			entrants = append(entrants, p)
			sum += n
		}
	}
	if len(entrants) == 0 {
		return nil
	}

	avg := sum / float64(len(entrants))
	res := &RoundResult{
		Average: Round2(avg),
		Target:  Round2(0.8 * avg),
	}

	for _, p := range entrants {
		if submissions[p.ID] == res.Target {
			p.Score += ExactPoints
			res.ExactGuessers = append(res.ExactGuessers, PlayerRef{ID: p.ID, Name: p.Name})
		}
	}
	if len(res.ExactGuessers) > 0 {
		return res
	}

	closest := entrants[0]
	diff := math.Abs(submissions[closest.ID] - res.Target)
	for _, p := range entrants[1:] {
		if d := math.Abs(submissions[p.ID] - res.Target); d < diff {
			closest, diff = p, d
		}
	}
	closest.Score += ClosestPoints
	res.Closest = &PlayerRef{ID: closest.ID, Name: closest.Name}
	res.ClosestDiff = Round2(diff)
	return res
}

// Round2 rounds half away from zero to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
