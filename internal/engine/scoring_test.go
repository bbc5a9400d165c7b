package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func players(n int) []*Player {
	out := make([]*Player, n)
	for i := range out {
		out[i] = &Player{ID: fmt.Sprintf("id%d", i+1), Name: fmt.Sprintf("p%d", i+1), Seq: i + 1}
	}
	return out
}

func TestScore(t *testing.T) {
	cases := []struct {
		name        string
		numbers     []float64
		wantAvg     float64
		wantTarget  float64
		wantExact   []string
		wantClosest string
		wantScores  []int
	}{
		{
			name:        "closest wins",
			numbers:     []float64{50, 60, 70, 80},
			wantAvg:     65,
			wantTarget:  52,
			wantClosest: "id1",
			wantScores:  []int{50, 0, 0, 0},
		},
		{
			name:        "far apart pair",
			numbers:     []float64{100, 25},
			wantAvg:     62.5,
			wantTarget:  50,
			wantClosest: "id2",
			wantScores:  []int{0, 50},
		},
		{
			name:        "duplicate guesses tie to earliest joiner",
			numbers:     []float64{40, 60, 40},
			wantAvg:     46.67,
			wantTarget:  37.33,
			wantClosest: "id1",
			wantScores:  []int{50, 0, 0},
		},
		{
			name:       "two exact guessers",
			numbers:    []float64{40, 40, 70},
			wantAvg:    50,
			wantTarget: 40,
			wantExact:  []string{"id1", "id2"},
			wantScores: []int{100, 100, 0},
		},
		{
			name:        "equidistant tie goes to earliest joiner",
			numbers:     []float64{30, 34, 56},
			wantAvg:     40,
			wantTarget:  32,
			wantClosest: "id1",
			wantScores:  []int{50, 0, 0},
		},
		{
			name:        "equidistant tie follows join order not value",
			numbers:     []float64{34, 30, 56},
			wantAvg:     40,
			wantTarget:  32,
			wantClosest: "id1",
			wantScores:  []int{50, 0, 0},
		},
		{
			name:        "single submission",
			numbers:     []float64{1},
			wantAvg:     1,
			wantTarget:  0.8,
			wantClosest: "id1",
			wantScores:  []int{50},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ps := players(len(tc.numbers))
			subs := map[string]float64{}
			for i, n := range tc.numbers {
				subs[ps[i].ID] = n
			}

			res := Score(ps, subs)
			require.NotNil(t, res)
			assert.Equal(t, tc.wantAvg, res.Average)
			assert.Equal(t, tc.wantTarget, res.Target)

			var exact []string
			for _, e := range res.ExactGuessers {
				exact = append(exact, e.ID)
			}
			assert.Equal(t, tc.wantExact, exact)

			if tc.wantClosest == "" {
				assert.Nil(t, res.Closest)
			} else {
				require.NotNil(t, res.Closest)
				assert.Equal(t, tc.wantClosest, res.Closest.ID)
			}

			for i, p := range ps {
				assert.Equal(t, tc.wantScores[i], p.Score, "score of %s", p.ID)
			}
		})
	}
}

func TestScore_NoSubmissions(t *testing.T) {
	assert.Nil(t, Score(players(3), map[string]float64{}))
}

func TestScore_IgnoresUnknownSubmitters(t *testing.T) {
	ps := players(1)
	res := Score(ps, map[string]float64{"id1": 50, "ghost": 1})
	require.NotNil(t, res)
	assert.Equal(t, 40.0, res.Target)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 52.0, Round2(0.8*65))
	assert.Equal(t, 37.33, Round2(0.8*140.0/3))
	assert.Equal(t, 0.13, Round2(0.125))
}
