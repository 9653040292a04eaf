package main

import (
	"math"
	"math/rand"
)

type sample struct {
	PH        float64 `json:"ph"`
	Turbidity float64 `json:"turbidity"`
	FlowRate  float64 `json:"flow_rate"`
}

// generator produces plausible readings around a healthy baseline, with a
// configurable share of contaminated ones.
type generator struct {
	rng          *rand.Rand
	unstableProb float64
	baseFlow     float64
}

func newGenerator(seed int64, unstableProb float64) *generator {
	return &generator{
		rng:          rand.New(rand.NewSource(seed)),
		unstableProb: unstableProb,
		baseFlow:     12.0,
	}
}

func (g *generator) next() (sample, bool) {
	s := sample{
		PH:        7.0 + g.rng.Float64()*1.0 - 0.4,
		Turbidity: 0.5 + g.rng.Float64()*3.5,
		FlowRate:  g.baseFlow + g.rng.Float64()*4.0 - 2.0,
	}
	unstable := g.rng.Float64() < g.unstableProb
	if unstable {
		switch g.rng.Intn(3) {
		case 0:
			s.PH = 4.5 + g.rng.Float64()*1.9
		case 1:
			s.Turbidity = 5.5 + g.rng.Float64()*20
		default:
			s.PH = 5.0 + g.rng.Float64()*1.4
			s.Turbidity = 6.0 + g.rng.Float64()*10
		}
	}
	s.PH = round2(s.PH)
	s.Turbidity = round2(s.Turbidity)
	s.FlowRate = round2(s.FlowRate)
	return s, unstable
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
