package services

import (
	"math"
	"math/rand/v2"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/pkg/config"
)

// TrendGenerator projects a short hourly series around a prediction. The
// series is a random walk floored at a minimum, seeded from the configured
// seed and the prediction so the same input always renders the same chart.
type TrendGenerator struct {
	hours int
	floor float64
	noise float64
	seed  uint64
}

// NewTrendGenerator creates a generator from prediction configuration
func NewTrendGenerator(cfg config.PredictionConfig) *TrendGenerator {
	return &TrendGenerator{
		hours: cfg.TrendHours,
		floor: cfg.TrendFloor,
		noise: cfg.TrendNoise,
		seed:  cfg.TrendSeed,
	}
}

// Project returns hours points of max(floor, base + cumulative N(0, noise))
func (g *TrendGenerator) Project(base float64) []entities.TrendPoint {
	r := rand.New(rand.NewPCG(g.seed, math.Float64bits(base)))

	points := make([]entities.TrendPoint, g.hours)
	walk := 0.0
	for i := range points {
		walk += r.NormFloat64() * g.noise
		points[i] = entities.TrendPoint{Hour: i, Value: math.Max(g.floor, base+walk)}
	}
	return points
}

// WithScale returns a copy of the generator using a different floor and noise
func (g *TrendGenerator) WithScale(floor, noise float64) *TrendGenerator {
	c := *g
	c.floor = floor
	c.noise = noise
	return &c
}
