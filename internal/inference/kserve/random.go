package kserve

import (
	"context"
	"math/rand/v2"
	"sync"
)

// RandomPredictor returns three prediction vectors that are either all low
// or all high, with equal odds. Used to exercise actuation without a model.
type RandomPredictor struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPredictor returns a RandomPredictor seeded with seed.
func NewRandomPredictor(seed uint64) *RandomPredictor {
	return &RandomPredictor{rng: rand.New(rand.NewPCG(seed, seed+1))}
}

// Predict ignores the batch.
func (p *RandomPredictor) Predict(_ context.Context, _ [][][]float64) ([][]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	low := p.rng.Float64() < 0.5
	predictions := make([][]float64, 3)
	for i := range predictions {
		row := make([]float64, 3)
		for j := range row {
			if low {
				row[j] = p.rng.Float64() * 0.039
			} else {
				row[j] = 0.4 + p.rng.Float64()*0.6
			}
		}
		predictions[i] = row
	}
	return predictions, nil
}
