package data

import (
	"math/rand"
)

type LoaderConfig struct {
	BatchSize int
	Shuffle   bool
	Seed      int64
}

// Loader iterates over a dataset in fixed-size batches. The final batch may
// be short. Each Iterate call starts a fresh pass and reshuffles if enabled.
type Loader struct {
	ds        *InMemory
	batchSize int
	shuffle   bool
	rng       *rand.Rand
}

func NewLoader(ds *InMemory, cfg LoaderConfig) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &Loader{
		ds:        ds,
		batchSize: cfg.BatchSize,
		shuffle:   cfg.Shuffle,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Len returns the number of batches in one pass.
func (l *Loader) Len() int {
	n := l.ds.Count()
	return (n + l.batchSize - 1) / l.batchSize
}

// Dataset returns the underlying dataset.
func (l *Loader) Dataset() *InMemory {
	return l.ds
}

// Iterate calls fn for every batch in order and stops at the first error.
func (l *Loader) Iterate(fn func(batchIdx int, b Batch) error) error {
	n := l.ds.Count()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if l.shuffle {
		l.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	for batchIdx, start := 0, 0; start < n; batchIdx, start = batchIdx+1, start+l.batchSize {
		end := start + l.batchSize
		if end > n {
			end = n
		}
		if err := fn(batchIdx, l.ds.Gather(order[start:end])); err != nil {
			return err
		}
	}
	return nil
}
