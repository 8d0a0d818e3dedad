package metrics

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/fumitoshi0524/colordistill/tensor"
)

// EpochStats accumulates loss and accuracy over one pass of a loader.
type EpochStats struct {
	lossSum float64
	batches int
	correct int
	miss    int
	start   time.Time
}

// NewEpochStats starts the epoch clock.
func NewEpochStats() *EpochStats {
	return &EpochStats{start: time.Now()}
}

// Record adds one batch worth of results.
func (s *EpochStats) Record(loss float64, correct, total int) {
	s.lossSum += loss
	s.batches++
	s.correct += correct
	s.miss += total - correct
}

// Summarize returns the running totals. The stats keep accumulating.
func (s *EpochStats) Summarize() Summary {
	sum := Summary{
		LossSum: s.lossSum,
		Batches: s.batches,
		Correct: s.correct,
		Miss:    s.miss,
		Elapsed: time.Since(s.start),
	}
	if seen := s.correct + s.miss; seen > 0 {
		sum.Accuracy = float64(s.correct) / float64(seen)
	}
	return sum
}

// Summary is a loggable view of EpochStats.
type Summary struct {
	LossSum  float64
	Batches  int
	Correct  int
	Miss     int
	Accuracy float64
	Elapsed  time.Duration
}

// MeanLoss divides the loss sum by n batches.
func (s Summary) MeanLoss(n int) float64 {
	return s.LossSum / float64(n)
}

// CorrectCount returns how many rows of logits [batch, classes] have their
// largest value at the label's index.
func CorrectCount(logits *tensor.Tensor, labels []int) int {
	classes := logits.Dim(-1)
	data := logits.Data()
	correct := 0
	for i, label := range labels {
		if floats.MaxIdx(data[i*classes:(i+1)*classes]) == label {
			correct++
		}
	}
	return correct
}
