package optim

import (
	"fmt"
	"math"
)

// Scheduler adjusts an optimizer's learning rate as training progresses.
//
// Advance is called once per optimizer step with the fractional epoch
// position (epoch-1 + batch/len). Schedulers that count steps ignore it.
type Scheduler interface {
	Advance(epochFraction float64)
	LR() float64
}

// CosineWarmRestarts anneals the learning rate from its initial value down to
// EtaMin along a cosine, restarting every period. The first period lasts T0
// epochs and every following one is TMult times longer.
type CosineWarmRestarts struct {
	opt    Optimizer
	baseLR float64
	t0     float64
	tMult  int
	etaMin float64
}

type CosineWarmRestartsConfig struct {
	T0     int
	TMult  int
	EtaMin float64
}

func NewCosineWarmRestarts(opt Optimizer, cfg CosineWarmRestartsConfig) (*CosineWarmRestarts, error) {
	if cfg.T0 < 1 {
		return nil, fmt.Errorf("cosine warm restarts: T0 must be >= 1, got %d", cfg.T0)
	}
	if cfg.TMult == 0 {
		cfg.TMult = 1
	}
	if cfg.TMult < 1 {
		return nil, fmt.Errorf("cosine warm restarts: TMult must be >= 1, got %d", cfg.TMult)
	}
	return &CosineWarmRestarts{
		opt:    opt,
		baseLR: opt.LR(),
		t0:     float64(cfg.T0),
		tMult:  cfg.TMult,
		etaMin: cfg.EtaMin,
	}, nil
}

func (s *CosineWarmRestarts) Advance(epochFraction float64) {
	if epochFraction < 0 {
		epochFraction = 0
	}
	tCur, tI := s.position(epochFraction)
	s.opt.SetLR(s.etaMin + (s.baseLR-s.etaMin)*(1+math.Cos(math.Pi*tCur/tI))/2)
}

// position locates epoch inside its restart period, returning the offset into
// the period and the period length.
func (s *CosineWarmRestarts) position(epoch float64) (float64, float64) {
	if epoch < s.t0 {
		return epoch, s.t0
	}
	if s.tMult == 1 {
		return math.Mod(epoch, s.t0), s.t0
	}
	mult := float64(s.tMult)
	n := math.Floor(math.Log(epoch/s.t0*(mult-1)+1) / math.Log(mult))
	start := s.t0 * (math.Pow(mult, n) - 1) / (mult - 1)
	return epoch - start, s.t0 * math.Pow(mult, n)
}

func (s *CosineWarmRestarts) LR() float64 {
	return s.opt.LR()
}

// OneCycle warms the learning rate up from MaxLR/DivFactor to MaxLR over the
// first PctStart of TotalSteps, then anneals it down to
// MaxLR/(DivFactor*FinalDivFactor). Both phases follow a cosine.
type OneCycle struct {
	opt        Optimizer
	initialLR  float64
	maxLR      float64
	minLR      float64
	warmupEnd  float64
	totalSteps int
	step       int
}

type OneCycleConfig struct {
	MaxLR          float64
	TotalSteps     int
	PctStart       float64
	DivFactor      float64
	FinalDivFactor float64
}

func NewOneCycle(opt Optimizer, cfg OneCycleConfig) (*OneCycle, error) {
	if cfg.TotalSteps < 2 {
		return nil, fmt.Errorf("one cycle: total steps must be >= 2, got %d", cfg.TotalSteps)
	}
	if cfg.MaxLR <= 0 {
		return nil, fmt.Errorf("one cycle: max lr must be positive, got %v", cfg.MaxLR)
	}
	if cfg.PctStart == 0 {
		cfg.PctStart = 0.3
	}
	if cfg.PctStart < 0 || cfg.PctStart >= 1 {
		return nil, fmt.Errorf("one cycle: pct start must be in (0, 1), got %v", cfg.PctStart)
	}
	if cfg.DivFactor == 0 {
		cfg.DivFactor = 25
	}
	if cfg.FinalDivFactor == 0 {
		cfg.FinalDivFactor = 1e4
	}
	initial := cfg.MaxLR / cfg.DivFactor
	s := &OneCycle{
		opt:        opt,
		initialLR:  initial,
		maxLR:      cfg.MaxLR,
		minLR:      initial / cfg.FinalDivFactor,
		warmupEnd:  cfg.PctStart*float64(cfg.TotalSteps) - 1,
		totalSteps: cfg.TotalSteps,
	}
	opt.SetLR(initial)
	return s, nil
}

// Advance moves one step along the cycle. The epoch position is not used.
// Steps past the end of the cycle hold the final learning rate.
func (s *OneCycle) Advance(float64) {
	if s.step < s.totalSteps-1 {
		s.step++
	}
	s.opt.SetLR(s.at(float64(s.step)))
}

func (s *OneCycle) at(step float64) float64 {
	if step <= s.warmupEnd {
		return cosineAnneal(s.initialLR, s.maxLR, step/s.warmupEnd)
	}
	end := float64(s.totalSteps - 1)
	return cosineAnneal(s.maxLR, s.minLR, (step-s.warmupEnd)/(end-s.warmupEnd))
}

func (s *OneCycle) LR() float64 {
	return s.opt.LR()
}

func cosineAnneal(start, end, pct float64) float64 {
	return end + (start-end)/2*(1+math.Cos(math.Pi*pct))
}
