package optim

import (
	"math"

	"github.com/fumitoshi0524/colordistill/tensor"
)

// Optimizer updates a fixed parameter set from its accumulated gradients.
// Schedulers drive the learning rate through LR and SetLR.
type Optimizer interface {
	ZeroGrad()
	Step() error
	LR() float64
	SetLR(lr float64)
}

func zeroGrads(params []*tensor.Tensor) {
	for _, p := range params {
		if p != nil {
			p.ZeroGrad()
		}
	}
}

// clipGrads rescales the gradients of params so their joint p-norm is at most
// maxNorm and reports the norm seen before rescaling. p <= 0 means 2.
func clipGrads(params []*tensor.Tensor, maxNorm, p float64) float64 {
	if p <= 0 {
		p = 2
	}
	acc := 0.0
	for _, t := range params {
		acc += t.GradPowSum(p)
	}
	norm := math.Pow(acc, 1/p)
	if maxNorm > 0 && norm > maxNorm {
		for _, t := range params {
			t.ScaleGrad(maxNorm / norm)
		}
	}
	return norm
}
