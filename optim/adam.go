package optim

import (
	"math"

	"github.com/fumitoshi0524/colordistill/tensor"
)

// Adam implements Adam. A non-zero WeightDecay is applied decoupled from the
// moment estimates, as in AdamW.
type Adam struct {
	params      []*tensor.Tensor
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64
	maxGradNorm float64
	m           map[*tensor.Tensor]*tensor.Tensor
	v           map[*tensor.Tensor]*tensor.Tensor
	step        int
}

type AdamConfig struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64
	MaxGradNorm float64 // joint L2 norm cap applied before the moment update
}

func NewAdam(params []*tensor.Tensor, lr, beta1, beta2, eps float64) *Adam {
	return NewAdamWithConfig(params, AdamConfig{LR: lr, Beta1: beta1, Beta2: beta2, Eps: eps})
}

func NewAdamWithConfig(params []*tensor.Tensor, cfg AdamConfig) *Adam {
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Eps == 0 {
		cfg.Eps = 1e-8
	}
	return &Adam{
		params:      params,
		lr:          cfg.LR,
		beta1:       cfg.Beta1,
		beta2:       cfg.Beta2,
		eps:         cfg.Eps,
		weightDecay: cfg.WeightDecay,
		maxGradNorm: cfg.MaxGradNorm,
		m:           map[*tensor.Tensor]*tensor.Tensor{},
		v:           map[*tensor.Tensor]*tensor.Tensor{},
	}
}

func (o *Adam) Step() error {
	o.step++
	if o.maxGradNorm > 0 {
		clipGrads(o.params, o.maxGradNorm, 2)
	}
	biasCorr1 := 1 - math.Pow(o.beta1, float64(o.step))
	biasCorr2 := 1 - math.Pow(o.beta2, float64(o.step))
	for _, p := range o.params {
		if p == nil {
			continue
		}
		grad := p.Grad()
		if grad == nil {
			continue
		}
		shape := grad.Shape()
		m := o.m[p]
		if m == nil {
			m = tensor.Zeros(shape...)
			o.m[p] = m
		}
		v := o.v[p]
		if v == nil {
			v = tensor.Zeros(shape...)
			o.v[p] = v
		}
		m.Scale(o.beta1)
		if err := m.AddScaled(grad, 1-o.beta1); err != nil {
			return err
		}
		gradSquared := grad.Clone()
		if err := gradSquared.MulInPlace(grad); err != nil {
			return err
		}
		v.Scale(o.beta2)
		if err := v.AddScaled(gradSquared, 1-o.beta2); err != nil {
			return err
		}
		if o.weightDecay > 0 {
			p.Scale(1 - o.lr*o.weightDecay)
		}
		mHat := tensor.MulScalar(m, 1/biasCorr1)
		denom := tensor.AddScalar(tensor.Pow(tensor.MulScalar(v, 1/biasCorr2), 0.5), o.eps)
		update, err := tensor.Div(mHat, denom)
		if err != nil {
			return err
		}
		if err := p.AddScaled(update, -o.lr); err != nil {
			return err
		}
	}
	return nil
}

func (o *Adam) LR() float64 {
	return o.lr
}

func (o *Adam) SetLR(lr float64) {
	o.lr = lr
}

func (o *Adam) ZeroGrad() {
	zeroGrads(o.params)
}
