package optim

import "github.com/fumitoshi0524/colordistill/tensor"

type SGD struct {
	params       []*tensor.Tensor
	lr           float64
	momentum     float64
	weightDecay  float64
	nesterov     bool
	velocity     map[*tensor.Tensor]*tensor.Tensor
	maxGradNorm  float64
	gradNormType float64
}

type SGDConfig struct {
	LR           float64
	Momentum     float64
	WeightDecay  float64
	Nesterov     bool
	MaxGradNorm  float64
	GradNormType float64
}

func NewSGD(params []*tensor.Tensor, lr float64, momentum float64) *SGD {
	return NewSGDWithConfig(params, SGDConfig{LR: lr, Momentum: momentum})
}

func NewSGDWithConfig(params []*tensor.Tensor, cfg SGDConfig) *SGD {
	return &SGD{
		params:       params,
		lr:           cfg.LR,
		momentum:     cfg.Momentum,
		weightDecay:  cfg.WeightDecay,
		nesterov:     cfg.Nesterov,
		velocity:     make(map[*tensor.Tensor]*tensor.Tensor),
		maxGradNorm:  cfg.MaxGradNorm,
		gradNormType: cfg.GradNormType,
	}
}

func (o *SGD) Step() error {
	if o.maxGradNorm > 0 {
		clipGrads(o.params, o.maxGradNorm, o.gradNormType)
	}
	for _, p := range o.params {
		if p == nil {
			continue
		}
		update := p.Grad()
		if update == nil {
			continue
		}
		if o.weightDecay > 0 {
			if err := update.AddScaled(p.Detach(), o.weightDecay); err != nil {
				return err
			}
		}
		if o.momentum > 0 {
			v := o.velocity[p]
			if v == nil {
				v = tensor.Zeros(update.Shape()...)
				o.velocity[p] = v
			}
			v.Scale(o.momentum)
			if err := v.AddScaled(update, 1.0); err != nil {
				return err
			}
			if o.nesterov {
				if err := update.AddScaled(v, o.momentum); err != nil {
					return err
				}
			} else {
				update = v.Clone()
			}
		}
		if err := p.AddScaled(update, -o.lr); err != nil {
			return err
		}
	}
	return nil
}

func (o *SGD) LR() float64 {
	return o.lr
}

func (o *SGD) SetLR(lr float64) {
	o.lr = lr
}

func (o *SGD) ZeroGrad() {
	zeroGrads(o.params)
}
