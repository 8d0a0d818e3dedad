package nn

import "github.com/fumitoshi0524/colordistill/tensor"

type Functional struct {
	fn func(*tensor.Tensor) (*tensor.Tensor, error)
}

func NewFunctional(fn func(*tensor.Tensor) (*tensor.Tensor, error)) *Functional {
	return &Functional{fn: fn}
}

func (f *Functional) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return f.fn(input)
}

func (f *Functional) Parameters() []*tensor.Tensor {
	return nil
}

func (f *Functional) ZeroGrad() {}

func Relu() Module {
	return NewFunctional(func(x *tensor.Tensor) (*tensor.Tensor, error) {
		return tensor.Relu(x), nil
	})
}

// GlobalAvgPool averages [batch, channels, h, w] down to [batch, channels].
func GlobalAvgPool() Module {
	return NewFunctional(func(x *tensor.Tensor) (*tensor.Tensor, error) {
		rows, err := tensor.MeanAxis(x, 3)
		if err != nil {
			return nil, err
		}
		return tensor.MeanAxis(rows, 2)
	})
}
