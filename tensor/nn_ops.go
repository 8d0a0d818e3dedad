package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// AddBias2D adds a per-column bias to a [rows, cols] tensor.
func AddBias2D(a, bias *Tensor) (*Tensor, error) {
	if len(a.shape) != 2 || len(bias.shape) != 1 || a.shape[1] != bias.shape[0] {
		return nil, fmt.Errorf("AddBias2D expects [rows, cols] and [cols], got %v and %v", a.shape, bias.shape)
	}
	rows, cols := a.shape[0], a.shape[1]
	out := a.Clone()
	for i := 0; i < rows; i++ {
		floats.Add(out.data[i*cols:(i+1)*cols], bias.data)
	}
	if tracks(a, bias) {
		attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			if a.requiresGrad {
				accumulate(grads, a, grad)
			}
			if bias.requiresGrad {
				agg := Zeros(cols)
				for i := 0; i < rows; i++ {
					floats.Add(agg.data, grad.data[i*cols:(i+1)*cols])
				}
				accumulate(grads, bias, agg)
			}
		}, a, bias)
	}
	return out, nil
}
