package tensor

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// GradPowSum returns sum(|g|^norm) over the stored gradient.
func (t *Tensor) GradPowSum(norm float64) float64 {
	if t == nil || t.grad == nil {
		return 0
	}
	return math.Pow(floats.Norm(t.grad.data, norm), norm)
}

func (t *Tensor) ScaleGrad(factor float64) {
	if t == nil || t.grad == nil {
		return
	}
	t.grad.Scale(factor)
}
