package tensor

import (
	"gonum.org/v1/gonum/floats"
)

func (t *Tensor) Scale(v float64) {
	floats.Scale(v, t.data)
}

func (t *Tensor) AddScaled(other *Tensor, alpha float64) error {
	if !sameShape(t.shape, other.shape) {
		return errShapeMismatch(t, other)
	}
	floats.AddScaled(t.data, alpha, other.data)
	return nil
}

func (t *Tensor) MulInPlace(other *Tensor) error {
	if !sameShape(t.shape, other.shape) {
		return errShapeMismatch(t, other)
	}
	floats.Mul(t.data, other.data)
	return nil
}

func sumOf(values []float64) float64 {
	return floats.Sum(values)
}
