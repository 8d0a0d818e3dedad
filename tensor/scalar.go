package tensor

import "gonum.org/v1/gonum/floats"

func AddScalar(a *Tensor, value float64) *Tensor {
	out := a.Clone()
	floats.AddConst(value, out.data)
	if tracks(a) {
		attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			accumulate(grads, a, grad)
		}, a)
	}
	return out
}

func MulScalar(a *Tensor, value float64) *Tensor {
	out := a.Clone()
	floats.Scale(value, out.data)
	if tracks(a) {
		attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			scaled := grad.Clone()
			scaled.Scale(value)
			accumulate(grads, a, scaled)
		}, a)
	}
	return out
}
