package tensor

import (
	"math"

	"github.com/fumitoshi0524/colordistill/internal/parallel"
)

// LogSoftmax normalizes along axis in log space.
func LogSoftmax(a *Tensor, axis int) (*Tensor, error) {
	axis, err := normalizeAxis(axis, len(a.shape))
	if err != nil {
		return nil, err
	}
	outer, inner := splitAround(a.shape, axis)
	size := a.shape[axis]
	out := Zeros(a.shape...)
	parallel.For(outer*inner, func(start, end int) {
		for lane := start; lane < end; lane++ {
			base := (lane/inner)*size*inner + lane%inner
			maxVal := a.data[base]
			for k := 1; k < size; k++ {
				maxVal = math.Max(maxVal, a.data[base+k*inner])
			}
			sum := 0.0
			for k := 0; k < size; k++ {
				sum += math.Exp(a.data[base+k*inner] - maxVal)
			}
			logSum := maxVal + math.Log(sum)
			for k := 0; k < size; k++ {
				out.data[base+k*inner] = a.data[base+k*inner] - logSum
			}
		}
	})
	if tracks(a) {
		attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			gx := Zeros(a.shape...)
			parallel.For(outer*inner, func(start, end int) {
				for lane := start; lane < end; lane++ {
					base := (lane/inner)*size*inner + lane%inner
					sumGrad := 0.0
					for k := 0; k < size; k++ {
						sumGrad += grad.data[base+k*inner]
					}
					for k := 0; k < size; k++ {
						idx := base + k*inner
						gx.data[idx] = grad.data[idx] - math.Exp(out.data[idx])*sumGrad
					}
				}
			})
			accumulate(grads, a, gx)
		}, a)
	}
	return out, nil
}

// Softmax normalizes along axis so every lane sums to one.
func Softmax(a *Tensor, axis int) (*Tensor, error) {
	logsm, err := LogSoftmax(a, axis)
	if err != nil {
		return nil, err
	}
	return Exp(logsm), nil
}
