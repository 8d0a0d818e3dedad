package tensor

import (
	"math"

	"github.com/fumitoshi0524/colordistill/internal/parallel"
)

// Add, Sub, Mul and Div broadcast their operands to a common shape before
// applying the elementwise kernel.

func Add(a, b *Tensor) (*Tensor, error) {
	return binary(a, b, func(x, y float64) float64 { return x + y },
		func(grad, left, right *Tensor) (*Tensor, *Tensor) {
			return grad, grad
		})
}

func Sub(a, b *Tensor) (*Tensor, error) {
	return binary(a, b, func(x, y float64) float64 { return x - y },
		func(grad, left, right *Tensor) (*Tensor, *Tensor) {
			return grad, mapped(grad, func(v float64) float64 { return -v })
		})
}

func Mul(a, b *Tensor) (*Tensor, error) {
	return binary(a, b, func(x, y float64) float64 { return x * y },
		func(grad, left, right *Tensor) (*Tensor, *Tensor) {
			return hadamard(grad, right), hadamard(grad, left)
		})
}

func Div(a, b *Tensor) (*Tensor, error) {
	return binary(a, b, func(x, y float64) float64 { return x / y },
		func(grad, left, right *Tensor) (*Tensor, *Tensor) {
			gl := Zeros(grad.shape...)
			gr := Zeros(grad.shape...)
			parallel.For(len(grad.data), func(start, end int) {
				for i := start; i < end; i++ {
					r := right.data[i]
					gl.data[i] = grad.data[i] / r
					gr.data[i] = -grad.data[i] * left.data[i] / (r * r)
				}
			})
			return gl, gr
		})
}

// binary evaluates fn over the broadcast operands. backward receives the
// upstream gradient and the broadcast operands and returns the gradients for
// the left and right side, still in the broadcast shape.
func binary(a, b *Tensor, fn func(x, y float64) float64, backward func(grad, left, right *Tensor) (*Tensor, *Tensor)) (*Tensor, error) {
	shape, err := BroadcastShapes(a.shape, b.shape)
	if err != nil {
		return nil, err
	}
	left, err := BroadcastTo(a, shape)
	if err != nil {
		return nil, err
	}
	right, err := BroadcastTo(b, shape)
	if err != nil {
		return nil, err
	}
	out := Zeros(shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = fn(left.data[i], right.data[i])
		}
	})
	if tracks(left, right) {
		attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			gl, gr := backward(grad, left, right)
			if left.requiresGrad {
				accumulate(grads, left, gl)
			}
			if right.requiresGrad {
				accumulate(grads, right, gr)
			}
		}, left, right)
	}
	return out, nil
}

// unary applies fn elementwise; deriv maps (input, output) to the local derivative.
func unary(a *Tensor, fn func(x float64) float64, deriv func(x, y float64) float64) *Tensor {
	out := mapped(a, fn)
	if tracks(a) {
		attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			g := Zeros(a.shape...)
			parallel.For(len(g.data), func(start, end int) {
				for i := start; i < end; i++ {
					g.data[i] = grad.data[i] * deriv(a.data[i], out.data[i])
				}
			})
			accumulate(grads, a, g)
		}, a)
	}
	return out
}

func Pow(a *Tensor, value float64) *Tensor {
	return unary(a,
		func(x float64) float64 { return math.Pow(x, value) },
		func(x, _ float64) float64 { return value * math.Pow(x, value-1) })
}

func Exp(a *Tensor) *Tensor {
	return unary(a, math.Exp, func(_, y float64) float64 { return y })
}

func Log(a *Tensor) *Tensor {
	return unary(a, math.Log, func(x, _ float64) float64 { return 1 / x })
}

func Relu(a *Tensor) *Tensor {
	return unary(a,
		func(x float64) float64 { return math.Max(x, 0) },
		func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		})
}

func Sum(a *Tensor) *Tensor {
	out := MustNew([]float64{sumOf(a.data)}, 1)
	if tracks(a) {
		attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			accumulate(grads, a, Full(grad.data[0], a.shape...))
		}, a)
	}
	return out
}

func Mean(a *Tensor) *Tensor {
	scale := 1.0 / float64(a.Numel())
	out := MustNew([]float64{sumOf(a.data) * scale}, 1)
	if tracks(a) {
		attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			accumulate(grads, a, Full(grad.data[0]*scale, a.shape...))
		}, a)
	}
	return out
}

func mapped(a *Tensor, fn func(float64) float64) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = fn(a.data[i])
		}
	})
	return out
}

func hadamard(a, b *Tensor) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] * b.data[i]
		}
	})
	return out
}
