package tensor

import (
	"errors"

	"github.com/fumitoshi0524/colordistill/internal/parallel"
)

// Max reduces along axis, removing it. The gradient is routed to the
// position that won each reduction.
func Max(a *Tensor, axis int) (*Tensor, error) {
	return reduceMaxMin(a, axis, true)
}

func Min(a *Tensor, axis int) (*Tensor, error) {
	return reduceMaxMin(a, axis, false)
}

func reduceMaxMin(a *Tensor, axis int, isMax bool) (*Tensor, error) {
	if len(a.shape) == 0 {
		return nil, errors.New("reduction requires rank >= 1 tensor")
	}
	axis, err := normalizeAxis(axis, len(a.shape))
	if err != nil {
		return nil, err
	}
	outer, inner := splitAround(a.shape, axis)
	axisSize := a.shape[axis]
	out := Zeros(dropAxis(a.shape, axis)...)
	indices := make([]int, len(out.data))
	parallel.For(outer, func(start, end int) {
		for o := start; o < end; o++ {
			dstBase := o * inner
			srcBase := o * axisSize * inner
			for in := 0; in < inner; in++ {
				bestIdx := 0
				bestVal := a.data[srcBase+in]
				for k := 1; k < axisSize; k++ {
					candidate := a.data[srcBase+k*inner+in]
					if (isMax && candidate > bestVal) || (!isMax && candidate < bestVal) {
						bestVal = candidate
						bestIdx = k
					}
				}
				out.data[dstBase+in] = bestVal
				indices[dstBase+in] = bestIdx
			}
		}
	})
	if !tracks(a) {
		return out, nil
	}
	attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		g := Zeros(a.shape...)
		for idx, k := range indices {
			o, in := idx/inner, idx%inner
			g.data[o*axisSize*inner+k*inner+in] += grad.data[idx]
		}
		accumulate(grads, a, g)
	}, a)
	return out, nil
}

// ArgMax returns, for every position outside axis, the index of the largest
// element along axis. Ties resolve to the lowest index. The result is laid out
// in the shape of a with axis removed.
func ArgMax(a *Tensor, axis int) ([]int, error) {
	axis, err := normalizeAxis(axis, len(a.shape))
	if err != nil {
		return nil, err
	}
	outer, inner := splitAround(a.shape, axis)
	axisSize := a.shape[axis]
	indices := make([]int, outer*inner)
	parallel.For(outer, func(start, end int) {
		for o := start; o < end; o++ {
			srcBase := o * axisSize * inner
			for in := 0; in < inner; in++ {
				best := 0
				bestVal := a.data[srcBase+in]
				for k := 1; k < axisSize; k++ {
					if v := a.data[srcBase+k*inner+in]; v > bestVal {
						bestVal = v
						best = k
					}
				}
				indices[o*inner+in] = best
			}
		}
	})
	return indices, nil
}

// SumAxis sums elements along the given axis and returns a tensor with that
// axis removed.
func SumAxis(a *Tensor, axis int) (*Tensor, error) {
	if len(a.shape) == 0 {
		return nil, errors.New("reduction requires rank >= 1 tensor")
	}
	axis, err := normalizeAxis(axis, len(a.shape))
	if err != nil {
		return nil, err
	}
	reduced := reduceAxis(a, axis)
	out := wrap(reduced.data, dropAxis(a.shape, axis))
	if !tracks(a) {
		return out, nil
	}
	keptShape := reduced.shape
	attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		expanded, err := BroadcastTo(wrap(grad.Data(), keptShape), a.shape)
		if err != nil {
			panic(err)
		}
		accumulate(grads, a, expanded)
	}, a)
	return out, nil
}

// SumAxes sums over every listed axis while keeping each as a size-1
// dimension, so the result broadcasts back against a.
func SumAxes(a *Tensor, axes ...int) (*Tensor, error) {
	shape := a.Shape()
	out := a
	for _, axis := range axes {
		ax, err := normalizeAxis(axis, len(shape))
		if err != nil {
			return nil, err
		}
		if out, err = SumAxis(out, ax); err != nil {
			return nil, err
		}
		if out, err = Unsqueeze(out, ax); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MeanAxis computes the mean along the given axis and returns a tensor with
// that axis removed.
func MeanAxis(a *Tensor, axis int) (*Tensor, error) {
	axis, err := normalizeAxis(axis, len(a.shape))
	if err != nil {
		return nil, err
	}
	s, err := SumAxis(a, axis)
	if err != nil {
		return nil, err
	}
	return MulScalar(s, 1.0/float64(a.shape[axis])), nil
}

func dropAxis(shape []int, axis int) []int {
	out := make([]int, 0, len(shape)-1)
	for i, dim := range shape {
		if i != axis {
			out = append(out, dim)
		}
	}
	if len(out) == 0 {
		out = []int{1}
	}
	return out
}
