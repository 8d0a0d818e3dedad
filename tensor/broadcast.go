package tensor

import (
	"fmt"

	"github.com/fumitoshi0524/colordistill/internal/parallel"
)

// BroadcastShapes returns the shape two operands broadcast to, following the
// usual trailing-axis alignment rules.
func BroadcastShapes(a, b []int) ([]int, error) {
	rank := len(a)
	if len(b) > rank {
		rank = len(b)
	}
	out := make([]int, rank)
	for i := 0; i < rank; i++ {
		da, db := 1, 1
		if j := len(a) - rank + i; j >= 0 {
			da = a[j]
		}
		if j := len(b) - rank + i; j >= 0 {
			db = b[j]
		}
		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		default:
			return nil, fmt.Errorf("shape mismatch: cannot broadcast %v with %v", a, b)
		}
	}
	return out, nil
}

// BroadcastTo materializes t expanded to targetShape. The gradient is summed
// back over the broadcast axes.
func BroadcastTo(t *Tensor, targetShape []int) (*Tensor, error) {
	if sameShape(t.shape, targetShape) {
		return t, nil
	}
	srcShape := t.shape
	srcRank := len(srcShape)
	tgtRank := len(targetShape)
	if tgtRank < srcRank {
		return nil, fmt.Errorf("cannot broadcast %v to lower rank %v", srcShape, targetShape)
	}
	off := tgtRank - srcRank
	srcStrides := make([]int, tgtRank)
	for i := tgtRank - 1; i >= 0; i-- {
		if i < off {
			continue
		}
		srcDim := srcShape[i-off]
		if srcDim == targetShape[i] {
			srcStrides[i] = t.strides[i-off]
			continue
		}
		if srcDim != 1 {
			return nil, fmt.Errorf("incompatible broadcast dimensions %v -> %v", srcShape, targetShape)
		}
	}
	out := Zeros(targetShape...)
	outStrides := out.strides
	parallel.For(len(out.data), func(start, end int) {
		for idx := start; idx < end; idx++ {
			rem := idx
			src := 0
			for axis := 0; axis < tgtRank; axis++ {
				coord := rem / outStrides[axis]
				rem %= outStrides[axis]
				src += coord * srcStrides[axis]
			}
			out.data[idx] = t.data[src]
		}
	})
	if tracks(t) {
		attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			reduced, err := ReduceToShape(grad, srcShape)
			if err != nil {
				panic(err)
			}
			accumulate(grads, t, reduced)
		}, t)
	}
	return out, nil
}

// ReduceToShape sums grad over the axes that were broadcast from targetShape.
func ReduceToShape(grad *Tensor, targetShape []int) (*Tensor, error) {
	tgt := append([]int(nil), targetShape...)
	if len(tgt) == 0 {
		tgt = []int{1}
	}
	if len(tgt) > len(grad.shape) {
		return nil, fmt.Errorf("target rank %d greater than grad rank %d", len(tgt), len(grad.shape))
	}
	out := grad
	diff := len(out.shape) - len(tgt)
	for axis := 0; axis < len(out.shape); axis++ {
		tgtDim := 1
		if axis >= diff {
			tgtDim = tgt[axis-diff]
		}
		if out.shape[axis] == tgtDim {
			continue
		}
		if tgtDim != 1 {
			return nil, fmt.Errorf("cannot reduce %v to %v", grad.shape, targetShape)
		}
		out = reduceAxis(out, axis)
	}
	if !sameShape(out.shape, tgt) {
		return wrap(out.data, tgt), nil
	}
	return out, nil
}

// reduceAxis sums over axis keeping it as a size-1 dimension.
func reduceAxis(t *Tensor, axis int) *Tensor {
	shape := append([]int(nil), t.shape...)
	axisSize := shape[axis]
	shape[axis] = 1
	out := Zeros(shape...)
	outer, inner := splitAround(t.shape, axis)
	parallel.For(outer, func(start, end int) {
		for o := start; o < end; o++ {
			dstBase := o * inner
			srcBase := o * axisSize * inner
			for k := 0; k < axisSize; k++ {
				srcOffset := srcBase + k*inner
				for j := 0; j < inner; j++ {
					out.data[dstBase+j] += t.data[srcOffset+j]
				}
			}
		}
	})
	return out
}

// splitAround returns the element counts before and after axis.
func splitAround(shape []int, axis int) (outer, inner int) {
	outer, inner = 1, 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, inner
}

func normalizeAxis(axis, rank int) (int, error) {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return 0, fmt.Errorf("axis %d out of range for rank %d", axis, rank)
	}
	return axis, nil
}
