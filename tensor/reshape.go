package tensor

import (
	"errors"
	"fmt"
)

// Reshape returns a view over the same data with a new shape. One dimension
// may be -1 and is inferred from the others.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if len(shape) == 0 {
		return nil, errors.New("reshape shape required")
	}
	shape = append([]int(nil), shape...)
	total := t.Numel()
	prod := 1
	infer := -1
	for i, dim := range shape {
		if dim == -1 {
			if infer != -1 {
				return nil, errors.New("multiple inferred dimensions")
			}
			infer = i
			continue
		}
		if dim <= 0 {
			return nil, fmt.Errorf("invalid reshape dimension %d", dim)
		}
		prod *= dim
	}
	if infer != -1 {
		if total%prod != 0 {
			return nil, fmt.Errorf("cannot infer dimension reshaping %v to %v", t.shape, shape)
		}
		shape[infer] = total / prod
		prod = total
	}
	if prod != total {
		return nil, fmt.Errorf("reshape size mismatch: %v to %v", t.shape, shape)
	}
	return view(t, shape), nil
}

func Flatten(a *Tensor) (*Tensor, error) {
	if len(a.shape) < 2 {
		return a.Reshape(a.Numel())
	}
	return a.Reshape(a.shape[0], -1)
}

// Unsqueeze inserts a size-1 axis at the given position.
func Unsqueeze(t *Tensor, axis int) (*Tensor, error) {
	rank := len(t.shape)
	if axis < 0 {
		axis += rank + 1
	}
	if axis < 0 || axis > rank {
		return nil, fmt.Errorf("unsqueeze axis %d out of range for rank %d", axis, rank)
	}
	newShape := make([]int, rank+1)
	copy(newShape[:axis], t.shape[:axis])
	newShape[axis] = 1
	copy(newShape[axis+1:], t.shape[axis:])
	return view(t, newShape), nil
}

func view(t *Tensor, shape []int) *Tensor {
	out := wrap(t.data, shape)
	if tracks(t) {
		srcShape := t.shape
		attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			accumulate(grads, t, wrap(grad.data, srcShape))
		}, t)
	}
	return out
}
