package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MatMul multiplies two rank-2 tensors using gonum's dense kernels.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return nil, fmt.Errorf("matmul expects rank 2 tensors, got %v and %v", a.shape, b.shape)
	}
	aRows, aCols := a.shape[0], a.shape[1]
	bRows, bCols := b.shape[0], b.shape[1]
	if aCols != bRows {
		return nil, fmt.Errorf("incompatible shapes for matmul: %v x %v", a.shape, b.shape)
	}
	out := Zeros(aRows, bCols)
	mat.NewDense(aRows, bCols, out.data).Mul(dense(a), dense(b))
	if tracks(a, b) {
		attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			g := dense(grad)
			if a.requiresGrad {
				ga := Zeros(aRows, aCols)
				mat.NewDense(aRows, aCols, ga.data).Mul(g, dense(b).T())
				accumulate(grads, a, ga)
			}
			if b.requiresGrad {
				gb := Zeros(bRows, bCols)
				mat.NewDense(bRows, bCols, gb.data).Mul(dense(a).T(), g)
				accumulate(grads, b, gb)
			}
		}, a, b)
	}
	return out, nil
}

// Transpose swaps the two axes of a rank-2 tensor.
func Transpose(a *Tensor) (*Tensor, error) {
	if len(a.shape) != 2 {
		return nil, fmt.Errorf("transpose expects rank 2 tensor, got %v", a.shape)
	}
	rows, cols := a.shape[0], a.shape[1]
	out := Zeros(cols, rows)
	mat.NewDense(cols, rows, out.data).Copy(dense(a).T())
	if tracks(a) {
		attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			g := Zeros(rows, cols)
			mat.NewDense(rows, cols, g.data).Copy(dense(grad).T())
			accumulate(grads, a, g)
		}, a)
	}
	return out, nil
}

func (t *Tensor) MustTranspose() *Tensor {
	tr, err := Transpose(t)
	if err != nil {
		panic(err)
	}
	return tr
}

// dense views a rank-2 tensor as a gonum matrix sharing its storage.
func dense(t *Tensor) *mat.Dense {
	return mat.NewDense(t.shape[0], t.shape[1], t.data)
}
