package loss

import (
	"fmt"

	"github.com/fumitoshi0524/colordistill/tensor"
)

// MSE is the mean squared difference between two tensors of identical shape.
func MSE(pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	if !sameShape(pred.Shape(), target.Shape()) {
		return nil, fmt.Errorf("MSE shape mismatch: %v vs %v", pred.Shape(), target.Shape())
	}
	diff, err := tensor.Sub(pred, target)
	if err != nil {
		return nil, err
	}
	return tensor.Mean(tensor.Pow(diff, 2)), nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
