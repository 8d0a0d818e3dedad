package loss

import (
	"fmt"

	"github.com/fumitoshi0524/colordistill/tensor"
)

// CrossEntropy is the mean negative log-likelihood of targets under
// softmax(logits). logits has shape [batch, classes].
func CrossEntropy(logits *tensor.Tensor, targets []int) (*tensor.Tensor, error) {
	shape := logits.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("CrossEntropy expects rank 2 logits, got %v", shape)
	}
	batch, classes := shape[0], shape[1]
	if len(targets) != batch {
		return nil, fmt.Errorf("target length %d does not match batch %d", len(targets), batch)
	}
	data := make([]float64, batch*classes)
	for i, idx := range targets {
		if idx < 0 || idx >= classes {
			return nil, fmt.Errorf("target index %d out of range [0, %d)", idx, classes)
		}
		data[i*classes+idx] = 1
	}
	logProb, err := tensor.LogSoftmax(logits, 1)
	if err != nil {
		return nil, err
	}
	masked, err := tensor.Mul(logProb, tensor.MustNew(data, batch, classes))
	if err != nil {
		return nil, err
	}
	return tensor.MulScalar(tensor.Sum(masked), -1.0/float64(batch)), nil
}
