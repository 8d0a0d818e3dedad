package nn

import (
	"math"

	"github.com/fumitoshi0524/colordistill/tensor"
)

type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *tensor.Tensor
	bias        *tensor.Tensor
}

func NewLinear(inFeatures, outFeatures int, withBias bool) *Linear {
	w := tensor.Randn(outFeatures, inFeatures)
	scale := math.Sqrt(2.0 / float64(inFeatures+outFeatures))
	w.Scale(scale)
	w.SetRequiresGrad(true)
	var b *tensor.Tensor
	if withBias {
		b = tensor.Zeros(outFeatures)
		b.SetRequiresGrad(true)
	}
	return &Linear{inFeatures: inFeatures, outFeatures: outFeatures, weight: w, bias: b}
}

// Forward maps [batch, in] to [batch, out]. Higher-rank inputs are flattened
// after the batch axis.
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	x := input
	var err error
	switch input.Rank() {
	case 1:
		x, err = input.Reshape(1, input.Dim(0))
	case 2:
	default:
		x, err = tensor.Flatten(input)
	}
	if err != nil {
		return nil, err
	}
	output, err := tensor.MatMul(x, l.weight.MustTranspose())
	if err != nil {
		return nil, err
	}
	if l.bias != nil {
		return tensor.AddBias2D(output, l.bias)
	}
	return output, nil
}

func (l *Linear) Parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{l.weight}
	if l.bias != nil {
		params = append(params, l.bias)
	}
	return params
}

func (l *Linear) ZeroGrad() {
	zeroGrad(l.Parameters())
}

func (l *Linear) Weight() *tensor.Tensor {
	return l.weight
}

func (l *Linear) Bias() *tensor.Tensor {
	return l.bias
}
