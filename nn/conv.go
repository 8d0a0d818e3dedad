package nn

import (
	"math"

	"github.com/fumitoshi0524/colordistill/tensor"
)

type Conv2d struct {
	inChannels  int
	outChannels int
	stride      int
	pad         int
	weight      *tensor.Tensor
	bias        *tensor.Tensor
}

// NewConv2d builds a square-kernel convolution with He initialisation.
func NewConv2d(inChannels, outChannels, kernel, stride, pad int, withBias bool) *Conv2d {
	if stride <= 0 {
		stride = 1
	}
	w := tensor.Randn(outChannels, inChannels, kernel, kernel)
	w.Scale(math.Sqrt(2.0 / float64(inChannels*kernel*kernel)))
	w.SetRequiresGrad(true)
	var b *tensor.Tensor
	if withBias {
		b = tensor.Zeros(outChannels)
		b.SetRequiresGrad(true)
	}
	return &Conv2d{
		inChannels:  inChannels,
		outChannels: outChannels,
		stride:      stride,
		pad:         pad,
		weight:      w,
		bias:        b,
	}
}

func (c *Conv2d) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.Conv2D(input, c.weight, c.bias, c.stride, c.stride, c.pad, c.pad)
}

func (c *Conv2d) Parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{c.weight}
	if c.bias != nil {
		params = append(params, c.bias)
	}
	return params
}

func (c *Conv2d) ZeroGrad() {
	zeroGrad(c.Parameters())
}

func (c *Conv2d) Weight() *tensor.Tensor {
	return c.weight
}

func (c *Conv2d) Bias() *tensor.Tensor {
	return c.bias
}
