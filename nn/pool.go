package nn

import "github.com/fumitoshi0524/colordistill/tensor"

// MaxPool2d downsamples feature maps with a square max window.
type MaxPool2d struct {
	kernel int
	stride int
}

// NewMaxPool2d uses stride = kernel when stride is not positive.
func NewMaxPool2d(kernel, stride int) *MaxPool2d {
	if stride <= 0 {
		stride = kernel
	}
	return &MaxPool2d{kernel: kernel, stride: stride}
}

func (m *MaxPool2d) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.MaxPool2D(input, m.kernel, m.stride)
}

func (m *MaxPool2d) Parameters() []*tensor.Tensor {
	return nil
}

func (m *MaxPool2d) ZeroGrad() {}
