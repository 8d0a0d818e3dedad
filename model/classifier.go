package model

import "github.com/fumitoshi0524/colordistill/nn"

// NewClassifier builds a small convolutional classifier for [B, channels, H, W]
// images with H, W >= 2.
func NewClassifier(channels, classes, hidden int) *nn.Sequential {
	if hidden <= 0 {
		hidden = 16
	}
	return nn.NewSequential(
		nn.NewConv2d(channels, hidden, 3, 1, 1, true),
		nn.Relu(),
		nn.NewMaxPool2d(2, 2),
		nn.NewConv2d(hidden, 2*hidden, 3, 1, 1, true),
		nn.Relu(),
		nn.GlobalAvgPool(),
		nn.NewLinear(2*hidden, classes, true),
	)
}
