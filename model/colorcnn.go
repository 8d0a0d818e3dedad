package model

import (
	"fmt"

	"github.com/fumitoshi0524/colordistill/nn"
	"github.com/fumitoshi0524/colordistill/tensor"
)

const paletteEps = 1e-8

// Quantized is the output of a color quantizer for one batch.
type Quantized struct {
	Image   *tensor.Tensor // [B, C, H, W] recolored input
	Prob    *tensor.Tensor // [B, K, H, W] per-pixel color assignment
	Palette *tensor.Tensor // [B, C, K, 1, 1] per-image colors
}

// IndexMap returns the winning palette index of every pixel, laid out [B, H, W].
func (q Quantized) IndexMap() ([]int, error) {
	return tensor.ArgMax(q.Prob, 1)
}

type ColorCNNConfig struct {
	InChannels  int
	NumColors   int
	Hidden      int
	Temperature float64
}

// ColorCNN learns a small per-image palette. A convolutional encoder scores
// every pixel against K colors; the palette is the probability-weighted mean
// of the input under those scores.
type ColorCNN struct {
	encoder     *nn.Sequential
	numColors   int
	temperature float64
}

func NewColorCNN(cfg ColorCNNConfig) (*ColorCNN, error) {
	if cfg.InChannels < 1 || cfg.NumColors < 1 {
		return nil, fmt.Errorf("colorcnn needs positive channels and colors, got %d and %d", cfg.InChannels, cfg.NumColors)
	}
	if cfg.Hidden <= 0 {
		cfg.Hidden = 16
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	encoder := nn.NewSequential(
		nn.NewConv2d(cfg.InChannels, cfg.Hidden, 3, 1, 1, true),
		nn.Relu(),
		nn.NewConv2d(cfg.Hidden, cfg.Hidden, 3, 1, 1, true),
		nn.Relu(),
		nn.NewConv2d(cfg.Hidden, cfg.NumColors, 1, 1, 0, true),
	)
	return &ColorCNN{encoder: encoder, numColors: cfg.NumColors, temperature: cfg.Temperature}, nil
}

func (m *ColorCNN) NumColors() int {
	return m.numColors
}

// Quantize recolors x with at most K colors per image. In training mode each
// pixel is a soft mixture of the palette so gradients reach the encoder; in
// evaluation mode each pixel takes its most likely color.
func (m *ColorCNN) Quantize(x *tensor.Tensor, training bool) (Quantized, error) {
	if x.Rank() != 4 {
		return Quantized{}, fmt.Errorf("colorcnn expects [B, C, H, W] input, got %v", x.Shape())
	}
	scores, err := m.encoder.Forward(x)
	if err != nil {
		return Quantized{}, fmt.Errorf("encoder: %w", err)
	}
	prob, err := tensor.Softmax(tensor.MulScalar(scores, 1/m.temperature), 1)
	if err != nil {
		return Quantized{}, err
	}
	palette, err := Palette(x, prob)
	if err != nil {
		return Quantized{}, err
	}
	weights := prob
	if !training {
		if weights, err = oneHot(prob); err != nil {
			return Quantized{}, err
		}
	}
	image, err := Recolor(weights, palette)
	if err != nil {
		return Quantized{}, err
	}
	return Quantized{Image: image, Prob: prob, Palette: palette}, nil
}

func (m *ColorCNN) Parameters() []*tensor.Tensor {
	return m.encoder.Parameters()
}

func (m *ColorCNN) ZeroGrad() {
	m.encoder.ZeroGrad()
}

// Palette computes the probability-weighted mean color of x under each of the
// K assignment maps in prob. x is [B,C,H,W], prob [B,K,H,W]; the result is
// [B,C,K,1,1].
func Palette(x, prob *tensor.Tensor) (*tensor.Tensor, error) {
	xs, err := tensor.Unsqueeze(x, 2)
	if err != nil {
		return nil, err
	}
	ps, err := tensor.Unsqueeze(prob, 1)
	if err != nil {
		return nil, err
	}
	weighted, err := tensor.Mul(xs, ps)
	if err != nil {
		return nil, fmt.Errorf("palette: %w", err)
	}
	num, err := tensor.SumAxes(weighted, 3, 4)
	if err != nil {
		return nil, err
	}
	mass, err := tensor.SumAxes(ps, 3, 4)
	if err != nil {
		return nil, err
	}
	return tensor.Div(num, tensor.AddScalar(mass, paletteEps))
}

// Recolor paints every pixel as the weights-blend of the palette.
// weights is [B,K,H,W], palette [B,C,K,1,1]; the result is [B,C,H,W].
func Recolor(weights, palette *tensor.Tensor) (*tensor.Tensor, error) {
	ws, err := tensor.Unsqueeze(weights, 1)
	if err != nil {
		return nil, err
	}
	mixed, err := tensor.Mul(ws, palette)
	if err != nil {
		return nil, fmt.Errorf("recolor: %w", err)
	}
	return tensor.SumAxis(mixed, 2)
}

// oneHot replaces prob with the indicator of its argmax along the color axis.
// The result carries no gradient.
func oneHot(prob *tensor.Tensor) (*tensor.Tensor, error) {
	shape := prob.Shape()
	idx, err := tensor.ArgMax(prob, 1)
	if err != nil {
		return nil, err
	}
	k, plane := shape[1], shape[2]*shape[3]
	data := make([]float64, prob.Numel())
	for i, c := range idx {
		b, p := i/plane, i%plane
		data[(b*k+c)*plane+p] = 1
	}
	return tensor.New(data, shape...)
}
