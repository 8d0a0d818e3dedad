package loss

import (
	"errors"
	"fmt"
	"math"

	"github.com/fumitoshi0524/colordistill/tensor"
)

// varianceEps keeps the palette variance finite when a color gets no mass.
const varianceEps = 1e-8

// Criterion scores classifier logits against integer class targets.
type Criterion func(logits *tensor.Tensor, targets []int) (*tensor.Tensor, error)

// ColorQuantWeights are the coefficients of the three color terms.
type ColorQuantWeights struct {
	Alpha     float64 // palette usage
	Beta      float64 // per-color variance
	Gamma     float64 // reconstruction
	NumColors int
}

// ColorQuantInput bundles one batch worth of tensors.
//
//	Input, Reconstructed: [B, C, H, W]
//	Prob:                 [B, K, H, W]
//	Palette:              [B, C, K, 1, 1]
//	Logits:               [B, classes]
type ColorQuantInput struct {
	Input         *tensor.Tensor
	Reconstructed *tensor.Tensor
	Prob          *tensor.Tensor
	Palette       *tensor.Tensor
	Logits        *tensor.Tensor
	Targets       []int
}

// ColorQuantTerms reports the scalar value of every weighted term.
type ColorQuantTerms struct {
	Classification float64
	Usage          float64
	Variance       float64
	Reconstruction float64
	AvgMax         float64
}

func (t ColorQuantTerms) Total() float64 {
	return t.Classification + t.Usage + t.Variance + t.Reconstruction
}

// ColorQuant builds the joint objective
//
//	criterion(logits) + α·log2(K)·(1 − avgMax) + β·mean(colorVar) + γ·MSE(x, x')
//
// and returns it alongside the per-term breakdown.
func ColorQuant(w ColorQuantWeights, criterion Criterion, in ColorQuantInput) (*tensor.Tensor, ColorQuantTerms, error) {
	var terms ColorQuantTerms
	if criterion == nil {
		return nil, terms, errors.New("ColorQuant requires a criterion")
	}
	if w.NumColors < 1 {
		return nil, terms, fmt.Errorf("ColorQuant requires NumColors >= 1, got %d", w.NumColors)
	}
	cls, err := criterion(in.Logits, in.Targets)
	if err != nil {
		return nil, terms, fmt.Errorf("classification: %w", err)
	}

	avgMax, err := PaletteUsage(in.Prob, w.NumColors)
	if err != nil {
		return nil, terms, err
	}
	usage := tensor.MulScalar(tensor.AddScalar(tensor.MulScalar(avgMax, -1), 1), w.Alpha*math.Log2(float64(w.NumColors)))

	colorVar, err := ColorVariance(in.Input, in.Prob, in.Palette)
	if err != nil {
		return nil, terms, err
	}
	variance := tensor.MulScalar(tensor.Mean(colorVar), w.Beta)

	mse, err := MSE(in.Input, in.Reconstructed)
	if err != nil {
		return nil, terms, fmt.Errorf("reconstruction: %w", err)
	}
	recon := tensor.MulScalar(mse, w.Gamma)

	total := cls
	for _, term := range []*tensor.Tensor{usage, variance, recon} {
		if total, err = tensor.Add(total, term); err != nil {
			return nil, terms, err
		}
	}
	terms = ColorQuantTerms{
		Classification: cls.Item(),
		Usage:          usage.Item(),
		Variance:       variance.Item(),
		Reconstruction: recon.Item(),
		AvgMax:         avgMax.Item(),
	}
	return total, terms, nil
}

// PaletteUsage returns avg_max: the spatial peak of every color's assignment
// map, averaged over colors and batch. It lies in [0, 1] for probability maps
// and reaches 1 when every color owns at least one pixel outright.
func PaletteUsage(prob *tensor.Tensor, numColors int) (*tensor.Tensor, error) {
	shape := prob.Shape()
	if len(shape) != 4 || shape[1] != numColors {
		return nil, fmt.Errorf("probability map must be [B, %d, H, W], got %v", numColors, shape)
	}
	flat, err := prob.Reshape(shape[0], numColors, -1)
	if err != nil {
		return nil, err
	}
	peak, err := tensor.Max(flat, 2)
	if err != nil {
		return nil, err
	}
	return tensor.Mean(peak), nil
}

// ColorVariance measures how far the pixels assigned to each palette color
// sit from that color. Shapes: input [B,C,H,W], prob [B,K,H,W],
// palette [B,C,K,1,1]; the result is [B,C,K,1,1].
func ColorVariance(input, prob, palette *tensor.Tensor) (*tensor.Tensor, error) {
	if input.Rank() != 4 || prob.Rank() != 4 {
		return nil, fmt.Errorf("color variance expects rank 4 input and prob, got %v and %v", input.Shape(), prob.Shape())
	}
	x, err := tensor.Unsqueeze(input, 2)
	if err != nil {
		return nil, err
	}
	p, err := tensor.Unsqueeze(prob, 1)
	if err != nil {
		return nil, err
	}
	contribution, err := tensor.Mul(x, p)
	if err != nil {
		return nil, err
	}
	diff, err := tensor.Sub(contribution, palette)
	if err != nil {
		return nil, fmt.Errorf("palette: %w", err)
	}
	weighted, err := tensor.Mul(tensor.Pow(diff, 2), p)
	if err != nil {
		return nil, err
	}
	num, err := tensor.SumAxes(weighted, 3, 4)
	if err != nil {
		return nil, err
	}
	mass, err := tensor.SumAxes(p, 3, 4)
	if err != nil {
		return nil, err
	}
	return tensor.Div(num, tensor.AddScalar(mass, varianceEps))
}
