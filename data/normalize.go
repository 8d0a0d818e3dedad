package data

import (
	"gonum.org/v1/gonum/floats"

	"github.com/fumitoshi0524/colordistill/tensor"
)

// Denormalizer maps a normalized tensor back to pixel intensities in [0, 1].
type Denormalizer interface {
	Denormalize(t *tensor.Tensor) *tensor.Tensor
}

// Normalizer standardizes every channel with a fixed mean and deviation.
type Normalizer struct {
	Mean []float64
	Std  []float64
}

var (
	MNISTNormalizer    = Normalizer{Mean: []float64{0.1307}, Std: []float64{0.3081}}
	ImageNetNormalizer = Normalizer{Mean: []float64{0.485, 0.456, 0.406}, Std: []float64{0.229, 0.224, 0.225}}
	IdentityNormalizer = Normalizer{}
)

// Denormalize returns (t * std) + mean per channel. The channel axis is the
// leading one for [C, H, W] tensors and the second for [B, C, H, W] tensors.
// An empty Normalizer, or one whose channel count differs from t, returns a
// detached copy.
func (n Normalizer) Denormalize(t *tensor.Tensor) *tensor.Tensor {
	out := t.Detach()
	if len(n.Mean) == 0 {
		return out
	}
	values := out.Data()
	n.eachPlane(t.Shape(), values, func(plane []float64, c int) {
		floats.Scale(n.Std[c], plane)
		floats.AddConst(n.Mean[c], plane)
	})
	if err := out.SetData(values); err != nil {
		panic(err)
	}
	return out
}

// Normalize is the inverse of Denormalize.
func (n Normalizer) Normalize(t *tensor.Tensor) *tensor.Tensor {
	out := t.Detach()
	if len(n.Mean) == 0 {
		return out
	}
	values := out.Data()
	n.eachPlane(t.Shape(), values, n.normalizePlane)
	if err := out.SetData(values); err != nil {
		panic(err)
	}
	return out
}

func (n Normalizer) normalizePlane(plane []float64, c int) {
	floats.AddConst(-n.Mean[c], plane)
	floats.Scale(1/n.Std[c], plane)
}

func (n Normalizer) eachPlane(shape []int, values []float64, fn func(plane []float64, c int)) {
	channelAxis := 0
	if len(shape) == 4 {
		channelAxis = 1
	}
	channels := shape[channelAxis]
	if channels != len(n.Mean) {
		return
	}
	plane := 1
	for _, dim := range shape[channelAxis+1:] {
		plane *= dim
	}
	for start := 0; start < len(values); start += plane {
		c := (start / plane) % channels
		fn(values[start:start+plane], c)
	}
}
