package data

import (
	"fmt"

	"github.com/fumitoshi0524/colordistill/tensor"
)

// Batch is one minibatch of images and their class labels.
type Batch struct {
	Inputs *tensor.Tensor // [B, C, H, W]
	Labels []int
}

func (b Batch) Size() int {
	return len(b.Labels)
}

// InMemory holds a labelled image dataset as one contiguous CHW buffer.
type InMemory struct {
	images   []float64
	labels   []int
	channels int
	height   int
	width    int
}

func NewInMemory(images []float64, labels []int, channels, height, width int) (*InMemory, error) {
	if channels <= 0 || height <= 0 || width <= 0 {
		return nil, fmt.Errorf("invalid image shape %dx%dx%d", channels, height, width)
	}
	features := channels * height * width
	if len(images) != len(labels)*features {
		return nil, fmt.Errorf("image buffer holds %d values, want %d samples of %d", len(images), len(labels), features)
	}
	return &InMemory{images: images, labels: labels, channels: channels, height: height, width: width}, nil
}

// Count returns the number of samples in the dataset.
func (d *InMemory) Count() int {
	if d == nil {
		return 0
	}
	return len(d.labels)
}

// Shape returns the per-sample channels, height and width.
func (d *InMemory) Shape() (int, int, int) {
	return d.channels, d.height, d.width
}

func (d *InMemory) features() int {
	return d.channels * d.height * d.width
}

// Classes returns one more than the largest label.
func (d *InMemory) Classes() int {
	top := -1
	for _, l := range d.labels {
		if l > top {
			top = l
		}
	}
	return top + 1
}

// Gather materializes the samples at indices into a [len(indices), C, H, W] batch.
func (d *InMemory) Gather(indices []int) Batch {
	feat := d.features()
	out := make([]float64, len(indices)*feat)
	labels := make([]int, len(indices))
	for i, idx := range indices {
		copy(out[i*feat:(i+1)*feat], d.images[idx*feat:(idx+1)*feat])
		labels[i] = d.labels[idx]
	}
	return Batch{
		Inputs: tensor.MustNew(out, len(indices), d.channels, d.height, d.width),
		Labels: labels,
	}
}

// Head returns a view over the first n samples. n larger than Count is clamped.
func (d *InMemory) Head(n int) *InMemory {
	if n <= 0 || n >= d.Count() {
		return d
	}
	return &InMemory{
		images:   d.images[:n*d.features()],
		labels:   d.labels[:n],
		channels: d.channels,
		height:   d.height,
		width:    d.width,
	}
}

// Split cuts the dataset after the first n samples. Both halves share storage
// with d.
func (d *InMemory) Split(n int) (*InMemory, *InMemory, error) {
	if n < 0 || n > d.Count() {
		return nil, nil, fmt.Errorf("split point %d outside [0, %d]", n, d.Count())
	}
	feat := d.features()
	head := &InMemory{images: d.images[:n*feat], labels: d.labels[:n], channels: d.channels, height: d.height, width: d.width}
	tail := &InMemory{images: d.images[n*feat:], labels: d.labels[n:], channels: d.channels, height: d.height, width: d.width}
	return head, tail, nil
}

// Normalize applies n to every sample in place.
func (d *InMemory) Normalize(n Normalizer) error {
	if len(n.Mean) != d.channels || len(n.Std) != d.channels {
		return fmt.Errorf("normalizer has %d/%d channels, dataset has %d", len(n.Mean), len(n.Std), d.channels)
	}
	plane := d.height * d.width
	for i := 0; i < d.Count(); i++ {
		base := i * d.features()
		for c := 0; c < d.channels; c++ {
			n.normalizePlane(d.images[base+c*plane:base+(c+1)*plane], c)
		}
	}
	return nil
}
