package report

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/fumitoshi0524/colordistill/data"
	"github.com/fumitoshi0524/colordistill/tensor"
)

const defaultVisualSize = 512

// Sample carries the already-computed tensors for one evaluated image.
// Quantized and IndexMap are nil outside color quantization.
type Sample struct {
	Original  *tensor.Tensor // [C, H, W], normalized
	Quantized *tensor.Tensor // [C, H, W], normalized
	IndexMap  []int          // [H*W] palette indices
	NumColors int
}

// PNGVisualizer writes a sample as PNG files into Dir:
//
//	og_img.png    original image (<SampleMethod>.png outside quantization)
//	colorcnn.png  recolored image
//	index_map.png palette index map
//
// Images are resized to Size x Size. Every call overwrites the previous files.
type PNGVisualizer struct {
	Dir          string
	Denorm       data.Denormalizer
	Size         int
	SampleMethod string
}

func (v *PNGVisualizer) Visualize(s Sample) error {
	if s.Original == nil {
		return fmt.Errorf("visualize: missing original image")
	}
	name := "og_img.png"
	if s.Quantized == nil {
		method := v.SampleMethod
		if method == "" {
			method = "original"
		}
		name = method + ".png"
	}
	if err := v.writeTensor(name, s.Original); err != nil {
		return err
	}
	if s.Quantized == nil {
		return nil
	}
	if err := v.writeTensor("colorcnn.png", s.Quantized); err != nil {
		return err
	}
	if s.IndexMap == nil {
		return nil
	}
	shape := s.Original.Shape()
	idx, err := IndexImage(s.IndexMap, shape[1], shape[2], s.NumColors)
	if err != nil {
		return err
	}
	return v.write("index_map.png", Resize(idx, v.size(), false))
}

func (v *PNGVisualizer) writeTensor(name string, t *tensor.Tensor) error {
	if v.Denorm != nil {
		t = v.Denorm.Denormalize(t)
	}
	img, err := ToImage(t)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return v.write(name, Resize(img, v.size(), true))
}

func (v *PNGVisualizer) size() int {
	if v.Size <= 0 {
		return defaultVisualSize
	}
	return v.Size
}

func (v *PNGVisualizer) write(name string, img image.Image) error {
	path := filepath.Join(v.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("visualize: %w", err)
	}
	if err := writePNG(f, img); err != nil {
		f.Close()
		return fmt.Errorf("visualize %s: %w", path, err)
	}
	return f.Close()
}
