package report

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"github.com/fumitoshi0524/colordistill/tensor"
)

// ToImage converts a [C, H, W] tensor with values in [0, 1] to an 8-bit
// image: grayscale for one channel, RGB for three. Values are clamped and
// truncated after scaling by 255.
func ToImage(t *tensor.Tensor) (image.Image, error) {
	shape := t.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("ToImage expects [C, H, W], got %v", shape)
	}
	c, h, w := shape[0], shape[1], shape[2]
	data := t.Data()
	plane := h * w
	switch c {
	case 1:
		img := image.NewGray(image.Rect(0, 0, w, h))
		for i := 0; i < plane; i++ {
			img.Pix[i] = toByte(data[i])
		}
		return img, nil
	case 3:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < plane; i++ {
			img.Pix[i*4] = toByte(data[i])
			img.Pix[i*4+1] = toByte(data[plane+i])
			img.Pix[i*4+2] = toByte(data[2*plane+i])
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	default:
		return nil, fmt.Errorf("ToImage supports 1 or 3 channels, got %d", c)
	}
}

func toByte(v float64) uint8 {
	v *= 255
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

type countingWriter struct {
	n int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}

// EncodedSize returns the number of bytes img occupies as a PNG file.
func EncodedSize(img image.Image) (int, error) {
	var w countingWriter
	if err := png.Encode(&w, img); err != nil {
		return 0, err
	}
	return w.n, nil
}

// Resize scales img to size x size. Smooth uses Catmull-Rom filtering;
// otherwise pixels are replicated, which keeps index maps discrete.
func Resize(img image.Image, size int, smooth bool) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	var scaler draw.Scaler = draw.NearestNeighbor
	if smooth {
		scaler = draw.CatmullRom
	}
	scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// blues is the sequential white-to-navy ramp used for index maps.
var blues = []color.NRGBA{
	{247, 251, 255, 255},
	{222, 235, 247, 255},
	{198, 219, 239, 255},
	{158, 202, 225, 255},
	{107, 174, 214, 255},
	{66, 146, 198, 255},
	{33, 113, 181, 255},
	{8, 81, 156, 255},
	{8, 48, 107, 255},
}

// Blues maps v in [0, 1] onto the blues ramp.
func Blues(v float64) color.NRGBA {
	if v <= 0 {
		return blues[0]
	}
	if v >= 1 {
		return blues[len(blues)-1]
	}
	pos := v * float64(len(blues)-1)
	i := int(pos)
	frac := pos - float64(i)
	lo, hi := blues[i], blues[i+1]
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a) + frac*(float64(b)-float64(a)) + 0.5)
	}
	return color.NRGBA{R: mix(lo.R, hi.R), G: mix(lo.G, hi.G), B: mix(lo.B, hi.B), A: 255}
}

// IndexImage renders a [H*W] palette index map, shading index k of
// numColors with Blues(k / (numColors-1)).
func IndexImage(indices []int, height, width, numColors int) (image.Image, error) {
	if len(indices) != height*width {
		return nil, fmt.Errorf("index map has %d entries, want %dx%d", len(indices), height, width)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	scale := 0.0
	if numColors > 1 {
		scale = 1 / float64(numColors-1)
	}
	for i, k := range indices {
		img.SetNRGBA(i%width, i/width, Blues(float64(k)*scale))
	}
	return img, nil
}

func writePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
