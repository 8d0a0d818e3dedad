package tensor

import (
	"errors"
	"fmt"
	"math"

	"github.com/fumitoshi0524/colordistill/internal/parallel"
)

// MaxPool2D takes the maximum over each kernel window of a [B, C, H, W]
// input. Padding cells never win.
func MaxPool2D(input *Tensor, kernel, stride int) (*Tensor, error) {
	if len(input.shape) != 4 {
		return nil, fmt.Errorf("MaxPool2D expects input shape [batch, channels, height, width], got %v", input.shape)
	}
	if kernel <= 0 {
		return nil, errors.New("kernel size must be positive")
	}
	if stride <= 0 {
		stride = kernel
	}
	planes, inH, inW := input.shape[0]*input.shape[1], input.shape[2], input.shape[3]
	outH := (inH-kernel)/stride + 1
	outW := (inW-kernel)/stride + 1
	if inH < kernel || inW < kernel {
		return nil, fmt.Errorf("kernel %d larger than input %dx%d", kernel, inH, inW)
	}

	out := Zeros(input.shape[0], input.shape[1], outH, outW)
	winners := make([]int, len(out.data))
	parallel.For(planes, func(start, end int) {
		for p := start; p < end; p++ {
			inBase, outBase := p*inH*inW, p*outH*outW
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					best, bestIdx := math.Inf(-1), -1
					for kh := 0; kh < kernel; kh++ {
						row := inBase + (oh*stride+kh)*inW + ow*stride
						for kw := 0; kw < kernel; kw++ {
							if v := input.data[row+kw]; v > best {
								best, bestIdx = v, row+kw
							}
						}
					}
					out.data[outBase+oh*outW+ow] = best
					winners[outBase+oh*outW+ow] = bestIdx
				}
			}
		}
	})

	if !tracks(input) {
		return out, nil
	}
	attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		g := Zeros(input.shape...)
		for i, src := range winners {
			g.data[src] += grad.data[i]
		}
		accumulate(grads, input, g)
	}, input)
	return out, nil
}
