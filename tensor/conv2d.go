package tensor

import (
	"errors"
	"fmt"

	"github.com/fumitoshi0524/colordistill/internal/parallel"
)

// Conv2D performs a 2D convolution over the input tensor with the provided weights and optional bias.
// Input shape: [batch, in_channels, in_h, in_w]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape (optional): [out_channels]
func Conv2D(input, weight, bias *Tensor, strideH, strideW, padH, padW int) (*Tensor, error) {
	if len(input.shape) != 4 {
		return nil, fmt.Errorf("Conv2D expects input shape [batch, channels, height, width], got %v", input.shape)
	}
	if len(weight.shape) != 4 {
		return nil, errors.New("Conv2D expects weight shape [out_channels, in_channels, kernel_h, kernel_w]")
	}
	if bias != nil && len(bias.shape) != 1 {
		return nil, errors.New("bias for Conv2D must be rank 1")
	}
	if strideH <= 0 || strideW <= 0 {
		return nil, errors.New("stride must be positive")
	}
	g := convGeom{
		batch: input.shape[0], inC: input.shape[1], inH: input.shape[2], inW: input.shape[3],
		outC: weight.shape[0], kH: weight.shape[2], kW: weight.shape[3],
		sH: strideH, sW: strideW, pH: padH, pW: padW,
	}
	if weight.shape[1] != g.inC {
		return nil, fmt.Errorf("kernel in_channels %d does not match input channels %d", weight.shape[1], g.inC)
	}
	g.outH = (g.inH+2*padH-g.kH)/strideH + 1
	g.outW = (g.inW+2*padW-g.kW)/strideW + 1
	if g.outH <= 0 || g.outW <= 0 {
		return nil, errors.New("invalid output size")
	}

	out := Zeros(g.batch, g.outC, g.outH, g.outW)
	parallel.For(g.batch*g.outC, func(start, end int) {
		for job := start; job < end; job++ {
			n, oc := job/g.outC, job%g.outC
			for oh := 0; oh < g.outH; oh++ {
				for ow := 0; ow < g.outW; ow++ {
					acc := 0.0
					g.each(n, oc, oh, ow, func(inputIdx, weightIdx int) {
						acc += input.data[inputIdx] * weight.data[weightIdx]
					})
					if bias != nil {
						acc += bias.data[oc]
					}
					out.data[g.outIndex(n, oc, oh, ow)] = acc
				}
			}
		}
	})

	if !tracks(input, weight, bias) {
		return out, nil
	}
	attach(out, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		if input.requiresGrad {
			gInput := Zeros(input.shape...)
			// each batch item owns a disjoint slice of gInput
			parallel.For(g.batch, func(start, end int) {
				for n := start; n < end; n++ {
					for oc := 0; oc < g.outC; oc++ {
						for oh := 0; oh < g.outH; oh++ {
							for ow := 0; ow < g.outW; ow++ {
								gVal := grad.data[g.outIndex(n, oc, oh, ow)]
								g.each(n, oc, oh, ow, func(inputIdx, weightIdx int) {
									gInput.data[inputIdx] += weight.data[weightIdx] * gVal
								})
							}
						}
					}
				}
			})
			accumulate(grads, input, gInput)
		}
		if weight.requiresGrad {
			gWeight := Zeros(weight.shape...)
			parallel.For(g.outC, func(start, end int) {
				for oc := start; oc < end; oc++ {
					for n := 0; n < g.batch; n++ {
						for oh := 0; oh < g.outH; oh++ {
							for ow := 0; ow < g.outW; ow++ {
								gVal := grad.data[g.outIndex(n, oc, oh, ow)]
								g.each(n, oc, oh, ow, func(inputIdx, weightIdx int) {
									gWeight.data[weightIdx] += input.data[inputIdx] * gVal
								})
							}
						}
					}
				}
			})
			accumulate(grads, weight, gWeight)
		}
		if bias != nil && bias.requiresGrad {
			gBias := Zeros(bias.shape...)
			plane := g.outH * g.outW
			for n := 0; n < g.batch; n++ {
				for oc := 0; oc < g.outC; oc++ {
					base := g.outIndex(n, oc, 0, 0)
					gBias.data[oc] += sumOf(grad.data[base : base+plane])
				}
			}
			accumulate(grads, bias, gBias)
		}
	}, input, weight, bias)

	return out, nil
}

type convGeom struct {
	batch, inC, inH, inW int
	outC, kH, kW         int
	sH, sW, pH, pW       int
	outH, outW           int
}

func (g convGeom) outIndex(n, oc, oh, ow int) int {
	return ((n*g.outC+oc)*g.outH+oh)*g.outW + ow
}

// each visits every in-bounds (input, weight) index pair feeding one output cell.
func (g convGeom) each(n, oc, oh, ow int, fn func(inputIdx, weightIdx int)) {
	for ic := 0; ic < g.inC; ic++ {
		for kh := 0; kh < g.kH; kh++ {
			ih := oh*g.sH - g.pH + kh
			if ih < 0 || ih >= g.inH {
				continue
			}
			for kw := 0; kw < g.kW; kw++ {
				iw := ow*g.sW - g.pW + kw
				if iw < 0 || iw >= g.inW {
					continue
				}
				fn(((n*g.inC+ic)*g.inH+ih)*g.inW+iw, ((oc*g.inC+ic)*g.kH+kh)*g.kW+kw)
			}
		}
	}
}
