package tensor

import (
	"math"
	"testing"
)

func TestConv2DKnownValues(t *testing.T) {
	input := MustNew([]float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, 1, 1, 3, 3)
	weight := MustNew([]float64{1, 0, 0, -1}, 1, 1, 2, 2)
	bias := MustNew([]float64{0.5}, 1)
	out, err := Conv2D(input, weight, bias, 1, 1, 0, 0)
	if err != nil {
		t.Fatalf("conv failed: %v", err)
	}
	if !equalShapes(out.Shape(), []int{1, 1, 2, 2}) {
		t.Fatalf("unexpected shape: %v", out.Shape())
	}
	// x[i,j] - x[i+1,j+1] = -4 everywhere, plus bias
	if !AlmostEqualSlices(out.Data(), []float64{-3.5, -3.5, -3.5, -3.5}, 1e-9) {
		t.Fatalf("unexpected conv output: %v", out.Data())
	}
}

func TestConv2DGradientsMatchFiniteDifferences(t *testing.T) {
	Seed(3)
	input := Randn(2, 2, 4, 4)
	weight := Randn(3, 2, 3, 3)
	bias := Randn(3)
	for _, p := range []*Tensor{input, weight, bias} {
		p.SetRequiresGrad(true)
	}
	objective := func() float64 {
		var out *Tensor
		_ = NoGrad(func() error {
			var err error
			out, err = Conv2D(input, weight, bias, 2, 1, 1, 1)
			return err
		})
		sq := 0.0
		for _, v := range out.data {
			sq += v * v
		}
		return 0.5 * sq
	}

	out, err := Conv2D(input, weight, bias, 2, 1, 1, 1)
	if err != nil {
		t.Fatalf("conv failed: %v", err)
	}
	l := MulScalar(Sum(Pow(out, 2)), 0.5)
	if err := l.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}

	const eps = 1e-6
	for name, p := range map[string]*Tensor{"input": input, "weight": weight, "bias": bias} {
		grad := p.Grad()
		for _, i := range []int{0, len(p.data) / 2, len(p.data) - 1} {
			orig := p.data[i]
			p.data[i] = orig + eps
			up := objective()
			p.data[i] = orig - eps
			down := objective()
			p.data[i] = orig
			numeric := (up - down) / (2 * eps)
			if math.Abs(numeric-grad.data[i]) > 1e-4*math.Max(1, math.Abs(numeric)) {
				t.Fatalf("%s grad[%d]: analytic %v numeric %v", name, i, grad.data[i], numeric)
			}
		}
	}
}

func TestConv2DChannelMismatch(t *testing.T) {
	if _, err := Conv2D(Zeros(1, 2, 3, 3), Zeros(1, 3, 2, 2), nil, 1, 1, 0, 0); err == nil {
		t.Fatalf("expected channel mismatch error")
	}
	if _, err := Conv2D(Zeros(2, 3), Zeros(1, 3, 2, 2), nil, 1, 1, 0, 0); err == nil {
		t.Fatalf("expected rank error")
	}
}
