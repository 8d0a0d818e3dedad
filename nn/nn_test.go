package nn

import (
	"testing"

	"github.com/fumitoshi0524/colordistill/loss"
	"github.com/fumitoshi0524/colordistill/optim"
	"github.com/fumitoshi0524/colordistill/tensor"
)

func floatsAlmostEqual(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > tol {
			return false
		}
	}
	return true
}

func TestSequentialForwardBackward(t *testing.T) {
	linear1 := NewLinear(3, 2, true)
	if err := linear1.Weight().SetData([]float64{
		0.5, -1.0, 1.5,
		-0.25, 0.75, -0.5,
	}); err != nil {
		t.Fatalf("set linear1 weight: %v", err)
	}
	if err := linear1.Bias().SetData([]float64{0.1, -0.2}); err != nil {
		t.Fatalf("set linear1 bias: %v", err)
	}
	relu := Relu()
	linear2 := NewLinear(2, 1, true)
	if err := linear2.Weight().SetData([]float64{0.6, -1.2}); err != nil {
		t.Fatalf("set linear2 weight: %v", err)
	}
	if err := linear2.Bias().SetData([]float64{0.05}); err != nil {
		t.Fatalf("set linear2 bias: %v", err)
	}
	model := NewSequential(linear1, relu, linear2)

	inputs := tensor.MustNew([]float64{
		1, 0, -1,
		2, 1, 0,
	}, 2, 3)
	targets := tensor.MustNew([]float64{1, -1}, 2, 1)

	out, err := model.Forward(inputs)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if out == nil {
		t.Fatalf("forward returned nil output")
	}

	l, err := loss.MSE(out, targets)
	if err != nil {
		t.Fatalf("loss failed: %v", err)
	}
	if err := l.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}

	if linear1.Weight().Grad() == nil {
		t.Fatalf("expected gradient on linear1 weight")
	}
	if linear1.Bias().Grad() == nil {
		t.Fatalf("expected gradient on linear1 bias")
	}
	if linear2.Weight().Grad() == nil {
		t.Fatalf("expected gradient on linear2 weight")
	}
	if linear2.Bias().Grad() == nil {
		t.Fatalf("expected gradient on linear2 bias")
	}

	ZeroGradAll(model)
	if linear1.Weight().Grad() != nil || linear2.Weight().Grad() != nil {
		t.Fatalf("ZeroGradAll did not clear gradients")
	}
}

func TestSequentialTrainingWithSGD(t *testing.T) {
	linear := NewLinear(1, 1, true)
	if err := linear.Weight().SetData([]float64{0}); err != nil {
		t.Fatalf("set linear weight: %v", err)
	}
	if err := linear.Bias().SetData([]float64{0}); err != nil {
		t.Fatalf("set linear bias: %v", err)
	}
	model := NewSequential(linear)
	inputs := tensor.MustNew([]float64{-2, -1, 0, 1, 2, 3}, 6, 1)
	targets := tensor.MustNew([]float64{-5, -3, -1, 1, 3, 5}, 6, 1)
	opt := optim.NewSGD(model.Parameters(), 0.1, 0)

	var initialLoss float64
	for epoch := 0; epoch < 50; epoch++ {
		opt.ZeroGrad()
		pred, err := model.Forward(inputs)
		if err != nil {
			t.Fatalf("forward failed: %v", err)
		}
		l, err := loss.MSE(pred, targets)
		if err != nil {
			t.Fatalf("loss failed: %v", err)
		}
		if epoch == 0 {
			initialLoss = l.Data()[0]
		}
		if err := l.Backward(); err != nil {
			t.Fatalf("backward failed: %v", err)
		}
		if err := opt.Step(); err != nil {
			t.Fatalf("optimizer step failed: %v", err)
		}
	}
	pred, err := model.Forward(inputs)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	finalLoss, err := loss.MSE(pred, targets)
	if err != nil {
		t.Fatalf("loss failed: %v", err)
	}
	if finalLoss.Data()[0] >= initialLoss {
		t.Fatalf("expected loss to decrease: initial=%.6f final=%.6f", initialLoss, finalLoss.Data()[0])
	}
}

func TestConvClassifierShapes(t *testing.T) {
	model := NewSequential(
		NewConv2d(3, 4, 3, 1, 1, true),
		Relu(),
		NewConv2d(4, 6, 3, 2, 1, true),
		Relu(),
		GlobalAvgPool(),
		NewLinear(6, 5, true),
	)
	out, err := model.Forward(tensor.Randn(2, 3, 8, 8))
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if shape := out.Shape(); len(shape) != 2 || shape[0] != 2 || shape[1] != 5 {
		t.Fatalf("unexpected logits shape: %v", shape)
	}
	if got, want := ParameterCount(model), 3*4*9+4+4*6*9+6+6*5+5; got != want {
		t.Fatalf("unexpected parameter count: got %d want %d", got, want)
	}
	if model.Len() != 6 {
		t.Fatalf("unexpected layer count %d", model.Len())
	}
}

func TestGlobalAvgPool(t *testing.T) {
	x := tensor.MustNew([]float64{
		1, 2, 3, 4,
		10, 10, 10, 10,
	}, 1, 2, 2, 2)
	out, err := GlobalAvgPool().Forward(x)
	if err != nil {
		t.Fatalf("pool failed: %v", err)
	}
	if !floatsAlmostEqual(out.Data(), []float64{2.5, 10}, 1e-9) {
		t.Fatalf("unexpected pooled values: %v", out.Data())
	}
}

func TestMaxPool2dHalvesSpatialDims(t *testing.T) {
	pool := NewMaxPool2d(2, 0)
	out, err := pool.Forward(tensor.Randn(2, 3, 6, 4))
	if err != nil {
		t.Fatalf("pool failed: %v", err)
	}
	if got := out.Shape(); !equalInts(got, []int{2, 3, 3, 2}) {
		t.Fatalf("unexpected pooled shape %v", got)
	}
	if len(pool.Parameters()) != 0 {
		t.Fatalf("pooling must not own parameters")
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSequentialWrapsLayerErrors(t *testing.T) {
	model := NewSequential(NewLinear(3, 2, true), NewLinear(4, 1, true))
	if _, err := model.Forward(tensor.Randn(1, 3)); err == nil {
		t.Fatalf("expected shape error from second layer")
	}
}
