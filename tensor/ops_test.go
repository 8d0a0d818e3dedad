package tensor

import (
	"math"
	"testing"
)

func TestElementwiseGrads(t *testing.T) {
	x := MustNew([]float64{1, 2, 4}, 3)
	x.SetRequiresGrad(true)
	y := MustNew([]float64{2, 4, 8}, 3)
	y.SetRequiresGrad(true)

	cases := []struct {
		name  string
		build func() (*Tensor, error)
		gx    []float64
		gy    []float64
	}{
		{"add", func() (*Tensor, error) { return Add(x, y) }, []float64{1, 1, 1}, []float64{1, 1, 1}},
		{"sub", func() (*Tensor, error) { return Sub(x, y) }, []float64{1, 1, 1}, []float64{-1, -1, -1}},
		{"div", func() (*Tensor, error) { return Div(x, y) }, []float64{0.5, 0.25, 0.125}, []float64{-0.25, -0.125, -0.0625}},
		{"log", func() (*Tensor, error) { return Log(x), nil }, []float64{1, 0.5, 0.25}, nil},
		{"pow", func() (*Tensor, error) { return Pow(x, 2), nil }, []float64{2, 4, 8}, nil},
		{"relu", func() (*Tensor, error) { return Relu(AddScalar(x, -1.5)), nil }, []float64{0, 1, 1}, nil},
	}
	for _, tc := range cases {
		x.ZeroGrad()
		y.ZeroGrad()
		out, err := tc.build()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if err := Sum(out).Backward(); err != nil {
			t.Fatalf("%s backward: %v", tc.name, err)
		}
		if !AlmostEqualSlices(x.Grad().Data(), tc.gx, 1e-9) {
			t.Fatalf("%s: unexpected x grad %v", tc.name, x.Grad().Data())
		}
		if tc.gy != nil && !AlmostEqualSlices(y.Grad().Data(), tc.gy, 1e-9) {
			t.Fatalf("%s: unexpected y grad %v", tc.name, y.Grad().Data())
		}
	}
}

func TestMeanAndExp(t *testing.T) {
	x := MustNew([]float64{0, math.Log(2)}, 2)
	x.SetRequiresGrad(true)
	m := Mean(Exp(x))
	if math.Abs(m.Item()-1.5) > 1e-9 {
		t.Fatalf("unexpected mean: %v", m.Item())
	}
	if err := m.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if !AlmostEqualSlices(x.Grad().Data(), []float64{0.5, 1}, 1e-9) {
		t.Fatalf("unexpected grad: %v", x.Grad().Data())
	}
}

func TestMatMulAndBias(t *testing.T) {
	a := MustNew([]float64{1, 2, 3, 4}, 2, 2)
	a.SetRequiresGrad(true)
	b := MustNew([]float64{5, 6, 7, 8}, 2, 2)
	b.SetRequiresGrad(true)
	bias := MustNew([]float64{1, -1}, 2)
	bias.SetRequiresGrad(true)

	prod, err := MatMul(a, b)
	if err != nil {
		t.Fatalf("matmul failed: %v", err)
	}
	out, err := AddBias2D(prod, bias)
	if err != nil {
		t.Fatalf("bias failed: %v", err)
	}
	if !AlmostEqualSlices(out.Data(), []float64{20, 21, 44, 49}, 1e-9) {
		t.Fatalf("unexpected output: %v", out.Data())
	}
	if err := Sum(out).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if !AlmostEqualSlices(a.Grad().Data(), []float64{11, 15, 11, 15}, 1e-9) {
		t.Fatalf("unexpected a grad: %v", a.Grad().Data())
	}
	if !AlmostEqualSlices(b.Grad().Data(), []float64{4, 4, 6, 6}, 1e-9) {
		t.Fatalf("unexpected b grad: %v", b.Grad().Data())
	}
	if !AlmostEqualSlices(bias.Grad().Data(), []float64{2, 2}, 1e-9) {
		t.Fatalf("unexpected bias grad: %v", bias.Grad().Data())
	}
	tr := a.MustTranspose()
	if !AlmostEqualSlices(tr.Data(), []float64{1, 3, 2, 4}, 1e-9) {
		t.Fatalf("unexpected transpose: %v", tr.Data())
	}
	if _, err := MatMul(a, Zeros(3, 1)); err == nil {
		t.Fatalf("expected shape error")
	}
}

func TestSampleCopiesLeadingItem(t *testing.T) {
	x := MustNew([]float64{1, 2, 3, 4, 5, 6}, 2, 1, 3)
	s, err := x.Sample(1)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if !equalShapes(s.Shape(), []int{1, 3}) || !AlmostEqualSlices(s.Data(), []float64{4, 5, 6}, 0) {
		t.Fatalf("unexpected sample: %v %v", s.Shape(), s.Data())
	}
	if _, err := x.Sample(2); err == nil {
		t.Fatalf("expected range error")
	}
}
