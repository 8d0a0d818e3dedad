package loss

import (
	"math"
	"testing"

	"github.com/fumitoshi0524/colordistill/tensor"
)

func TestMSEForwardBackward(t *testing.T) {
	pred := tensor.MustNew([]float64{1, 3}, 2, 1)
	pred.SetRequiresGrad(true)
	target := tensor.MustNew([]float64{2, 1}, 2, 1)

	l, err := MSE(pred, target)
	if err != nil {
		t.Fatalf("MSE returned error: %v", err)
	}
	expectedLoss := (math.Pow(1-2, 2) + math.Pow(3-1, 2)) / 2
	if math.Abs(l.Item()-expectedLoss) > 1e-9 {
		t.Fatalf("unexpected MSE value: got %v want %v", l.Item(), expectedLoss)
	}

	if err := l.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	grad := pred.Grad()
	if grad == nil {
		t.Fatalf("expected gradient on predictions")
	}
	expectedGrad := []float64{-1, 2}
	for i, v := range grad.Data() {
		if math.Abs(v-expectedGrad[i]) > 1e-9 {
			t.Fatalf("unexpected grad at %d: got %v want %v", i, v, expectedGrad[i])
		}
	}
}

func TestMSERejectsShapeMismatch(t *testing.T) {
	if _, err := MSE(tensor.Zeros(2, 3), tensor.Zeros(3, 2)); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
	if _, err := MSE(tensor.Zeros(1, 3), tensor.Zeros(2, 3)); err == nil {
		t.Fatalf("expected error for broadcastable but unequal shapes")
	}
}

func TestCrossEntropyForwardBackward(t *testing.T) {
	logits := tensor.MustNew([]float64{2, 1, 0, 0, 0, 0}, 2, 3)
	logits.SetRequiresGrad(true)
	l, err := CrossEntropy(logits, []int{0, 2})
	if err != nil {
		t.Fatalf("CrossEntropy returned error: %v", err)
	}
	z := math.Exp(2) + math.Exp(1) + 1
	want := (-(2 - math.Log(z)) + math.Log(3)) / 2
	if math.Abs(l.Item()-want) > 1e-9 {
		t.Fatalf("unexpected loss: got %v want %v", l.Item(), want)
	}
	if err := l.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	grad := logits.Grad().Data()
	expected := []float64{
		(math.Exp(2)/z - 1) / 2, math.Exp(1) / z / 2, 1 / z / 2,
		1.0 / 6, 1.0 / 6, (1.0/3 - 1) / 2,
	}
	for i := range expected {
		if math.Abs(grad[i]-expected[i]) > 1e-9 {
			t.Fatalf("grad[%d]: got %v want %v", i, grad[i], expected[i])
		}
	}
}

func TestCrossEntropyErrors(t *testing.T) {
	logits := tensor.Zeros(2, 3)
	if _, err := CrossEntropy(logits, []int{0}); err == nil {
		t.Fatalf("expected error for short targets")
	}
	if _, err := CrossEntropy(logits, []int{0, 3}); err == nil {
		t.Fatalf("expected error for out of range target")
	}
	if _, err := CrossEntropy(tensor.Zeros(6), []int{0}); err == nil {
		t.Fatalf("expected error for rank 1 logits")
	}
}

// oneHotProb builds a [1, K, 1, hw] map where pixel p belongs to colors[p].
func oneHotProb(k int, colors []int) *tensor.Tensor {
	data := make([]float64, k*len(colors))
	for p, c := range colors {
		data[c*len(colors)+p] = 1
	}
	return tensor.MustNew(data, 1, k, 1, len(colors))
}

func TestPaletteUsageOneHot(t *testing.T) {
	avgMax, err := PaletteUsage(oneHotProb(2, []int{0, 1, 1, 0}), 2)
	if err != nil {
		t.Fatalf("PaletteUsage: %v", err)
	}
	if math.Abs(avgMax.Item()-1) > 1e-12 {
		t.Fatalf("expected avg max 1 when every color owns a pixel, got %v", avgMax.Item())
	}

	// Color 1 is never chosen.
	avgMax, err = PaletteUsage(oneHotProb(2, []int{0, 0, 0, 0}), 2)
	if err != nil {
		t.Fatalf("PaletteUsage: %v", err)
	}
	if math.Abs(avgMax.Item()-0.5) > 1e-12 {
		t.Fatalf("expected avg max 0.5, got %v", avgMax.Item())
	}
}

func TestPaletteUsageUniformBounds(t *testing.T) {
	prob := tensor.Full(0.25, 2, 4, 3, 3)
	avgMax, err := PaletteUsage(prob, 4)
	if err != nil {
		t.Fatalf("PaletteUsage: %v", err)
	}
	if v := avgMax.Item(); v < 0 || v > 1 || math.Abs(v-0.25) > 1e-12 {
		t.Fatalf("unexpected avg max %v", v)
	}
	if _, err := PaletteUsage(prob, 3); err == nil {
		t.Fatalf("expected error when color count disagrees with map")
	}
}

func TestColorVarianceZeroForExactPalette(t *testing.T) {
	// Two pixels of a single channel, each assigned to its own color.
	input := tensor.MustNew([]float64{0.2, 0.8}, 1, 1, 1, 2)
	prob := oneHotProb(2, []int{0, 1})
	palette := tensor.MustNew([]float64{0.2, 0.8}, 1, 1, 2, 1, 1)
	v, err := ColorVariance(input, prob, palette)
	if err != nil {
		t.Fatalf("ColorVariance: %v", err)
	}
	if got := v.Shape(); len(got) != 5 || got[2] != 2 {
		t.Fatalf("unexpected variance shape %v", got)
	}
	for i, val := range v.Data() {
		if math.Abs(val) > 1e-12 {
			t.Fatalf("variance[%d] = %v, want 0", i, val)
		}
	}
}

func TestColorVarianceFiniteForEmptyMap(t *testing.T) {
	input := tensor.Full(0.5, 1, 3, 2, 2)
	prob := tensor.Zeros(1, 4, 2, 2)
	palette := tensor.Full(0.3, 1, 3, 4, 1, 1)
	v, err := ColorVariance(input, prob, palette)
	if err != nil {
		t.Fatalf("ColorVariance: %v", err)
	}
	for i, val := range v.Data() {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			t.Fatalf("variance[%d] is not finite: %v", i, val)
		}
	}
}

func colorQuantBatch(prob *tensor.Tensor) ColorQuantInput {
	input := tensor.MustNew([]float64{0.1, 0.9, 0.4, 0.6}, 1, 1, 2, 2)
	recon := tensor.MustNew([]float64{0.1, 0.8, 0.4, 0.6}, 1, 1, 2, 2)
	k := prob.Dim(1)
	pal := make([]float64, k)
	for i := range pal {
		pal[i] = float64(i) / float64(k)
	}
	return ColorQuantInput{
		Input:         input,
		Reconstructed: recon,
		Prob:          prob,
		Palette:       tensor.MustNew(pal, 1, 1, k, 1, 1),
		Logits:        tensor.MustNew([]float64{1, 0}, 1, 2),
		Targets:       []int{0},
	}
}

func TestColorQuantTermsSum(t *testing.T) {
	prob := tensor.MustNew([]float64{
		0.7, 0.2, 0.5, 0.5,
		0.3, 0.8, 0.5, 0.5,
	}, 1, 2, 2, 2)
	w := ColorQuantWeights{Alpha: 1, Beta: 0.3, Gamma: 2, NumColors: 2}
	total, terms, err := ColorQuant(w, CrossEntropy, colorQuantBatch(prob))
	if err != nil {
		t.Fatalf("ColorQuant: %v", err)
	}
	if math.Abs(total.Item()-terms.Total()) > 1e-9 {
		t.Fatalf("total %v does not match terms %v", total.Item(), terms.Total())
	}
	wantAvgMax := (0.7 + 0.8) / 2
	if math.Abs(terms.AvgMax-wantAvgMax) > 1e-12 {
		t.Fatalf("avg max: got %v want %v", terms.AvgMax, wantAvgMax)
	}
	if math.Abs(terms.Usage-(1-wantAvgMax)) > 1e-12 {
		t.Fatalf("usage term: got %v want %v", terms.Usage, 1-wantAvgMax)
	}
	if math.Abs(terms.Reconstruction-2*0.01/4) > 1e-12 {
		t.Fatalf("reconstruction term: got %v", terms.Reconstruction)
	}
	// Palette is [0, 0.5] and X is [0.1 0.9 0.4 0.6].
	// color 0: sum((x*p - 0)^2 * p) = 0.07491 over mass 1.9
	// color 1: sum((x*p - 0.5)^2 * p) = 0.16999 over mass 2.1
	wantVar := 0.3 * (0.07491/(1.9+1e-8) + 0.16999/(2.1+1e-8)) / 2
	if math.Abs(terms.Variance-wantVar) > 1e-12 {
		t.Fatalf("variance term: got %v want %v", terms.Variance, wantVar)
	}
	if terms.Classification <= 0 {
		t.Fatalf("unexpected terms %+v", terms)
	}
}

func TestColorQuantUsageVanishes(t *testing.T) {
	cases := []struct {
		name string
		prob *tensor.Tensor
		k    int
	}{
		{"one-hot", oneHotProb(4, []int{0, 1, 2, 3}), 4},
		{"single color", tensor.Ones(1, 1, 2, 2), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := colorQuantBatch(tc.prob)
			if tc.prob.Rank() == 4 && tc.prob.Dim(2) == 1 {
				in.Input = tensor.MustNew([]float64{0.1, 0.9, 0.4, 0.6}, 1, 1, 1, 4)
				in.Reconstructed = in.Input
			}
			_, terms, err := ColorQuant(ColorQuantWeights{Alpha: 1, Beta: 1, Gamma: 1, NumColors: tc.k}, CrossEntropy, in)
			if err != nil {
				t.Fatalf("ColorQuant: %v", err)
			}
			if math.Abs(terms.Usage) > 1e-12 {
				t.Fatalf("expected zero usage term, got %v", terms.Usage)
			}
		})
	}
}

func TestColorQuantBackwardReachesProb(t *testing.T) {
	prob := tensor.Full(0.5, 1, 2, 2, 2)
	prob.SetRequiresGrad(true)
	in := colorQuantBatch(prob)
	in.Logits.SetRequiresGrad(true)
	total, _, err := ColorQuant(ColorQuantWeights{Alpha: 1, Beta: 1, Gamma: 1, NumColors: 2}, CrossEntropy, in)
	if err != nil {
		t.Fatalf("ColorQuant: %v", err)
	}
	if err := total.Backward(); err != nil {
		t.Fatalf("backward: %v", err)
	}
	if prob.Grad() == nil || in.Logits.Grad() == nil {
		t.Fatalf("expected gradients on prob and logits")
	}
	for i, g := range prob.Grad().Data() {
		if math.IsNaN(g) {
			t.Fatalf("prob grad[%d] is NaN", i)
		}
	}
}

func TestColorQuantValidation(t *testing.T) {
	in := colorQuantBatch(tensor.Full(0.5, 1, 2, 2, 2))
	if _, _, err := ColorQuant(ColorQuantWeights{NumColors: 2}, nil, in); err == nil {
		t.Fatalf("expected error without criterion")
	}
	if _, _, err := ColorQuant(ColorQuantWeights{NumColors: 0}, CrossEntropy, in); err == nil {
		t.Fatalf("expected error for zero colors")
	}
	in.Palette = tensor.Zeros(1, 1, 3, 1, 1)
	if _, _, err := ColorQuant(ColorQuantWeights{NumColors: 2}, CrossEntropy, in); err == nil {
		t.Fatalf("expected error for palette with wrong color count")
	}
}
