package tensor

import (
	"math"
	"testing"
)

func TestLogSoftmaxRowsAndGrad(t *testing.T) {
	input := MustNew([]float64{
		1, 2, 3,
		1, 1, 1,
	}, 2, 3)
	input.SetRequiresGrad(true)
	out, err := LogSoftmax(input, 1)
	if err != nil {
		t.Fatalf("LogSoftmax failed: %v", err)
	}
	data := out.Data()
	for row := 0; row < 2; row++ {
		sum := 0.0
		for col := 0; col < 3; col++ {
			sum += math.Exp(data[row*3+col])
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("row %d does not normalize: %v", row, sum)
		}
	}
	if math.Abs(data[3]-math.Log(1.0/3)) > 1e-9 {
		t.Fatalf("uniform row mismatch: %v", data[3])
	}
	// d/dx sum(logsoftmax) = 1 - n*softmax
	if err := Sum(out).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	grad := input.Grad().Data()
	for i := 3; i < 6; i++ {
		if math.Abs(grad[i]) > 1e-9 {
			t.Fatalf("expected zero grad on uniform row, got %v", grad)
		}
	}
}

func TestSoftmaxChannelAxisOfImage(t *testing.T) {
	input := Randn(2, 4, 3, 3)
	prob, err := Softmax(input, 1)
	if err != nil {
		t.Fatalf("Softmax failed: %v", err)
	}
	total, err := SumAxis(prob, 1)
	if err != nil {
		t.Fatalf("SumAxis failed: %v", err)
	}
	for _, v := range total.Data() {
		if math.Abs(v-1) > 1e-9 {
			t.Fatalf("channel probabilities should sum to one, got %v", v)
		}
	}
	if _, err := Softmax(input, 4); err == nil {
		t.Fatalf("expected axis error")
	}
}
