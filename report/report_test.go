package report

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/fumitoshi0524/colordistill/data"
	"github.com/fumitoshi0524/colordistill/tensor"
)

func TestToImageGray(t *testing.T) {
	img, err := ToImage(tensor.MustNew([]float64{0, 0.5, 1, 2}, 1, 2, 2))
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("expected *image.Gray, got %T", img)
	}
	want := []uint8{0, 127, 255, 255}
	for i, v := range gray.Pix {
		if v != want[i] {
			t.Fatalf("pix[%d] = %d want %d", i, v, want[i])
		}
	}
}

func TestToImageRGB(t *testing.T) {
	// One pixel, planar channels R=1, G=0.2, B=-1.
	img, err := ToImage(tensor.MustNew([]float64{1, 0.2, -1}, 3, 1, 1))
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	got := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
	if got != (color.NRGBA{R: 255, G: 51, B: 0, A: 255}) {
		t.Fatalf("unexpected pixel %+v", got)
	}
	if _, err := ToImage(tensor.Zeros(2, 1, 1)); err == nil {
		t.Fatalf("expected error for two channels")
	}
	if _, err := ToImage(tensor.Zeros(1, 1)); err == nil {
		t.Fatalf("expected error for rank 2 tensor")
	}
}

func TestEncodedSizeMatchesFile(t *testing.T) {
	img, err := ToImage(tensor.Full(0.4, 3, 8, 8))
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	n, err := EncodedSize(img)
	if err != nil {
		t.Fatalf("EncodedSize: %v", err)
	}
	path := filepath.Join(t.TempDir(), "x.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if int64(n) != info.Size() {
		t.Fatalf("EncodedSize %d, file size %d", n, info.Size())
	}
}

func TestBluesEndpoints(t *testing.T) {
	if Blues(-1) != blues[0] || Blues(0) != blues[0] {
		t.Fatalf("expected lightest color at 0")
	}
	if Blues(1) != blues[len(blues)-1] {
		t.Fatalf("expected darkest color at 1")
	}
	if Blues(0.5) != blues[4] {
		t.Fatalf("expected midpoint anchor, got %+v", Blues(0.5))
	}
}

func TestIndexImage(t *testing.T) {
	img, err := IndexImage([]int{0, 1, 2, 2}, 2, 2, 3)
	if err != nil {
		t.Fatalf("IndexImage: %v", err)
	}
	if got := img.At(1, 0).(color.NRGBA); got != Blues(0.5) {
		t.Fatalf("unexpected color for index 1: %+v", got)
	}
	if got := img.At(1, 1).(color.NRGBA); got != Blues(1) {
		t.Fatalf("unexpected color for index 2: %+v", got)
	}
	if _, err := IndexImage([]int{0}, 2, 2, 3); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

func TestPNGVisualizerQuantized(t *testing.T) {
	dir := t.TempDir()
	v := &PNGVisualizer{Dir: dir, Denorm: data.MNISTNormalizer, Size: 16}
	err := v.Visualize(Sample{
		Original:  tensor.Zeros(1, 4, 4),
		Quantized: tensor.Ones(1, 4, 4),
		IndexMap:  make([]int, 16),
		NumColors: 2,
	})
	if err != nil {
		t.Fatalf("Visualize: %v", err)
	}
	for _, name := range []string{"og_img.png", "colorcnn.png", "index_map.png"} {
		img := readPNG(t, filepath.Join(dir, name))
		if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 16 {
			t.Fatalf("%s has size %v, want 16x16", name, b)
		}
	}
}

func TestPNGVisualizerPlainUsesSampleMethod(t *testing.T) {
	dir := t.TempDir()
	v := &PNGVisualizer{Dir: dir, SampleMethod: "mcut", Size: 8}
	if err := v.Visualize(Sample{Original: tensor.Full(0.5, 3, 2, 2)}); err != nil {
		t.Fatalf("Visualize: %v", err)
	}
	readPNG(t, filepath.Join(dir, "mcut.png"))
	if _, err := os.Stat(filepath.Join(dir, "colorcnn.png")); !os.IsNotExist(err) {
		t.Fatalf("plain visualization should not write colorcnn.png")
	}
	if err := v.Visualize(Sample{}); err == nil {
		t.Fatalf("expected error without original image")
	}
}
