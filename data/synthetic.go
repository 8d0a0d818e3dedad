package data

import "math/rand"

type SyntheticConfig struct {
	Samples  int
	Classes  int
	Channels int
	Size     int
	Noise    float64
	Seed     int64
}

// Synthetic generates images whose class is encoded in color: every class owns
// a base color, and each sample paints a random rectangle of that color over a
// darker background of the same hue, plus uniform noise. Values stay in [0, 1].
func Synthetic(cfg SyntheticConfig) (*InMemory, error) {
	if cfg.Channels <= 0 {
		cfg.Channels = 3
	}
	if cfg.Size <= 0 {
		cfg.Size = 8
	}
	if cfg.Classes <= 0 {
		cfg.Classes = 2
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	palette := make([][]float64, cfg.Classes)
	for k := range palette {
		palette[k] = make([]float64, cfg.Channels)
		for c := range palette[k] {
			palette[k][c] = rng.Float64()
		}
	}
	plane := cfg.Size * cfg.Size
	images := make([]float64, cfg.Samples*cfg.Channels*plane)
	labels := make([]int, cfg.Samples)
	for i := range labels {
		label := rng.Intn(cfg.Classes)
		labels[i] = label
		x0, y0 := rng.Intn(cfg.Size), rng.Intn(cfg.Size)
		x1, y1 := x0+1+rng.Intn(cfg.Size-x0), y0+1+rng.Intn(cfg.Size-y0)
		base := i * cfg.Channels * plane
		for c := 0; c < cfg.Channels; c++ {
			for y := 0; y < cfg.Size; y++ {
				for x := 0; x < cfg.Size; x++ {
					v := palette[label][c] * 0.3
					if x >= x0 && x < x1 && y >= y0 && y < y1 {
						v = palette[label][c]
					}
					v += cfg.Noise * (rng.Float64() - 0.5)
					images[base+c*plane+y*cfg.Size+x] = clamp01(v)
				}
			}
		}
	}
	return NewInMemory(images, labels, cfg.Channels, cfg.Size, cfg.Size)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
