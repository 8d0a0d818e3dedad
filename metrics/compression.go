package metrics

// Compression accumulates per-image quantization statistics: how many
// distinct palette colors each image used and its encoded size.
type Compression struct {
	colors  int
	bytes   int
	samples int
}

func (c *Compression) Record(uniqueColors, encodedBytes int) {
	c.colors += uniqueColors
	c.bytes += encodedBytes
	c.samples++
}

// Samples returns the number of recorded images.
func (c *Compression) Samples() int {
	return c.samples
}

// Summarize averages the recorded images. Bits per pixel is the average
// encoded size in bits over an image of height x width pixels.
func (c *Compression) Summarize(height, width int) CompressionSummary {
	if c.samples == 0 {
		return CompressionSummary{}
	}
	n := float64(c.samples)
	avgBytes := float64(c.bytes) / n
	return CompressionSummary{
		AvgColors:    float64(c.colors) / n,
		AvgBytes:     avgBytes,
		BitsPerPixel: avgBytes * 8 / float64(height*width),
	}
}

type CompressionSummary struct {
	AvgColors    float64
	AvgBytes     float64
	BitsPerPixel float64
}

// UniqueCount returns the number of distinct values in indices.
func UniqueCount(indices []int) int {
	seen := make(map[int]struct{}, 8)
	for _, idx := range indices {
		seen[idx] = struct{}{}
	}
	return len(seen)
}
