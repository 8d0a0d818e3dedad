package data

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/draw"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// LoadImageFolder reads root/<class>/<image> into RGB samples resized to
// size x size. Class indices follow the sorted directory names.
func LoadImageFolder(root string, size int) (*InMemory, []string, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("image size must be positive, got %d", size)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, fmt.Errorf("image folder: %w", err)
	}
	var classes []string
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	sort.Strings(classes)
	if len(classes) == 0 {
		return nil, nil, fmt.Errorf("image folder %s has no class directories", root)
	}

	var (
		images []float64
		labels []int
	)
	for label, class := range classes {
		files, err := discoverImages(filepath.Join(root, class))
		if err != nil {
			return nil, nil, err
		}
		for _, path := range files {
			pixels, err := readImage(path, size)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", path, err)
			}
			images = append(images, pixels...)
			labels = append(labels, label)
		}
	}
	ds, err := NewInMemory(images, labels, 3, size, size)
	if err != nil {
		return nil, nil, err
	}
	return ds, classes, nil
}

func discoverImages(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && imageExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover images: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func readImage(path string, size int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return imageToCHW(img, size), nil
}

// imageToCHW resizes img to size x size and lays it out as planar RGB in [0, 1].
func imageToCHW(img image.Image, size int) []float64 {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	plane := size * size
	out := make([]float64, 3*plane)
	for i := 0; i < plane; i++ {
		px := dst.Pix[i*4 : i*4+3]
		for c := 0; c < 3; c++ {
			out[c*plane+i] = float64(px[c]) / 255.0
		}
	}
	return out
}
