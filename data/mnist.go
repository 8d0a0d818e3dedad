package data

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	trainImagesFile = "train-images-idx3-ubyte.gz"
	trainLabelsFile = "train-labels-idx1-ubyte.gz"
	testImagesFile  = "t10k-images-idx3-ubyte.gz"
	testLabelsFile  = "t10k-labels-idx1-ubyte.gz"
)

var mnistMirrors = []string{
	"https://storage.googleapis.com/cvdf-datasets/mnist/",
	"https://ossci-datasets.s3.amazonaws.com/mnist/",
	"https://yann.lecun.com/exdb/mnist/",
}

// DefaultMNISTDir returns an OS-specific cache directory for MNIST assets.
func DefaultMNISTDir() string {
	return filepath.Join(os.TempDir(), "colordistill", "mnist")
}

// LoadMNIST reads the MNIST train and test splits from dir as [1, 28, 28]
// images scaled to [0, 1], downloading any missing file first.
func LoadMNIST(dir string) (*InMemory, *InMemory, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	train, err := loadMNISTSplit(dir, trainImagesFile, trainLabelsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("mnist train: %w", err)
	}
	test, err := loadMNISTSplit(dir, testImagesFile, testLabelsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("mnist test: %w", err)
	}
	return train, test, nil
}

func loadMNISTSplit(dir, imagesFile, labelsFile string) (*InMemory, error) {
	imgPath, err := downloadIfMissing(dir, imagesFile)
	if err != nil {
		return nil, err
	}
	lblPath, err := downloadIfMissing(dir, labelsFile)
	if err != nil {
		return nil, err
	}
	images, count, rows, cols, err := readIDXImages(imgPath)
	if err != nil {
		return nil, err
	}
	labels, err := readIDXLabels(lblPath)
	if err != nil {
		return nil, err
	}
	if len(labels) != count {
		return nil, fmt.Errorf("label count mismatch: got %d want %d", len(labels), count)
	}
	return NewInMemory(images, labels, 1, rows, cols)
}

func downloadIfMissing(dir, filename string) (string, error) {
	path := filepath.Join(dir, filename)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	var lastErr error
	for _, mirror := range mnistMirrors {
		url := mirror + filename
		log.Printf("downloading %s", url)
		if err := downloadFile(url, path); err != nil {
			log.Printf("failed %s: %v", url, err)
			lastErr = err
			continue
		}
		return path, nil
	}
	return "", fmt.Errorf("failed to download %s: %w", filename, lastErr)
}

func downloadFile(url, path string) error {
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmpPath := path + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func openGzip(path string) (io.ReadCloser, func(), error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	gz, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return gz, func() { gz.Close(); file.Close() }, nil
}

func readIDXImages(path string) ([]float64, int, int, int, error) {
	r, done, err := openGzip(path)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	defer done()
	return decodeIDXImages(r)
}

func decodeIDXImages(r io.Reader) ([]float64, int, int, int, error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, 0, err
	}
	if header[0] != 2051 {
		return nil, 0, 0, 0, fmt.Errorf("unexpected magic number %d for images", header[0])
	}
	num, rows, cols := int(header[1]), int(header[2]), int(header[3])
	raw := make([]byte, num*rows*cols)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, 0, 0, 0, err
	}
	data := make([]float64, len(raw))
	for i, b := range raw {
		data[i] = float64(b) / 255.0
	}
	return data, num, rows, cols, nil
}

func readIDXLabels(path string) ([]int, error) {
	r, done, err := openGzip(path)
	if err != nil {
		return nil, err
	}
	defer done()
	return decodeIDXLabels(r)
}

func decodeIDXLabels(r io.Reader) ([]int, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, err
	}
	if header[0] != 2049 {
		return nil, fmt.Errorf("unexpected magic number %d for labels", header[0])
	}
	raw := make([]byte, header[1])
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, err
	}
	labels := make([]int, len(raw))
	for i, b := range raw {
		labels[i] = int(b)
	}
	return labels, nil
}
