package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fumitoshi0524/colordistill/tensor"
)

// Checkpoint names the parameter lists of one run, e.g. "colorcnn" and
// "classifier". Entries are stored as "<group>.<index>".
type Checkpoint map[string][]*tensor.Tensor

func (c Checkpoint) flatten() map[string]*tensor.Tensor {
	out := make(map[string]*tensor.Tensor)
	for group, params := range c {
		for i, p := range params {
			out[fmt.Sprintf("%s.%d", group, i)] = p
		}
	}
	return out
}

// Save writes every parameter to path, replacing it atomically.
func (c Checkpoint) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tensor.WriteTensors(tmp, c.flatten()); err != nil {
		tmp.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load overwrites the parameters in c with the values stored at path. Every
// parameter must be present with a matching shape.
func (c Checkpoint) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	stored, err := tensor.ReadTensors(f)
	if err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}
	want := c.flatten()
	names := make([]string, 0, len(want))
	for name := range want {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		src, ok := stored[name]
		if !ok {
			return fmt.Errorf("checkpoint %s: missing %s", path, name)
		}
		dst := want[name]
		if !sameShape(src.Shape(), dst.Shape()) {
			return fmt.Errorf("checkpoint %s: %s has shape %v, want %v", path, name, src.Shape(), dst.Shape())
		}
		if err := dst.SetData(src.Data()); err != nil {
			return err
		}
	}
	return nil
}

func sameShape(a, b []int) bool {
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
