package tensor

import "fmt"

// Sample copies item i of the leading axis into a detached tensor of rank-1.
func (t *Tensor) Sample(i int) (*Tensor, error) {
	if len(t.shape) < 2 {
		return nil, fmt.Errorf("Sample expects rank >= 2, got %v", t.shape)
	}
	if i < 0 || i >= t.shape[0] {
		return nil, fmt.Errorf("sample %d out of range [0, %d)", i, t.shape[0])
	}
	size := t.strides[0]
	return MustNew(t.data[i*size:(i+1)*size], t.shape[1:]...), nil
}
