package tensor

import (
	"errors"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
)

var gradDisabled atomic.Bool

// GradEnabled reports whether new operations record a backward graph.
func GradEnabled() bool {
	return !gradDisabled.Load()
}

// NoGrad runs fn with graph recording switched off. The previous mode is
// restored when fn returns, including on error or panic.
func NoGrad(fn func() error) error {
	prev := gradDisabled.Swap(true)
	defer gradDisabled.Store(prev)
	return fn()
}

// tracks reports whether an op over the given inputs must record a node.
func tracks(inputs ...*Tensor) bool {
	if gradDisabled.Load() {
		return false
	}
	for _, in := range inputs {
		if in != nil && in.requiresGrad {
			return true
		}
	}
	return false
}

// attach wires out into the graph with the given parents and backward closure.
// Parents that do not require grad are skipped.
func attach(out *Tensor, backward func(grad *Tensor, grads map[*Tensor]*Tensor), inputs ...*Tensor) {
	parents := make([]*Tensor, 0, len(inputs))
	for _, in := range inputs {
		if in != nil && in.requiresGrad {
			parents = append(parents, in)
		}
	}
	out.requiresGrad = true
	out.parents = parents
	out.node = &node{backward: backward}
}

func (t *Tensor) Backward() error {
	if t == nil {
		return errors.New("nil tensor")
	}
	if !t.requiresGrad {
		return errors.New("tensor does not require grad")
	}
	order := topo(t)
	grads := map[*Tensor]*Tensor{}
	grads[t] = Full(1, t.shape...)
	for i := len(order) - 1; i >= 0; i-- {
		current := order[i]
		grad := grads[current]
		if grad == nil {
			continue
		}
		// Only leaves keep their gradient; intermediates are released with the graph.
		if current.node == nil {
			if current.grad == nil {
				current.grad = grad.Clone()
			} else {
				addInPlace(current.grad, grad)
			}
			continue
		}
		current.node.backward(grad, grads)
	}
	return nil
}

func topo(root *Tensor) []*Tensor {
	visited := map[*Tensor]bool{}
	var order []*Tensor
	var visit func(*Tensor)
	visit = func(node *Tensor) {
		if node == nil || visited[node] {
			return
		}
		visited[node] = true
		for _, parent := range node.parents {
			visit(parent)
		}
		order = append(order, node)
	}
	visit(root)
	return order
}

func accumulate(grads map[*Tensor]*Tensor, target *Tensor, value *Tensor) {
	if target == nil || value == nil {
		return
	}
	if existing, ok := grads[target]; ok {
		addInPlace(existing, value)
	} else {
		grads[target] = value.Clone()
	}
}

func addInPlace(dst, src *Tensor) {
	if len(dst.data) != len(src.data) {
		panic("gradient size mismatch")
	}
	floats.Add(dst.data, src.data)
}
