package nn

import "github.com/fumitoshi0524/colordistill/tensor"

type Module interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	ZeroGrad()
}

func ZeroGradAll(mods ...Module) {
	for _, m := range mods {
		if m == nil {
			continue
		}
		m.ZeroGrad()
	}
}

// ParameterCount returns the number of scalar weights across mods.
func ParameterCount(mods ...Module) int {
	total := 0
	for _, m := range mods {
		if m == nil {
			continue
		}
		for _, p := range m.Parameters() {
			total += p.Numel()
		}
	}
	return total
}

func zeroGrad(params []*tensor.Tensor) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
