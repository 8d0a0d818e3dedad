package trainer

import (
	"errors"
	"fmt"

	"github.com/fumitoshi0524/colordistill/loss"
	"github.com/fumitoshi0524/colordistill/model"
	"github.com/fumitoshi0524/colordistill/tensor"
)

// Classifier maps an image batch to class logits.
type Classifier interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
}

// Quantizer recolors an image batch with a learned palette.
type Quantizer interface {
	Quantize(x *tensor.Tensor, training bool) (model.Quantized, error)
}

// Mode selects what the trainer optimizes. It is implemented only by
// PlainClassification and ColorQuantizedClassification.
type Mode interface {
	forward(x *tensor.Tensor, training bool) (forwardResult, error)
	objective(out forwardResult, x *tensor.Tensor, labels []int, criterion loss.Criterion) (*tensor.Tensor, *loss.ColorQuantTerms, error)
}

type forwardResult struct {
	logits *tensor.Tensor
	quant  *model.Quantized
}

// PlainClassification trains Model on the raw images with the criterion alone.
type PlainClassification struct {
	Model Classifier
}

func (m PlainClassification) forward(x *tensor.Tensor, _ bool) (forwardResult, error) {
	if m.Model == nil {
		return forwardResult{}, errors.New("trainer: plain classification requires a model")
	}
	logits, err := m.Model.Forward(x)
	if err != nil {
		return forwardResult{}, fmt.Errorf("model: %w", err)
	}
	return forwardResult{logits: logits}, nil
}

func (m PlainClassification) objective(out forwardResult, _ *tensor.Tensor, labels []int, criterion loss.Criterion) (*tensor.Tensor, *loss.ColorQuantTerms, error) {
	l, err := criterion(out.logits, labels)
	return l, nil, err
}

// ColorQuantizedClassification trains Quantizer and Classifier jointly: the
// classifier sees the recolored images and the objective is loss.ColorQuant.
type ColorQuantizedClassification struct {
	Quantizer  Quantizer
	Classifier Classifier
	loss.ColorQuantWeights
}

func (m ColorQuantizedClassification) forward(x *tensor.Tensor, training bool) (forwardResult, error) {
	if m.Quantizer == nil || m.Classifier == nil {
		return forwardResult{}, errors.New("trainer: color quantization requires a quantizer and a classifier")
	}
	q, err := m.Quantizer.Quantize(x, training)
	if err != nil {
		return forwardResult{}, fmt.Errorf("quantizer: %w", err)
	}
	logits, err := m.Classifier.Forward(q.Image)
	if err != nil {
		return forwardResult{}, fmt.Errorf("classifier: %w", err)
	}
	return forwardResult{logits: logits, quant: &q}, nil
}

func (m ColorQuantizedClassification) objective(out forwardResult, x *tensor.Tensor, labels []int, criterion loss.Criterion) (*tensor.Tensor, *loss.ColorQuantTerms, error) {
	total, terms, err := loss.ColorQuant(m.ColorQuantWeights, criterion, loss.ColorQuantInput{
		Input:         x,
		Reconstructed: out.quant.Image,
		Prob:          out.quant.Prob,
		Palette:       out.quant.Palette,
		Logits:        out.logits,
		Targets:       labels,
	})
	if err != nil {
		return nil, nil, err
	}
	return total, &terms, nil
}
