package trainer

import (
	"errors"
	"fmt"
	"log"

	"github.com/fumitoshi0524/colordistill/data"
	"github.com/fumitoshi0524/colordistill/loss"
	"github.com/fumitoshi0524/colordistill/metrics"
	"github.com/fumitoshi0524/colordistill/optim"
	"github.com/fumitoshi0524/colordistill/report"
	"github.com/fumitoshi0524/colordistill/tensor"
)

// ErrEmptyLoader is returned when a loader yields no batches.
var ErrEmptyLoader = errors.New("trainer: empty loader")

const defaultLogInterval = 100

// Loader yields a finite, restartable sequence of batches.
type Loader interface {
	Len() int
	Iterate(fn func(batchIdx int, b data.Batch) error) error
}

// Optimizer applies one update from the gradients left by Backward.
type Optimizer interface {
	ZeroGrad()
	Step() error
}

// Visualizer renders one evaluated sample.
type Visualizer interface {
	Visualize(s report.Sample) error
}

// Trainer drives one epoch of training or evaluation at a time.
type Trainer struct {
	Mode      Mode
	Criterion loss.Criterion // defaults to loss.CrossEntropy
	Denorm    data.Denormalizer

	Logger      *log.Logger // defaults to log.Default()
	LogInterval int         // batches between progress lines, default 100
	LogTerms    bool        // also log each loss term at LogInterval

	Visualizer     Visualizer // nil disables visualization
	VisualizeIndex int        // sample within each batch to visualize; negative disables
}

func (t *Trainer) criterion() loss.Criterion {
	if t.Criterion == nil {
		return loss.CrossEntropy
	}
	return t.Criterion
}

func (t *Trainer) logger() *log.Logger {
	if t.Logger == nil {
		return log.Default()
	}
	return t.Logger
}

func (t *Trainer) logInterval() int {
	if t.LogInterval <= 0 {
		return defaultLogInterval
	}
	return t.LogInterval
}

// Train runs one pass over loader, stepping opt after every batch and
// advancing sched, if any, to the fractional epoch reached. It returns the
// mean batch loss and the accuracy over all samples.
func (t *Trainer) Train(epoch int, loader Loader, opt Optimizer, sched optim.Scheduler) (float64, float64, error) {
	if t.Mode == nil {
		return 0, 0, errors.New("trainer: mode is required")
	}
	n := loader.Len()
	if n == 0 {
		return 0, 0, ErrEmptyLoader
	}
	logger := t.logger()
	stats := metrics.NewEpochStats()
	err := loader.Iterate(func(batchIdx int, b data.Batch) error {
		opt.ZeroGrad()
		out, err := t.Mode.forward(b.Inputs, true)
		if err != nil {
			return err
		}
		total, terms, err := t.Mode.objective(out, b.Inputs, b.Labels, t.criterion())
		if err != nil {
			return fmt.Errorf("loss: %w", err)
		}
		if err := total.Backward(); err != nil {
			return fmt.Errorf("backward: %w", err)
		}
		if err := opt.Step(); err != nil {
			return fmt.Errorf("optimizer step: %w", err)
		}
		stats.Record(total.Item(), metrics.CorrectCount(out.logits, b.Labels), b.Size())
		if sched != nil {
			sched.Advance(float64(epoch-1) + float64(batchIdx)/float64(n))
		}
		if (batchIdx+1)%t.logInterval() == 0 {
			s := stats.Summarize()
			logger.Printf("Train Epoch: %d, Batch:%d, \tLoss: %.6f, Prec: %.1f%%, Time: %.3f",
				epoch, batchIdx+1, s.MeanLoss(batchIdx+1), 100*s.Accuracy, s.Elapsed.Seconds())
			if t.LogTerms && terms != nil {
				logger.Printf("cls=%.6f usage=%.6f var=%.6f recon=%.6f avg_max=%.4f",
					terms.Classification, terms.Usage, terms.Variance, terms.Reconstruction, terms.AvgMax)
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	s := stats.Summarize()
	logger.Printf("Train Epoch: %d, Batch:%d, \tLoss: %.6f, Prec: %.1f%%, Time: %.3f",
		epoch, n, s.MeanLoss(n), 100*s.Accuracy, s.Elapsed.Seconds())
	return s.MeanLoss(n), s.Accuracy, nil
}

// EvalResult reports one evaluation pass. Compression is nil outside color
// quantization.
type EvalResult struct {
	Loss        float64
	Accuracy    float64
	Compression *metrics.CompressionSummary
}

// Test is Evaluate reduced to (mean loss, accuracy).
func (t *Trainer) Test(loader Loader) (float64, float64, error) {
	res, err := t.Evaluate(loader)
	if err != nil {
		return 0, 0, err
	}
	return res.Loss, res.Accuracy, nil
}

// Evaluate runs one pass over loader without recording gradients. The loss
// is the criterion on the classifier logits. In color quantization mode it
// also measures how many palette colors each image uses and how large its
// recolored version is as a PNG.
func (t *Trainer) Evaluate(loader Loader) (EvalResult, error) {
	if t.Mode == nil {
		return EvalResult{}, errors.New("trainer: mode is required")
	}
	n := loader.Len()
	if n == 0 {
		return EvalResult{}, ErrEmptyLoader
	}
	stats := metrics.NewEpochStats()
	var (
		comp          metrics.Compression
		height, width int
		quantized     bool
	)
	err := tensor.NoGrad(func() error {
		return loader.Iterate(func(batchIdx int, b data.Batch) error {
			out, err := t.Mode.forward(b.Inputs, false)
			if err != nil {
				return err
			}
			l, err := t.criterion()(out.logits, b.Labels)
			if err != nil {
				return fmt.Errorf("loss: %w", err)
			}
			stats.Record(l.Item(), metrics.CorrectCount(out.logits, b.Labels), b.Size())
			height, width = b.Inputs.Dim(2), b.Inputs.Dim(3)
			if out.quant != nil {
				quantized = true
				if err := t.recordCompression(&comp, out.quant.Image, out.quant.Prob); err != nil {
					return err
				}
			}
			return t.visualize(b, out)
		})
	})
	if err != nil {
		return EvalResult{}, err
	}

	s := stats.Summarize()
	logger := t.logger()
	// The logged loss divides by one batch more than the returned one.
	logger.Printf("Test, Loss: %.6f, Prec: %.1f%%, time: %.1f", s.MeanLoss(n+1), 100*s.Accuracy, s.Elapsed.Seconds())
	res := EvalResult{Loss: s.MeanLoss(n), Accuracy: s.Accuracy}
	if quantized {
		c := comp.Summarize(height, width)
		logger.Printf("Average number of colors per image: %g; \nAverage image size: %.1f; Bit per pixel: %.3f",
			c.AvgColors, c.AvgBytes, c.BitsPerPixel)
		res.Compression = &c
	}
	return res, nil
}

func (t *Trainer) recordCompression(comp *metrics.Compression, image, prob *tensor.Tensor) error {
	indices, err := tensor.ArgMax(prob, 1)
	if err != nil {
		return err
	}
	plane := prob.Dim(2) * prob.Dim(3)
	for i := 0; i < image.Dim(0); i++ {
		size, err := t.encodedSize(image, i)
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		comp.Record(metrics.UniqueCount(indices[i*plane:(i+1)*plane]), size)
	}
	return nil
}

func (t *Trainer) encodedSize(batch *tensor.Tensor, i int) (int, error) {
	sample, err := t.denormalized(batch, i)
	if err != nil {
		return 0, err
	}
	img, err := report.ToImage(sample)
	if err != nil {
		return 0, err
	}
	return report.EncodedSize(img)
}

func (t *Trainer) denormalized(batch *tensor.Tensor, i int) (*tensor.Tensor, error) {
	sample, err := batch.Sample(i)
	if err != nil {
		return nil, err
	}
	if t.Denorm != nil {
		sample = t.Denorm.Denormalize(sample)
	}
	return sample, nil
}

func (t *Trainer) visualize(b data.Batch, out forwardResult) error {
	idx := t.VisualizeIndex
	if t.Visualizer == nil || idx < 0 || idx >= b.Size() {
		return nil
	}
	original, err := b.Inputs.Sample(idx)
	if err != nil {
		return err
	}
	s := report.Sample{Original: original}
	if out.quant != nil {
		if s.Quantized, err = out.quant.Image.Sample(idx); err != nil {
			return err
		}
		indices, err := out.quant.IndexMap()
		if err != nil {
			return err
		}
		plane := b.Inputs.Dim(2) * b.Inputs.Dim(3)
		s.IndexMap = indices[idx*plane : (idx+1)*plane]
		s.NumColors = out.quant.Prob.Dim(1)
	}
	if err := t.Visualizer.Visualize(s); err != nil {
		return fmt.Errorf("visualize: %w", err)
	}
	return nil
}
