package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/klauspost/cpuid/v2"

	"github.com/fumitoshi0524/colordistill/data"
	"github.com/fumitoshi0524/colordistill/internal/config"
	"github.com/fumitoshi0524/colordistill/internal/parallel"
	"github.com/fumitoshi0524/colordistill/loss"
	"github.com/fumitoshi0524/colordistill/model"
	"github.com/fumitoshi0524/colordistill/nn"
	"github.com/fumitoshi0524/colordistill/optim"
	"github.com/fumitoshi0524/colordistill/report"
	"github.com/fumitoshi0524/colordistill/tensor"
	"github.com/fumitoshi0524/colordistill/trainer"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (built-in defaults when empty)")
	dataset := flag.String("dataset", "", "Dataset: synthetic, mnist or folder")
	dataDir := flag.String("data-dir", "", "Dataset directory")
	mode := flag.String("mode", "", "Training mode: plain or colorcnn")
	numColors := flag.Int("num-colors", 0, "Palette size")
	epochs := flag.Int("epochs", 0, "Number of epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	lr := flag.Float64("lr", 0, "Learning rate")
	scheduler := flag.String("scheduler", "", "LR scheduler: none, cosine or onecycle")
	logInterval := flag.Int("log-interval", 0, "Log every N batches")
	visualize := flag.Bool("visualize", false, "Write sample PNGs during evaluation")
	checkpoint := flag.String("checkpoint", "", "Save weights here after every epoch")
	resume := flag.Bool("resume", false, "Load weights from -checkpoint before training")
	seed := flag.Int64("seed", 0, "PRNG seed")
	workers := flag.Int("workers", 0, "Kernel worker goroutines (0 = physical cores)")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.ApplyOverrides(config.Overrides{
		Dataset:     *dataset,
		DataDir:     *dataDir,
		Mode:        *mode,
		NumColors:   *numColors,
		Epochs:      *epochs,
		BatchSize:   *batchSize,
		LR:          *lr,
		Scheduler:   *scheduler,
		LogInterval: *logInterval,
		Visualize:   *visualize,
		Checkpoint:  *checkpoint,
		Resume:      *resume,
		Seed:        *seed,
		Workers:     *workers,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	parallel.SetWorkers(cfg.Workers)
	log.Printf("cpu=%q physical_cores=%d workers=%d", cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, parallel.Workers())
	tensor.Seed(cfg.Seed)

	train, test, norm, classes, err := loadData(cfg)
	if err != nil {
		log.Fatalf("load %s: %v", cfg.Dataset, err)
	}
	channels, height, width := train.Shape()
	log.Printf("dataset=%s train=%d test=%d shape=%dx%dx%d classes=%d",
		cfg.Dataset, train.Count(), test.Count(), channels, height, width, classes)

	trainMode, params, ckpt, err := buildMode(cfg, channels, classes)
	if err != nil {
		log.Fatalf("build model: %v", err)
	}
	if cfg.Resume {
		if err := ckpt.Load(cfg.Checkpoint); err != nil {
			log.Fatalf("resume: %v", err)
		}
		log.Printf("resumed from %s", cfg.Checkpoint)
	}
	trainLoader := data.NewLoader(train, data.LoaderConfig{BatchSize: cfg.BatchSize, Shuffle: true, Seed: cfg.Seed})
	testLoader := data.NewLoader(test, data.LoaderConfig{BatchSize: cfg.BatchSize})

	opt := buildOptimizer(cfg, params)
	sched, err := buildScheduler(cfg, opt, trainLoader.Len())
	if err != nil {
		log.Fatalf("build scheduler: %v", err)
	}

	tr := &trainer.Trainer{
		Mode:           trainMode,
		Criterion:      loss.CrossEntropy,
		Denorm:         norm,
		LogInterval:    cfg.LogInterval,
		VisualizeIndex: cfg.VisualizeIndex,
	}
	if cfg.Visualize {
		tr.Visualizer = &report.PNGVisualizer{Denorm: norm, SampleMethod: cfg.SampleMethod}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if ctx.Err() != nil {
			log.Printf("interrupted before epoch %d", epoch)
			break
		}
		trainLoss, trainAcc, err := tr.Train(epoch, trainLoader, opt, sched)
		if err != nil {
			log.Fatalf("train epoch %d: %v", epoch, err)
		}
		testLoss, testAcc, err := tr.Test(testLoader)
		if err != nil {
			log.Fatalf("test epoch %d: %v", epoch, err)
		}
		fmt.Printf("epoch %02d lr %.5f train_loss %.4f train_acc %.2f%% test_loss %.4f test_acc %.2f%%\n",
			epoch, opt.LR(), trainLoss, trainAcc*100, testLoss, testAcc*100)
		if cfg.Checkpoint != "" {
			if err := ckpt.Save(cfg.Checkpoint); err != nil {
				log.Fatalf("save checkpoint: %v", err)
			}
		}
	}
}

func loadData(cfg *config.Config) (*data.InMemory, *data.InMemory, data.Normalizer, int, error) {
	var (
		train, test *data.InMemory
		norm        data.Normalizer
		classes     int
		err         error
	)
	switch cfg.Dataset {
	case "synthetic":
		all, err := data.Synthetic(data.SyntheticConfig{
			Samples:  cfg.TrainSamples + cfg.TestSamples,
			Classes:  cfg.NumClasses,
			Channels: 3,
			Size:     cfg.ImageSize,
			Noise:    0.1,
			Seed:     cfg.Seed,
		})
		if err != nil {
			return nil, nil, norm, 0, err
		}
		if train, test, err = all.Split(cfg.TrainSamples); err != nil {
			return nil, nil, norm, 0, err
		}
		norm = data.Normalizer{Mean: []float64{0.5, 0.5, 0.5}, Std: []float64{0.5, 0.5, 0.5}}
		classes = cfg.NumClasses
	case "mnist":
		dir := cfg.DataDir
		if dir == "" {
			dir = data.DefaultMNISTDir()
		}
		if train, test, err = data.LoadMNIST(dir); err != nil {
			return nil, nil, norm, 0, err
		}
		train, test = train.Head(cfg.TrainSamples), test.Head(cfg.TestSamples)
		norm = data.MNISTNormalizer
		classes = 10
	case "folder":
		var names []string
		if train, names, err = data.LoadImageFolder(filepath.Join(cfg.DataDir, "train"), cfg.ImageSize); err != nil {
			return nil, nil, norm, 0, err
		}
		if test, _, err = data.LoadImageFolder(filepath.Join(cfg.DataDir, "test"), cfg.ImageSize); err != nil {
			return nil, nil, norm, 0, err
		}
		norm = data.ImageNetNormalizer
		classes = len(names)
	default:
		return nil, nil, norm, 0, fmt.Errorf("unknown dataset %q", cfg.Dataset)
	}
	for _, ds := range []*data.InMemory{train, test} {
		if err := ds.Normalize(norm); err != nil {
			return nil, nil, norm, 0, err
		}
	}
	return train, test, norm, classes, nil
}

func buildMode(cfg *config.Config, channels, classes int) (trainer.Mode, []*tensor.Tensor, model.Checkpoint, error) {
	classifier := model.NewClassifier(channels, classes, 16)
	log.Printf("classifier params=%d", nn.ParameterCount(classifier))
	if cfg.Mode == config.ModePlain {
		ckpt := model.Checkpoint{"classifier": classifier.Parameters()}
		return trainer.PlainClassification{Model: classifier}, classifier.Parameters(), ckpt, nil
	}
	quantizer, err := model.NewColorCNN(model.ColorCNNConfig{
		InChannels:  channels,
		NumColors:   cfg.NumColors,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	ckpt := model.Checkpoint{"colorcnn": quantizer.Parameters(), "classifier": classifier.Parameters()}
	params := append(quantizer.Parameters(), classifier.Parameters()...)
	mode := trainer.ColorQuantizedClassification{
		Quantizer:  quantizer,
		Classifier: classifier,
		ColorQuantWeights: loss.ColorQuantWeights{
			Alpha:     cfg.Alpha,
			Beta:      cfg.Beta,
			Gamma:     cfg.Gamma,
			NumColors: cfg.NumColors,
		},
	}
	return mode, params, ckpt, nil
}

func buildOptimizer(cfg *config.Config, params []*tensor.Tensor) optim.Optimizer {
	if cfg.Optimizer == "adam" {
		return optim.NewAdamWithConfig(params, optim.AdamConfig{LR: cfg.LR, WeightDecay: cfg.WeightDecay, MaxGradNorm: cfg.MaxGradNorm})
	}
	return optim.NewSGDWithConfig(params, optim.SGDConfig{
		LR:          cfg.LR,
		Momentum:    cfg.Momentum,
		WeightDecay: cfg.WeightDecay,
		MaxGradNorm: cfg.MaxGradNorm,
	})
}

func buildScheduler(cfg *config.Config, opt optim.Optimizer, batchesPerEpoch int) (optim.Scheduler, error) {
	switch cfg.Scheduler {
	case "cosine":
		return optim.NewCosineWarmRestarts(opt, optim.CosineWarmRestartsConfig{T0: cfg.T0, TMult: cfg.TMult, EtaMin: cfg.EtaMin})
	case "onecycle":
		return optim.NewOneCycle(opt, optim.OneCycleConfig{MaxLR: cfg.MaxLR, TotalSteps: cfg.Epochs * batchesPerEpoch})
	default:
		return nil, nil
	}
}
