package main

import (
	"Myagara/internal/config"
	"Myagara/pkg/dataset"
	"Myagara/pkg/log"
	"Myagara/pkg/nn"
	"Myagara/pkg/trainer"
	"errors"
	"flag"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"io/fs"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Fatalf("Error loading .env file: %v", err)
	}
	if os.Getenv("LOG_NAME") == "" {
		os.Setenv("LOG_NAME", "train")
	}
	logger := log.NewLogger()

	cfg, err := config.LoadTrainConfig()
	if err != nil {
		logger.Fatal(err)
	}
	parseFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal(err)
	}
	log.Debug(log.Fields{
		"dataset":    cfg.DatasetDir,
		"image_size": cfg.ImageSize,
		"batch_size": cfg.BatchSize,
		"epochs":     cfg.Epochs,
		"patience":   cfg.Patience,
		"lr":         cfg.LearningRate,
	}, "Training configuration")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Fatal(err)
	}
}

// parseFlags lets the command line override the environment.
func parseFlags(cfg *config.TrainConfig) {
	fset := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fset.StringVar(&cfg.DatasetDir, "dataset", cfg.DatasetDir, "directory with one subdirectory per class")
	fset.IntVar(&cfg.ImageSize, "image-size", cfg.ImageSize, "square input resolution in pixels")
	fset.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "examples per optimizer step")
	fset.Float64Var(&cfg.ValidationSplit, "validation-split", cfg.ValidationSplit, "fraction of images held out for validation")
	fset.Int64Var(&cfg.Seed, "seed", cfg.Seed, "seed for the split, shuffling, augmentation and weight init")
	fset.IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "maximum number of epochs")
	fset.IntVar(&cfg.Patience, "patience", cfg.Patience, "epochs without improvement before stopping, 0 disables")
	fset.Float64Var(&cfg.LearningRate, "lr", cfg.LearningRate, "Adam learning rate")
	fset.IntVar(&cfg.Workers, "workers", cfg.Workers, "image decoding workers, 0 means one per CPU")
	fset.StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "path of the final model artifact")
	fset.StringVar(&cfg.CheckpointPath, "checkpoint", cfg.CheckpointPath, "path of the best-model checkpoint")
	_ = fset.Parse(os.Args[1:])
}

func run(ctx context.Context, logger *logrus.Logger, cfg config.TrainConfig) error {
	ds, err := dataset.Load(dataset.Options{
		Dir:             cfg.DatasetDir,
		ImageSize:       cfg.ImageSize,
		ValidationSplit: cfg.ValidationSplit,
		Seed:            cfg.Seed,
		Workers:         cfg.Workers,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"classes":    ds.Classes,
		"train":      len(ds.Train),
		"validation": len(ds.Validation),
	}).Info("Dataset loaded")
	for _, path := range ds.Skipped {
		logger.WithField("path", path).Warn("Skipped undecodable image")
	}

	model, err := nn.Build(nn.DefaultArchitecture(cfg.ImageSize, len(ds.Classes)), rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return err
	}

	checkpoint := cfg.CheckpointPath
	if checkpoint == "" {
		ext := filepath.Ext(cfg.OutputPath)
		checkpoint = cfg.OutputPath[:len(cfg.OutputPath)-len(ext)] + ".best" + ext
	}

	tc := trainer.DefaultConfig()
	tc.Epochs = cfg.Epochs
	tc.BatchSize = cfg.BatchSize
	tc.LearningRate = cfg.LearningRate
	tc.Seed = cfg.Seed
	tc.Patience = cfg.Patience
	tc.CheckpointPath = checkpoint

	t, err := trainer.New(logger, tc)
	if err != nil {
		return err
	}

	res, fitErr := t.Fit(ctx, model, ds)
	if !shouldSave(res, fitErr) {
		if fitErr == nil {
			fitErr = errNothingLearned
		}
		logger.WithFields(logrus.Fields{
			"path":  cfg.OutputPath,
			"error": fitErr.Error(),
		}).Warn("No usable weights, keeping the existing model")
		return fitErr
	}
	if fitErr != nil {
		logger.WithError(fitErr).Warn("Training interrupted, saving best weights so far")
	}

	if err := nn.SaveArtifact(model, res.Metadata, cfg.OutputPath); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"path":              cfg.OutputPath,
		"metadata":          nn.MetadataPath(cfg.OutputPath),
		"checkpoint":        checkpoint,
		"model_version":     res.Metadata.ModelVersion,
		"best_epoch":        res.BestEpoch,
		"best_val_loss":     res.BestValLoss,
		"best_val_accuracy": res.BestValAccuracy,
		"stopped_early":     res.StoppedEarly,
	}).Info("Model saved")

	return fitErr
}

var errNothingLearned = errors.New("no epoch improved on the initial weights")

// shouldSave reports whether the weights left by Fit may replace the output
// artifact: at least one epoch improved and training either finished or was
// interrupted by a signal.
func shouldSave(res *trainer.Result, fitErr error) bool {
	if res == nil || res.BestEpoch == 0 {
		return false
	}
	return fitErr == nil || errors.Is(fitErr, context.Canceled) || errors.Is(fitErr, context.DeadlineExceeded)
}
