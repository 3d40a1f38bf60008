package trainer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"time"

	"Myagara/pkg/dataset"
	"Myagara/pkg/log"
	"Myagara/pkg/nn"
	"Myagara/pkg/utils"

	"github.com/cheggaaa/pb/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type Config struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         int64
	// Patience is the number of epochs without improvement tolerated before
	// stopping. Zero or less disables early stopping.
	Patience       int
	Augmentation   dataset.Augmentation
	CheckpointPath string
	Progress       io.Writer
}

func DefaultConfig() Config {
	return Config{
		Epochs:       20,
		BatchSize:    32,
		LearningRate: 0.001,
		Seed:         123,
		Patience:     5,
		Augmentation: dataset.DefaultAugmentation(),
		Progress:     os.Stderr,
	}
}

type EpochStats struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
	Improved    bool
	Duration    time.Duration
}

type Result struct {
	History         []EpochStats
	BestEpoch       int
	BestValLoss     float64
	BestValAccuracy float64
	StoppedEarly    bool
	Metadata        nn.Metadata
}

type Trainer struct {
	log   *logrus.Logger
	cfg   Config
	utils utils.IUtils
}

func New(logger *logrus.Logger, cfg Config) (*Trainer, error) {
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", cfg.Epochs)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.LearningRate < 0 {
		return nil, fmt.Errorf("learning rate must not be negative, got %v", cfg.LearningRate)
	}
	return &Trainer{
		log:   logger,
		cfg:   cfg,
		utils: utils.New(0),
	}, nil
}

// Fit trains m in place. Validation loss is monitored when a validation split
// exists, training loss otherwise. On return the model holds the weights of
// the best epoch, including when ctx is cancelled mid-training.
func (t *Trainer) Fit(ctx context.Context, m *nn.Model, ds *dataset.Dataset) (*Result, error) {
	if len(ds.Train) == 0 {
		return nil, dataset.ErrEmptyDataset
	}
	if m.NumClasses() != len(ds.Classes) {
		return nil, fmt.Errorf("model has %d outputs, dataset has %d classes", m.NumClasses(), len(ds.Classes))
	}

	version, err := t.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return nil, fmt.Errorf("generate model version: %w", err)
	}

	rng := rand.New(rand.NewSource(t.cfg.Seed))
	opt := nn.NewAdam(t.cfg.LearningRate)

	res := &Result{BestValLoss: math.Inf(1)}
	res.Metadata = t.metadata(version, ds)

	var best [][]float64
	wait := 0

	t.log.WithFields(log.Fields{
		"model_version": version,
		"classes":       len(ds.Classes),
		"train":         len(ds.Train),
		"validation":    len(ds.Validation),
		"image_size":    ds.ImageSize,
	}).Info("Training started")

	var fitErr error
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		stats, err := t.runEpoch(ctx, epoch, m, ds, opt, rng)
		if err != nil {
			fitErr = err
			break
		}

		monitor := stats.Loss
		if len(ds.Validation) > 0 {
			monitor = stats.ValLoss
		}

		if monitor < res.BestValLoss {
			stats.Improved = true
			res.BestValLoss = monitor
			res.BestValAccuracy = stats.ValAccuracy
			if len(ds.Validation) == 0 {
				res.BestValAccuracy = stats.Accuracy
			}
			res.BestEpoch = epoch
			best = m.Snapshot()
			wait = 0

			if t.cfg.CheckpointPath != "" {
				meta := t.finish(res, epoch)
				if err := nn.SaveArtifact(m, meta, t.cfg.CheckpointPath); err != nil {
					fitErr = fmt.Errorf("checkpoint: %w", err)
					res.History = append(res.History, stats)
					break
				}
			}
		} else {
			wait++
		}
		res.History = append(res.History, stats)

		t.log.WithFields(log.Fields{
			"epoch":        epoch,
			"loss":         round4(stats.Loss),
			"accuracy":     round4(stats.Accuracy),
			"val_loss":     round4(stats.ValLoss),
			"val_accuracy": round4(stats.ValAccuracy),
			"improved":     stats.Improved,
			"duration":     stats.Duration.Round(time.Millisecond).String(),
		}).Info("Epoch finished")

		if t.cfg.Patience > 0 && wait >= t.cfg.Patience {
			res.StoppedEarly = true
			t.log.WithFields(log.Fields{
				"epoch":      epoch,
				"best_epoch": res.BestEpoch,
			}).Info("Early stopping")
			break
		}
	}

	if best != nil {
		if err := m.Restore(best); err != nil {
			return nil, fmt.Errorf("restore best weights: %w", err)
		}
	}
	res.Metadata = t.finish(res, len(res.History))
	if fitErr != nil {
		return res, fitErr
	}
	return res, nil
}

func (t *Trainer) runEpoch(ctx context.Context, epoch int, m *nn.Model, ds *dataset.Dataset, opt *nn.Adam, rng *rand.Rand) (EpochStats, error) {
	start := time.Now()
	stats := EpochStats{Epoch: epoch}

	var bar *pb.ProgressBar
	if t.cfg.Progress != nil {
		bar = pb.New(len(ds.Train)).SetWriter(t.cfg.Progress)
		bar.Set("prefix", fmt.Sprintf("epoch %d/%d ", epoch, t.cfg.Epochs))
		bar.Start()
		defer bar.Finish()
	}

	var lossSum float64
	correct, seen := 0, 0
	for _, batch := range dataset.Batches(ds.Train, t.cfg.BatchSize, rng) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		examples, err := ds.Examples(batch, t.cfg.Augmentation, rng)
		if err != nil {
			return stats, err
		}

		m.ZeroGrad()
		for _, ex := range examples {
			loss, probs, err := m.TrainStep(ex.X, ex.Label, rng)
			if err != nil {
				return stats, err
			}
			lossSum += loss
			if nn.ArgMax(probs) == ex.Label {
				correct++
			}
			seen++
		}
		opt.Step(m.Params(), 1/float64(len(examples)))

		if bar != nil {
			bar.Add(len(batch))
		}
	}

	stats.Loss = lossSum / float64(seen)
	stats.Accuracy = float64(correct) / float64(seen)

	if len(ds.Validation) > 0 {
		loss, acc, err := Evaluate(ctx, m, ds, ds.Validation)
		if err != nil {
			return stats, err
		}
		stats.ValLoss, stats.ValAccuracy = loss, acc
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

// Evaluate returns the mean loss and the accuracy of m over samples, without
// augmentation or dropout.
func Evaluate(ctx context.Context, m *nn.Model, ds *dataset.Dataset, samples []dataset.Sample) (float64, float64, error) {
	if len(samples) == 0 {
		return 0, 0, errors.New("no samples to evaluate")
	}
	var lossSum float64
	correct := 0
	for _, batch := range dataset.Batches(samples, 64, nil) {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		examples, err := ds.Examples(batch, dataset.Augmentation{}, nil)
		if err != nil {
			return 0, 0, err
		}
		for _, ex := range examples {
			logits, err := m.Logits(ex.X)
			if err != nil {
				return 0, 0, err
			}
			probs := nn.Softmax(logits.Data)
			lossSum += nn.CrossEntropy(probs, ex.Label)
			if nn.ArgMax(probs) == ex.Label {
				correct++
			}
		}
	}
	n := float64(len(samples))
	return lossSum / n, float64(correct) / n, nil
}

func (t *Trainer) metadata(version string, ds *dataset.Dataset) nn.Metadata {
	size := int64(ds.ImageSize)
	return nn.Metadata{
		SchemaVersion: nn.MetadataSchemaVersion,
		ModelVersion:  version,
		Classes:       append([]string(nil), ds.Classes...),
		ImageSize:     ds.ImageSize,
		InputShape:    []int64{1, 3, size, size},
	}
}

func (t *Trainer) finish(res *Result, epochs int) nn.Metadata {
	meta := res.Metadata
	meta.CreatedAt = time.Now().UTC()
	meta.BestValLoss = res.BestValLoss
	meta.BestValAccuracy = res.BestValAccuracy
	meta.EpochsRun = epochs
	return meta
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
