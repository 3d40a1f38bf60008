package main

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"Myagara/internal/config"
	"Myagara/pkg/nn"
	"Myagara/pkg/trainer"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

func writeLeafDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	colours := map[string]color.NRGBA{
		"Corn_healthy":     {R: 40, G: 180, B: 50, A: 255},
		"Corn_Common_rust": {R: 150, G: 80, B: 20, A: 255},
	}
	for class, c := range colours {
		dir := filepath.Join(root, class)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for i := 0; i < 3; i++ {
			img := image.NewNRGBA(image.Rect(0, 0, 36, 36))
			for p := 0; p < len(img.Pix); p += 4 {
				img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = c.R+uint8(i), c.G, c.B, 255
			}
			f, err := os.Create(filepath.Join(dir, string(rune('a'+i))+".png"))
			require.NoError(t, err)
			require.NoError(t, png.Encode(f, img))
			require.NoError(t, f.Close())
		}
	}
	return root
}

func testConfig(t *testing.T) config.TrainConfig {
	out := filepath.Join(t.TempDir(), "myagara.nn")
	return config.TrainConfig{
		DatasetDir:   writeLeafDir(t),
		ImageSize:    32,
		BatchSize:    3,
		Seed:         123,
		Epochs:       1,
		LearningRate: 0.001,
		Workers:      2,
		OutputPath:   out,
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRunCancelledBeforeFirstEpochKeepsExistingModel(t *testing.T) {
	cfg := testConfig(t)
	previous := []byte("previous artifact")
	require.NoError(t, os.WriteFile(cfg.OutputPath, previous, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, quietLogger(), cfg)
	assert.ErrorIs(t, err, context.Canceled)

	data, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, previous, data)
	assert.NoFileExists(t, nn.MetadataPath(cfg.OutputPath))
}

func TestRunSavesArtifactAndMetadata(t *testing.T) {
	cfg := testConfig(t)

	require.NoError(t, run(context.Background(), quietLogger(), cfg))

	_, meta, err := nn.LoadArtifact(cfg.OutputPath, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Corn_Common_rust", "Corn_healthy"}, meta.Classes)
	assert.Equal(t, 1, meta.EpochsRun)
	assert.FileExists(t, filepath.Join(filepath.Dir(cfg.OutputPath), "myagara.best.nn"))
}

func TestShouldSave(t *testing.T) {
	trained := &trainer.Result{BestEpoch: 3}
	untrained := &trainer.Result{}

	assert.True(t, shouldSave(trained, nil))
	assert.True(t, shouldSave(trained, context.Canceled))
	assert.True(t, shouldSave(trained, context.DeadlineExceeded))
	assert.False(t, shouldSave(trained, errors.New("checkpoint: disk full")))
	assert.False(t, shouldSave(untrained, context.Canceled))
	assert.False(t, shouldSave(untrained, nil))
	assert.False(t, shouldSave(nil, errors.New("dataset has no images")))
}
