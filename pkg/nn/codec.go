package nn

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	artifactFormat  = "myagara-nn"
	artifactVersion = 1
)

const (
	kindConv2D    = "conv2d"
	kindMaxPool2D = "maxpool2d"
	kindDense     = "dense"
	kindReLU      = "relu"
	kindDropout   = "dropout"
	kindFlatten   = "flatten"
)

var ErrBadArtifact = errors.New("invalid model artifact")

type layerSpec struct {
	Kind   string
	Ints   []int
	Rate   float64
	Weight []float64
	Bias   []float64
}

type artifact struct {
	Format     string
	Version    int
	InputShape []int
	Layers     []layerSpec
}

// Encode writes the model architecture and weights.
func (m *Model) Encode(w io.Writer) error {
	a := artifact{
		Format:     artifactFormat,
		Version:    artifactVersion,
		InputShape: m.InputShape,
		Layers:     make([]layerSpec, len(m.Layers)),
	}
	for i, l := range m.Layers {
		a.Layers[i] = l.spec()
	}
	return gob.NewEncoder(w).Encode(a)
}

// Save writes the model to path through a temporary file, so a reader never
// sees a partially written artifact.
func (m *Model) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := m.Encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp model file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func Decode(r io.Reader) (*Model, error) {
	var a artifact
	if err := gob.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	if a.Format != artifactFormat || a.Version != artifactVersion {
		return nil, fmt.Errorf("%w: format %q version %d", ErrBadArtifact, a.Format, a.Version)
	}

	layers := make([]Layer, len(a.Layers))
	for i, s := range a.Layers {
		l, err := s.layer()
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d: %v", ErrBadArtifact, i, err)
		}
		layers[i] = l
	}
	m, err := NewSequential(a.InputShape, layers...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	return m, nil
}

func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func (s layerSpec) layer() (Layer, error) {
	switch s.Kind {
	case kindConv2D:
		if len(s.Ints) != 3 || !positive(s.Ints) {
			return nil, fmt.Errorf("conv2d wants 3 positive ints, got %v", s.Ints)
		}
		c := NewConv2D(s.Ints[0], s.Ints[1], s.Ints[2], nil)
		if err := fill(c.Weight, s.Weight); err != nil {
			return nil, err
		}
		if err := fill(c.Bias, s.Bias); err != nil {
			return nil, err
		}
		return c, nil
	case kindDense:
		if len(s.Ints) != 2 || !positive(s.Ints) {
			return nil, fmt.Errorf("dense wants 2 positive ints, got %v", s.Ints)
		}
		d := NewDense(s.Ints[0], s.Ints[1], nil)
		if err := fill(d.Weight, s.Weight); err != nil {
			return nil, err
		}
		if err := fill(d.Bias, s.Bias); err != nil {
			return nil, err
		}
		return d, nil
	case kindMaxPool2D:
		if len(s.Ints) != 1 || s.Ints[0] < 1 {
			return nil, fmt.Errorf("maxpool2d wants a positive size, got %v", s.Ints)
		}
		return NewMaxPool2D(s.Ints[0]), nil
	case kindReLU:
		return NewReLU(), nil
	case kindDropout:
		return NewDropout(s.Rate), nil
	case kindFlatten:
		return NewFlatten(), nil
	default:
		return nil, fmt.Errorf("unknown layer kind %q", s.Kind)
	}
}

func fill(p *Param, values []float64) error {
	if len(values) != len(p.Value) {
		return fmt.Errorf("%s has %d values, want %d", p.Name, len(values), len(p.Value))
	}
	copy(p.Value, values)
	return nil
}

func positive(values []int) bool {
	for _, v := range values {
		if v < 1 {
			return false
		}
	}
	return true
}
