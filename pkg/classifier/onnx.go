package classifier

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"Myagara/pkg/nn"
	"Myagara/pkg/vision"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/net/context"
)

const (
	DefaultPoolSize       = 4
	DefaultAcquireTimeout = 5 * time.Second
)

var ErrPoolClosed = errors.New("onnx session pool is closed")

type ONNXConfig struct {
	ModelPath      string
	MetadataPath   string
	LibraryPath    string
	PoolSize       int
	AcquireTimeout time.Duration
	IntraOpThreads int
}

// onnxSession owns the input and output tensors bound to its session, so one
// request at a time may use it.
type onnxSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *onnxSession) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// ONNX classifies with an exported model through onnxruntime, using a fixed
// pool of sessions.
type ONNX struct {
	meta           nn.Metadata
	nhwc           bool
	sessions       chan *onnxSession
	size           int
	acquireTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	metadataPath := cfg.MetadataPath
	if metadataPath == "" {
		metadataPath = nn.MetadataPath(cfg.ModelPath)
	}
	meta, err := nn.LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}
	nhwc, err := inputLayout(meta.InputShape, meta.ImageSize)
	if err != nil {
		return nil, err
	}
	if meta.InputName == "" {
		meta.InputName = "input"
	}
	if meta.OutputName == "" {
		meta.OutputName = "output"
	}

	if !ort.IsInitialized() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	size := cfg.PoolSize
	if size <= 0 {
		size = DefaultPoolSize
	}
	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	o := &ONNX{
		meta:           meta,
		nhwc:           nhwc,
		sessions:       make(chan *onnxSession, size),
		size:           size,
		acquireTimeout: timeout,
	}
	for i := 0; i < size; i++ {
		s, err := newONNXSession(cfg, meta)
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("create session %d: %w", i, err)
		}
		o.sessions <- s
	}
	return o, nil
}

func newONNXSession(cfg ONNXConfig, meta nn.Metadata) (*onnxSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer options.Destroy()
	if cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(meta.Classes))))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		options)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("session: %w", err)
	}
	return &onnxSession{session: session, input: input, output: output}, nil
}

func (o *ONNX) Classify(ctx context.Context, data []byte) (*Prediction, error) {
	img, err := vision.Decode(data)
	if err != nil {
		return nil, err
	}
	resized := vision.Resize(img, o.meta.ImageSize)

	s, err := o.acquire(ctx)
	if err != nil {
		return nil, inferenceError(err)
	}
	defer o.release(s)

	fillInput(s.input.GetData(), resized, o.nhwc)
	if err := s.session.Run(); err != nil {
		return nil, inferenceError(err)
	}

	out := s.output.GetData()
	probs := make([]float64, len(out))
	for i, v := range out {
		probs[i] = float64(v)
	}
	if o.meta.Logits {
		probs = nn.Softmax(probs)
	}
	return NewPrediction(probs, o.meta.Classes)
}

func (o *ONNX) acquire(ctx context.Context) (*onnxSession, error) {
	o.mu.RLock()
	closed := o.closed
	o.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	timer := time.NewTimer(o.acquireTimeout)
	defer timer.Stop()

	select {
	case s, ok := <-o.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		return s, nil
	case <-timer.C:
		return nil, errors.New("timeout waiting for an onnx session")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *ONNX) release(s *onnxSession) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		s.destroy()
		return
	}
	o.sessions <- s
}

func (o *ONNX) Metadata() nn.Metadata {
	return o.meta
}

func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	close(o.sessions)
	for s := range o.sessions {
		s.destroy()
	}
	return ort.DestroyEnvironment()
}

// inputLayout accepts [1, 3, size, size] (channel-major) and
// [1, size, size, 3] (channel-last) and reports whether it is channel-last.
func inputLayout(shape []int64, size int) (bool, error) {
	s := int64(size)
	switch {
	case len(shape) != 4 || shape[0] != 1:
	case shape[1] == vision.Channels && shape[2] == s && shape[3] == s:
		return false, nil
	case shape[3] == vision.Channels && shape[1] == s && shape[2] == s:
		return true, nil
	}
	return false, fmt.Errorf("%w: input shape %v does not fit image size %d", nn.ErrMetadataMismatch, shape, size)
}

// fillInput writes img scaled to [0, 1] into dst in the session's layout.
func fillInput(dst []float32, img *image.NRGBA, nhwc bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			r := float32(row[x*4]) / 255
			g := float32(row[x*4+1]) / 255
			bl := float32(row[x*4+2]) / 255
			i := y*w + x
			if nhwc {
				dst[i*3], dst[i*3+1], dst[i*3+2] = r, g, bl
				continue
			}
			dst[i], dst[plane+i], dst[2*plane+i] = r, g, bl
		}
	}
}
