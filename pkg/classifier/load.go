package classifier

import (
	"fmt"
	"time"
)

type Config struct {
	Backend        Backend
	ModelPath      string
	MetadataPath   string
	ONNXLibrary    string
	ONNXPoolSize   int
	RemoteURL      string
	RemoteTimeout  time.Duration
	AcquireTimeout time.Duration
	// IntraOpThreads is passed to every ONNX session. Zero keeps the
	// onnxruntime default.
	IntraOpThreads int
}

// Load builds the configured backend. The returned classifier must be closed.
func Load(cfg Config) (Classifier, error) {
	switch cfg.Backend {
	case BackendNative, "":
		return LoadNative(cfg.ModelPath, cfg.MetadataPath)
	case BackendONNX:
		return NewONNX(ONNXConfig{
			ModelPath:      cfg.ModelPath,
			MetadataPath:   cfg.MetadataPath,
			LibraryPath:    cfg.ONNXLibrary,
			PoolSize:       cfg.ONNXPoolSize,
			AcquireTimeout: cfg.AcquireTimeout,
			IntraOpThreads: cfg.IntraOpThreads,
		})
	case BackendRemote:
		return NewRemote(cfg.RemoteURL, cfg.RemoteTimeout)
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
}
