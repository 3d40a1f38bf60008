package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// AppConfig is the serving configuration read from the environment.
type AppConfig struct {
	Env          string
	Host         string        `validate:"required"`
	Port         string        `validate:"required,numeric"`
	BodyLimitMB  int           `validate:"gt=0"`
	ReadTimeout  time.Duration `validate:"gte=0"`
	WriteTimeout time.Duration `validate:"gte=0"`

	ModelBackend        string `validate:"oneof=native onnx remote"`
	ModelPath           string `validate:"required_unless=ModelBackend remote"`
	ModelMetadataPath   string
	ONNXLibraryPath     string
	ONNXPoolSize        int           `validate:"gte=1"`
	ONNXAcquireTimeout  time.Duration `validate:"gte=0"`
	ONNXIntraOpThreads  int           `validate:"gte=0"`
	RemoteClassifierURL string        `validate:"required_if=ModelBackend remote"`
	RemoteTimeout       time.Duration `validate:"gte=0"`

	RateLimitRPS   float64 `validate:"gte=0"`
	RateLimitBurst int     `validate:"gte=0"`

	RedisAddress  string
	RedisPassword string
	RedisDB       int           `validate:"gte=0"`
	CacheTTL      time.Duration `validate:"gte=0"`

	DatabaseURL        string
	ImageStore         string `validate:"oneof=local s3"`
	ImageStoreDir      string `validate:"required_if=ImageStore local"`
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSBucketName      string `validate:"required_if=ImageStore s3"`
	AWSEndpoint        string
}

// TrainConfig is the training job configuration. cmd/train lets flags
// override every field.
type TrainConfig struct {
	DatasetDir      string  `validate:"required"`
	ImageSize       int     `validate:"gte=8"`
	BatchSize       int     `validate:"gte=1"`
	ValidationSplit float64 `validate:"gte=0,lt=1"`
	Seed            int64
	Epochs          int     `validate:"gte=1"`
	Patience        int
	LearningRate    float64 `validate:"gt=0"`
	Workers         int     `validate:"gte=0"`
	OutputPath      string  `validate:"required"`
	CheckpointPath  string
}

func LoadAppConfig() (AppConfig, error) {
	cfg := AppConfig{
		Env:                 getString("APP_ENV", "development"),
		Host:                getString("APP_HOST", "127.0.0.1"),
		Port:                getString("APP_PORT", "5000"),
		ModelBackend:        getString("MODEL_BACKEND", "native"),
		ModelPath:           getString("MODEL_PATH", "./models/myagara.nn"),
		ModelMetadataPath:   os.Getenv("MODEL_METADATA_PATH"),
		ONNXLibraryPath:     os.Getenv("ONNX_LIBRARY_PATH"),
		RemoteClassifierURL: os.Getenv("REMOTE_CLASSIFIER_URL"),
		RedisAddress:        os.Getenv("REDIS_ADDRESS"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		ImageStore:          getString("IMAGE_STORE", "local"),
		ImageStoreDir:       getString("IMAGE_STORE_DIR", "./storage/images"),
		AWSRegion:           os.Getenv("AWS_REGION"),
		AWSAccessKeyID:      os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:  os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSBucketName:       os.Getenv("AWS_BUCKET_NAME"),
		AWSEndpoint:         os.Getenv("AWS_ENDPOINT"),
	}

	p := envParser{}
	cfg.BodyLimitMB = p.intVar("BODY_LIMIT_MB", 16)
	cfg.ReadTimeout = p.duration("READ_TIMEOUT_SECONDS", 30*time.Second)
	cfg.WriteTimeout = p.duration("WRITE_TIMEOUT_SECONDS", 60*time.Second)
	cfg.ONNXPoolSize = p.intVar("ONNX_POOL_SIZE", 2)
	cfg.ONNXAcquireTimeout = p.duration("ONNX_ACQUIRE_TIMEOUT_SECONDS", 5*time.Second)
	cfg.ONNXIntraOpThreads = p.intVar("ONNX_INTRA_OP_THREADS", 0)
	cfg.RemoteTimeout = p.duration("REMOTE_TIMEOUT_SECONDS", 30*time.Second)
	cfg.RateLimitRPS = p.floatVar("RATE_LIMIT_RPS", 0)
	cfg.RateLimitBurst = p.intVar("RATE_LIMIT_BURST", 0)
	cfg.RedisDB = p.intVar("REDIS_DB", 0)
	cfg.CacheTTL = p.duration("CACHE_TTL_SECONDS", time.Hour)
	if p.err != nil {
		return AppConfig{}, p.err
	}

	if err := NewValidator().Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func LoadTrainConfig() (TrainConfig, error) {
	cfg := TrainConfig{
		DatasetDir:     getString("DATASET_DIR", "./PlantVillage"),
		OutputPath:     getString("OUTPUT_PATH", "./models/myagara.nn"),
		CheckpointPath: os.Getenv("CHECKPOINT_PATH"),
	}

	p := envParser{}
	cfg.ImageSize = p.intVar("IMAGE_SIZE", 128)
	cfg.BatchSize = p.intVar("BATCH_SIZE", 32)
	cfg.ValidationSplit = p.floatVar("VALIDATION_SPLIT", 0.2)
	cfg.Seed = int64(p.intVar("SEED", 123))
	cfg.Epochs = p.intVar("EPOCHS", 20)
	cfg.Patience = p.intVar("PATIENCE", 5)
	cfg.LearningRate = p.floatVar("LEARNING_RATE", 0.001)
	cfg.Workers = p.intVar("WORKERS", 0)
	if p.err != nil {
		return TrainConfig{}, p.err
	}
	return cfg, nil
}

func (c TrainConfig) Validate() error {
	if err := NewValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c AppConfig) Address() string {
	return c.Host + ":" + c.Port
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envParser keeps the first parse failure so loaders can read every
// variable and report once.
type envParser struct {
	err error
}

func (p *envParser) intVar(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v)
		return fallback
	}
	return n
}

func (p *envParser) floatVar(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v)
		return fallback
	}
	return f
}

func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v)
		return fallback
	}
	return time.Duration(f * float64(time.Second))
}

func (p *envParser) fail(key, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid value %q for %s", value, key)
	}
}
