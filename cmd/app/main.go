package main

import (
	imageRecordService "Myagara/internal/api/image_record/service"
	"Myagara/internal/config"
	"Myagara/internal/middleware"
	"Myagara/pkg/classifier"
	"Myagara/pkg/filestore"
	"Myagara/pkg/log"
	"Myagara/pkg/redis"
	"Myagara/pkg/s3"
	"errors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Fatalf("Error loading .env file: %v", err)
	}
	logger := log.NewLogger()

	cfg, err := config.LoadAppConfig()
	if err != nil {
		logger.Fatal(err)
	}

	backend := classifier.Backend(cfg.ModelBackend)
	model, err := classifier.Load(classifier.Config{
		Backend:        backend,
		ModelPath:      cfg.ModelPath,
		MetadataPath:   cfg.ModelMetadataPath,
		ONNXLibrary:    cfg.ONNXLibraryPath,
		ONNXPoolSize:   cfg.ONNXPoolSize,
		RemoteURL:      cfg.RemoteClassifierURL,
		RemoteTimeout:  cfg.RemoteTimeout,
		AcquireTimeout: cfg.ONNXAcquireTimeout,
		IntraOpThreads: cfg.ONNXIntraOpThreads,
	})
	if err != nil {
		logger.Fatalf("Failed to load model: %v", err)
	}

	meta := model.Metadata()
	logger.WithFields(logrus.Fields{
		"backend":       backend,
		"model_version": meta.ModelVersion,
		"classes":       meta.Classes,
		"image_size":    meta.ImageSize,
	}).Info("Model loaded")
	if len(meta.Classes) == 0 {
		logger.Warn("Model reports no classes, prediction indexes will be -1")
	}

	if cfg.RedisAddress != "" {
		redisServer := redis.New(redis.Options{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		model = classifier.WithCache(model, redisServer, cfg.CacheTTL, logger)
	}

	options := []config.ServerOption{
		config.WithFiber(config.NewFiber(logger, cfg)),
		config.WithLogger(logger),
		config.WithValidator(config.NewValidator()),
		config.WithClassifier(model, backend),
		config.WithMiddleware(middleware.Options{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}),
		config.WithUtils(int64(cfg.BodyLimitMB) * 1024 * 1024),
		config.WithRequestTimeout(cfg.WriteTimeout),
	}
	if cfg.DatabaseURL != "" {
		store, err := newImageStore(cfg)
		if err != nil {
			logger.Fatalf("Failed to create image store: %v", err)
		}
		options = append(options, config.WithDatabase(cfg.DatabaseURL), config.WithImageStore(store))
	}

	server, err := config.NewServer(options...)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(cfg.Address()); err != nil {
			log.ErrorWithTraceID(log.Fields{
				"address": cfg.Address(),
				"error":   err.Error(),
			}, "Error starting server")
			os.Exit(1)
		}
	}()

	<-sigChan
	logger.Info("Shutting down server...")

	if err := server.Shutdown(10 * time.Second); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}

func newImageStore(cfg config.AppConfig) (imageRecordService.ObjectStore, error) {
	if cfg.ImageStore == "s3" {
		return s3.New(s3.Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			BucketName:      cfg.AWSBucketName,
			Endpoint:        cfg.AWSEndpoint,
		})
	}
	return filestore.NewLocal(cfg.ImageStoreDir)
}
