package config

import (
	"Myagara/database/postgres"
	classificationHandler "Myagara/internal/api/classification/handler"
	classificationService "Myagara/internal/api/classification/service"
	imageRecordHandler "Myagara/internal/api/image_record/handler"
	imageRecordRepository "Myagara/internal/api/image_record/repository"
	imageRecordService "Myagara/internal/api/image_record/service"
	"Myagara/internal/middleware"
	"Myagara/pkg/classifier"
	"Myagara/pkg/utils"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"time"
)

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	db             *sqlx.DB
	log            *logrus.Logger
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	handlers       []handler
	classifier     classifier.Classifier
	backend        classifier.Backend
	imageStore     imageRecordService.ObjectStore
	requestTimeout time.Duration
}

type handler interface {
	Start(srv fiber.Router)
}

// rootHandler is implemented by handlers that also serve unversioned routes.
type rootHandler interface {
	StartRoot(root fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if server.middleware == nil {
		return nil, fmt.Errorf("middleware is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New(0)
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithDatabase connects to PostgreSQL when url is set. Without it the image
// record routes are not mounted.
func WithDatabase(url string) ServerOption {
	return func(s *Server) error {
		if url == "" {
			return nil
		}
		db, err := postgres.New(url, postgres.DefaultOptions())
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithClassifier(c classifier.Classifier, backend classifier.Backend) ServerOption {
	return func(s *Server) error {
		if c == nil {
			return errors.New("classifier is nil")
		}
		s.classifier = c
		s.backend = backend
		return nil
	}
}

func WithImageStore(store imageRecordService.ObjectStore) ServerOption {
	return func(s *Server) error {
		s.imageStore = store
		return nil
	}
}

func WithMiddleware(opts middleware.Options) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, opts)
		return nil
	}
}

func WithUtils(maxFileSize int64) ServerOption {
	return func(s *Server) error {
		s.utils = utils.New(maxFileSize)
		return nil
	}
}

func WithRequestTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) error {
		s.requestTimeout = timeout
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Classification
	classificationServices := classificationService.NewClassificationService(s.log, s.classifier, s.backend)
	classificationHandlers := classificationHandler.New(s.log, s.middleware, classificationServices, s.utils, s.requestTimeout)
	s.handlers = append(s.handlers, classificationHandlers)

	// Image records
	if s.db != nil && s.imageStore != nil {
		imageRecordRepo := imageRecordRepository.New(s.db, s.log)
		imageRecordServices := imageRecordService.NewImageRecordService(s.log, imageRecordRepo, classificationServices, s.imageStore, s.utils)
		imageRecordHandlers := imageRecordHandler.New(s.log, s.validator, s.middleware, imageRecordServices, s.utils, s.requestTimeout)
		s.handlers = append(s.handlers, imageRecordHandlers)
	} else {
		s.log.Info("Image record routes disabled: no database or image store configured")
	}
}

// Mount installs middleware and routes. Run calls it; tests use it with
// app.Test.
func (s *Server) Mount() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware)
	s.engine.Use(s.middleware.NewRateLimiter)

	s.setupHealthCheck()

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
		if r, ok := h.(rootHandler); ok {
			r.StartRoot(s.engine)
		}
	}
}

func (s *Server) Run(address string) error {
	s.Mount()

	s.log.WithFields(logrus.Fields{
		"address": address,
		"backend": s.backend,
		"model":   s.classifier.Metadata().ModelVersion,
	}).Info("Starting server")

	return s.engine.Listen(address)
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the model and the optional clients.
func (s *Server) Shutdown(timeout time.Duration) error {
	var errs []error
	if err := s.engine.ShutdownWithTimeout(timeout); err != nil {
		errs = append(errs, fmt.Errorf("fiber: %w", err))
	}
	if err := s.classifier.Close(); err != nil {
		errs = append(errs, fmt.Errorf("classifier: %w", err))
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		meta := s.classifier.Metadata()
		return ctx.JSON(fiber.Map{
			"message":       "Server is Healthy!",
			"model_version": meta.ModelVersion,
			"classes":       len(meta.Classes),
		})
	})
}
