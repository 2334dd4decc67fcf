package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"intellilot/database/postgres"
	authHandler "intellilot/internal/api/auth/handler"
	authRepository "intellilot/internal/api/auth/repository"
	authService "intellilot/internal/api/auth/service"
	parkingHandler "intellilot/internal/api/parking/handler"
	parkingRepository "intellilot/internal/api/parking/repository"
	parkingService "intellilot/internal/api/parking/service"
	"intellilot/internal/middleware"
	"intellilot/internal/occupancy"
	"intellilot/internal/pipeline"
	"intellilot/pkg/bcrypt"
	detectorPkg "intellilot/pkg/detector"
	"intellilot/pkg/redis"
	"intellilot/pkg/s3"
	"intellilot/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	db             *sqlx.DB
	log            *logrus.Logger
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	bcryptUtils    bcrypt.IBcrypt
	handlers       []handler
	redisServer    redis.IRedis
	s3Client       s3.ItfS3
	detectorClient detectorPkg.IDetector

	occupancyEngine *occupancy.Engine
	queue           *pipeline.Queue
	ledger          *pipeline.Ledger
	stats           *pipeline.Stats
	hub             *pipeline.Hub
	pool            *pipeline.Pool
	dispatcher      *pipeline.Dispatcher
	pipelineCancel  context.CancelFunc
}

type handler interface {
	Start(srv fiber.Router)
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

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
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

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithDetector(det detectorPkg.IDetector) ServerOption {
	return func(s *Server) error {
		s.detectorClient = det
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func WithBcryptUtils() ServerOption {
	return func(s *Server) error {
		s.bcryptUtils = bcrypt.New()
		return nil
	}
}

// WithPipeline builds the frame queue, worker pool, results ledger and
// websocket hub, plus the dispatcher when CAMERA_ENDPOINTS is set. Requires
// the logger, utils and detector options to be applied first.
func WithPipeline() ServerOption {
	return func(s *Server) error {
		if s.detectorClient == nil {
			return fmt.Errorf("detector must be initialized before pipeline")
		}
		if s.utils == nil {
			return fmt.Errorf("utils must be initialized before pipeline")
		}

		engine, err := loadOccupancyEngine()
		if err != nil {
			return fmt.Errorf("failed to build occupancy engine: %w", err)
		}
		s.occupancyEngine = engine

		logPath := os.Getenv("RESULTS_LOG_PATH")
		if logPath == "" {
			logPath = "logs/results.log"
		}

		s.queue = pipeline.NewQueue(pipeline.DefaultQueueCapacity)
		s.ledger = pipeline.NewLedger(pipeline.DefaultLedgerCapacity, logPath)
		s.stats = pipeline.NewStats()
		s.hub = pipeline.NewHub()
		s.pool = pipeline.NewPool(s.queue, s.detectorClient, engine, s.ledger, s.stats,
			pipeline.WithResultHook(s.hub.Broadcast),
		)

		cameras, err := loadCameraEndpoints()
		if err != nil {
			return fmt.Errorf("failed to parse camera endpoints: %w", err)
		}
		if len(cameras) > 0 {
			s.dispatcher = pipeline.NewDispatcher(cameras, s.queue, s.utils, s.stats)
		}

		return nil
	}
}

func loadOccupancyEngine() (*occupancy.Engine, error) {
	path := os.Getenv("PARKING_SLOTS_FILE")
	if path == "" {
		return nil, fmt.Errorf("PARKING_SLOTS_FILE is not set")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var positions [][]float64
	if err := json.Unmarshal(raw, &positions); err != nil {
		return nil, fmt.Errorf("invalid slot positions file %s: %w", path, err)
	}

	return occupancy.New(positions)
}

func loadCameraEndpoints() ([]pipeline.CameraEndpoint, error) {
	raw := os.Getenv("CAMERA_ENDPOINTS")
	if raw == "" {
		return nil, nil
	}

	var cameras []pipeline.CameraEndpoint
	if err := json.Unmarshal([]byte(raw), &cameras); err != nil {
		return nil, err
	}

	return cameras, nil
}

func (s *Server) RegisterHandler() {
	// Auth Domain
	authRepo := authRepository.New(s.db, s.log)
	authServices := authService.New(s.log, authRepo, s.bcryptUtils, s.utils)
	authHandlers := authHandler.New(s.log, authServices, s.validator, s.middleware)

	// Parking Domain
	parkingRepo := parkingRepository.New(s.db, s.log)
	parkingServices := parkingService.New(s.log, parkingRepo, s.detectorClient, s.s3Client,
		s.redisServer, s.utils, s.queue, s.ledger, s.stats, pipeline.DefaultWorkerCount)
	parkingHandlers := parkingHandler.New(s.log, parkingServices, s.validator, s.middleware, s.utils, s.hub)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, authHandlers, parkingHandlers)
}

func (s *Server) Run() error {
	router := s.engine.Group("/api/v1")
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())

	for _, h := range s.handlers {
		h.Start(router)
	}

	s.startPipeline()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	if err := s.engine.Listen(fmt.Sprintf(":%s", port)); err != nil {
		s.Shutdown()
		return err
	}

	return nil
}

func (s *Server) startPipeline() {
	if s.pool == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.pipelineCancel = cancel

	go s.pool.Run(ctx)
	if s.dispatcher != nil {
		go s.dispatcher.Run(ctx)
	}
}

// Shutdown stops the pipeline goroutines and flushes the results log.
// The HTTP listener is torn down by the caller exiting.
func (s *Server) Shutdown() {
	if s.pipelineCancel != nil {
		s.pipelineCancel()
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			s.log.Warnf("Failed to close results ledger: %v", err)
		}
	}
	if s.detectorClient != nil {
		s.detectorClient.Close()
	}
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
