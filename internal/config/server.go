package config

import (
	monitorHandler "VisionGuard/internal/api/monitor/handler"
	monitorService "VisionGuard/internal/api/monitor/service"
	"VisionGuard/internal/middleware"
	"VisionGuard/pkg/alert"
	"VisionGuard/pkg/broadcast"
	"VisionGuard/pkg/gallery"
	"VisionGuard/pkg/gemini"
	"VisionGuard/pkg/utils"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	log          *logrus.Logger
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	handlers     []handler
	geminiClient gemini.IGemini
	notifier     alert.INotifier
	galleryStore gallery.IGallery
	hub          *broadcast.Hub
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

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithGeminiClient() ServerOption {
	return func(s *Server) error {
		client, err := gemini.NewGeminiClient()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to create Gemini client: %v", err)
			}
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		s.geminiClient = client
		return nil
	}
}

func WithNotifier() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before notifier")
		}
		s.notifier = alert.New(s.log)
		return nil
	}
}

func WithGallery() ServerOption {
	return func(s *Server) error {
		store, err := gallery.New(s.log)
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize gallery storage: %v", err)
			}
			return fmt.Errorf("failed to create gallery storage: %w", err)
		}
		s.galleryStore = store
		return nil
	}
}

func WithBroadcastHub(hub *broadcast.Hub) ServerOption {
	return func(s *Server) error {
		s.hub = hub
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Monitor Domain
	monitorServices := monitorService.NewMonitorService(s.log, s.geminiClient, s.notifier, s.galleryStore, s.utils)
	monitorHandlers := monitorHandler.New(s.log, s.validator, s.middleware, monitorServices, s.utils, s.hub)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, monitorHandlers)
}

func (s *Server) Run() error {
	router := s.engine.Group("/api/v1")
	s.engine.Use(s.middleware.NewRequestIDMiddleware())

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
