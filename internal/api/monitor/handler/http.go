package monitorHandler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	monitorService "VisionGuard/internal/api/monitor/service"
	"VisionGuard/internal/middleware"
	"VisionGuard/pkg/broadcast"
	"VisionGuard/pkg/utils"
)

type MonitorHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	monitorService monitorService.IMonitorService
	utils          utils.IUtils
	hub            *broadcast.Hub
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ms monitorService.IMonitorService,
	utils utils.IUtils,
	hub *broadcast.Hub,
) *MonitorHandler {
	return &MonitorHandler{
		log:            log,
		validator:      validator,
		middleware:     middleware,
		monitorService: ms,
		utils:          utils,
		hub:            hub,
	}
}

func (h *MonitorHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	monitor := srv.Group("/monitor")
	monitor.Post("/detect", h.middleware.NewRateLimiter, h.DetectObjects)
	monitor.Get("/gallery", h.Gallery)

	monitor.Use("/ws", wsMiddleware)
	monitor.Get("/ws", websocket.New(h.handleFrameWebSocket))

	monitor.Use("/live", wsMiddleware)
	monitor.Get("/live", websocket.New(h.handleLiveWebSocket))
}
