package parkingHandler

import (
	parkingService "intellilot/internal/api/parking/service"
	"intellilot/internal/middleware"
	"intellilot/internal/pipeline"
	"intellilot/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type ParkingHandler struct {
	log            *logrus.Logger
	parkingService parkingService.IParkingService
	validator      *validator.Validate
	middleware     middleware.Middleware
	utils          utils.IUtils
	hub            *pipeline.Hub
}

func New(
	log *logrus.Logger,
	ps parkingService.IParkingService,
	validate *validator.Validate,
	middleware middleware.Middleware,
	u utils.IUtils,
	hub *pipeline.Hub,
) *ParkingHandler {
	return &ParkingHandler{
		log:            log,
		parkingService: ps,
		validator:      validate,
		middleware:     middleware,
		utils:          u,
		hub:            hub,
	}
}

func (h *ParkingHandler) Start(srv fiber.Router) {
	parking := srv.Group("/parking")
	parking.Post("/updateRaw", h.middleware.NewTokenMiddleware, h.HandleUpdateRaw)
	parking.Post("/update", h.middleware.NewTokenMiddleware, h.HandleUpdate)
	parking.Post("/detect", h.HandleDetect)
	parking.Post("/frames", h.middleware.NewTokenMiddleware, h.HandleEnqueueFrame)
	parking.Get("/data/:user_id", h.middleware.NewTokenMiddleware, h.HandleGetData)
	parking.Get("/latest/:camera_id", h.middleware.NewTokenMiddleware, h.HandleGetLatest)

	results := srv.Group("/results")
	results.Get("/", h.HandleResults)
	results.Get("/latest", h.HandleLatestResult)
	results.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	results.Get("/ws", websocket.New(h.handleResultsWS))

	srv.Get("/pipeline/stats", h.HandlePipelineStats)
}
