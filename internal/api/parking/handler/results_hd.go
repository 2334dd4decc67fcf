package parkingHandler

import (
	"intellilot/pkg/handlerUtil"
	"intellilot/pkg/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func (h *ParkingHandler) HandleResults(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)

	limit := ctx.QueryInt("limit", 50)
	records := h.parkingService.Results(limit)

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, fiber.Map{
		"results": records,
		"count":   len(records),
	})
}

func (h *ParkingHandler) HandleLatestResult(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	record, err := h.parkingService.LatestResult()
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "latest_result")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, record)
}

func (h *ParkingHandler) HandlePipelineStats(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.parkingService.PipelineStats())
}

// handleResultsWS keeps the connection registered with the hub until the
// client goes away. Inbound messages are drained and ignored, the stream is
// push only.
func (h *ParkingHandler) handleResultsWS(conn *websocket.Conn) {
	h.hub.Register(conn)
	defer func() {
		h.hub.Unregister(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn(log.Fields{"error": err.Error()}, "Websocket read failed")
			}
			return
		}
	}
}
