package parkingHandler

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"intellilot/internal/api/parking"
	contextPkg "intellilot/pkg/context"
	"intellilot/pkg/handlerUtil"
	jwtPkg "intellilot/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

func (h *ParkingHandler) HandleUpdateRaw(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	user, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	req, imageData, err := h.parseFramePayload(ctx)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_frame_payload")
	}

	if err := h.validator.Struct(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	res, err := h.parkingService.ProcessRaw(c, user.ID, req, imageData)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "process_raw")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, res)
	}
}

func (h *ParkingHandler) HandleUpdate(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	user, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	var req parking.UpdateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	res, err := h.parkingService.SaveEdgeUpdate(c, user.ID, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "save_edge_update")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, res)
	}
}

func (h *ParkingHandler) HandleDetect(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req parking.DetectRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	var imageData []byte
	if req.Image != "" {
		var err error
		imageData, err = h.utils.DecodeBase64Image(req.Image)
		if err != nil {
			return errHandler.Handle(ctx, requestID, parking.ErrInvalidImage, ctx.Path(), "decode_image")
		}
	}

	res, err := h.parkingService.Detect(c, req, imageData)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}

func (h *ParkingHandler) HandleEnqueueFrame(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	if _, err := jwtPkg.GetUserLoginData(ctx); err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	cameraID := ctx.FormValue("camera_id")
	if cameraID == "" {
		cameraID = ctx.Query("camera_id", "unknown")
	}
	nodeID := ctx.FormValue("node_id")

	imageData, err := h.readFrameFile(ctx, "frame")
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_frame")
	}

	res, err := h.parkingService.EnqueueFrame(c, cameraID, nodeID, imageData)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "enqueue_frame")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusAccepted, res)
}

func (h *ParkingHandler) HandleGetData(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	user, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	userID := ctx.Params("user_id")
	if userID != user.ID {
		return errHandler.Handle(ctx, requestID, parking.ErrNotRecordOwner, ctx.Path(), "get_data")
	}

	limit := ctx.QueryInt("limit", 50)
	offset := ctx.QueryInt("offset", 0)
	cameraID := ctx.Query("camera_id")

	res, err := h.parkingService.History(c, userID, cameraID, limit, offset)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_data")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}

func (h *ParkingHandler) HandleGetLatest(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	if _, err := jwtPkg.GetUserLoginData(ctx); err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	status, err := h.parkingService.LatestByCamera(c, ctx.Params("camera_id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_latest")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, status)
}

// parseFramePayload accepts either a multipart form (file field "image",
// coordinates as a JSON string field) or a JSON body with base64 image.
func (h *ParkingHandler) parseFramePayload(ctx *fiber.Ctx) (parking.UpdateRawRequest, []byte, error) {
	contentType := ctx.Get(fiber.HeaderContentType)

	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		var req parking.UpdateRawRequest
		req.CameraID = ctx.FormValue("camera_id")
		req.NodeID = ctx.FormValue("node_id")
		req.Archive = ctx.FormValue("archive") == "true"

		coords := ctx.FormValue("coordinates")
		if coords != "" {
			if err := json.Unmarshal([]byte(coords), &req.Coordinates); err != nil {
				return parking.UpdateRawRequest{}, nil, parking.ErrInvalidCoordinates
			}
		}

		imageData, err := h.readFrameFile(ctx, "image")
		if err != nil {
			return parking.UpdateRawRequest{}, nil, err
		}

		return req, imageData, nil
	}

	var req parking.UpdateRawRequest
	if err := ctx.BodyParser(&req); err != nil {
		return parking.UpdateRawRequest{}, nil, err
	}

	if req.Image == "" {
		return parking.UpdateRawRequest{}, nil, parking.ErrNoImage
	}

	imageData, err := h.utils.DecodeBase64Image(req.Image)
	if err != nil {
		return parking.UpdateRawRequest{}, nil, parking.ErrInvalidImage
	}

	return req, imageData, nil
}

func (h *ParkingHandler) readFrameFile(ctx *fiber.Ctx, field string) ([]byte, error) {
	fileHeader, err := ctx.FormFile(field)
	if err != nil {
		return nil, parking.ErrNoImage
	}

	if err := h.utils.ValidateImageFile(fileHeader); err != nil {
		return nil, parking.ErrInvalidImage
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}
