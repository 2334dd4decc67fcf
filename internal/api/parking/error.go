package parking

import (
	"intellilot/pkg/response"
	"net/http"
)

var (
	ErrNoImage              = response.NewError(http.StatusBadRequest, "no image provided")
	ErrInvalidImage         = response.NewError(http.StatusBadRequest, "image payload is not a valid image")
	ErrInvalidCoordinates   = response.NewError(http.StatusBadRequest, "invalid slot coordinates")
	ErrRecordNotFound       = response.NewError(http.StatusNotFound, "parking record not found")
	ErrNotRecordOwner       = response.NewError(http.StatusForbidden, "records belong to another user")
	ErrNoResults            = response.NewError(http.StatusNotFound, "no processing results yet")
	ErrQueueFull            = response.NewError(http.StatusServiceUnavailable, "processing queue is full")
	ErrDetectionUnavailable = response.NewError(http.StatusBadGateway, "vehicle detection service unavailable")
)
