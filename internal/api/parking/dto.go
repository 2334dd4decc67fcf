package parking

import (
	"time"

	"intellilot/internal/entity"
)

// UpdateRawRequest carries a frame plus slot geometry for synchronous
// detection and persistence. The image arrives either as a multipart file
// field ("image") or as base64 in the JSON body.
type UpdateRawRequest struct {
	CameraID    string      `json:"camera_id" form:"camera_id" validate:"required,max=64"`
	NodeID      string      `json:"node_id" form:"node_id" validate:"max=64"`
	Image       string      `json:"image" form:"-"`
	Coordinates [][]float64 `json:"coordinates" validate:"required,min=1"`
	ImageWidth  int         `json:"image_width" form:"image_width"`
	ImageHeight int         `json:"image_height" form:"image_height"`
	Archive     bool        `json:"archive" form:"archive"`
}

// DetectRequest is the stateless variant: same inputs, nothing persisted.
type DetectRequest struct {
	Image       string      `json:"image"`
	Coordinates [][]float64 `json:"coordinates" validate:"required,min=1"`
	Threshold   float64     `json:"threshold" validate:"omitempty,gt=0,lt=1"`
}

// UpdateRequest persists counts already computed on an edge node.
type UpdateRequest struct {
	CameraID         string              `json:"camera_id" validate:"required,max=64"`
	NodeID           string              `json:"node_id" validate:"max=64"`
	TotalSlots       int                 `json:"total_slots" validate:"required,min=1"`
	OccupiedSlots    int                 `json:"occupied_slots" validate:"min=0"`
	EmptySlots       int                 `json:"empty_slots" validate:"min=0"`
	OccupancyRate    float64             `json:"occupancy_rate" validate:"min=0,max=100"`
	CarsDetected     int                 `json:"cars_detected" validate:"min=0"`
	ProcessingTimeMs float64             `json:"processing_time_ms" validate:"min=0"`
	SlotsDetails     []entity.SlotDetail `json:"slots_details"`
}

type DetectionResponse struct {
	RecordID         string              `json:"record_id,omitempty"`
	CameraID         string              `json:"camera_id,omitempty"`
	TotalSlots       int                 `json:"total_slots"`
	OccupiedSlots    int                 `json:"occupied_slots"`
	EmptySlots       int                 `json:"empty_slots"`
	OccupancyRate    float64             `json:"occupancy_rate"`
	CarsDetected     int                 `json:"cars_detected"`
	SlotsDetails     []entity.SlotDetail `json:"slots_details"`
	ProcessingTimeMs float64             `json:"processing_time_ms"`
	ArchiveURL       string              `json:"archive_url,omitempty"`
	CreatedAt        time.Time           `json:"created_at,omitempty"`
}

type RecordResponse struct {
	ID               string    `json:"id"`
	CameraID         string    `json:"camera_id"`
	NodeID           string    `json:"node_id,omitempty"`
	Source           string    `json:"source"`
	TotalSlots       int       `json:"total_slots"`
	OccupiedSlots    int       `json:"occupied_slots"`
	EmptySlots       int       `json:"empty_slots"`
	OccupancyRate    float64   `json:"occupancy_rate"`
	CarsDetected     int       `json:"cars_detected"`
	ProcessingTimeMs float64   `json:"processing_time_ms"`
	ArchiveURL       string    `json:"archive_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Records []RecordResponse `json:"records"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

type EnqueueResponse struct {
	TaskID   string `json:"task_id"`
	CameraID string `json:"camera_id"`
	Queued   bool   `json:"queued"`
}
