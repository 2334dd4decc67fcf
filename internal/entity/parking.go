package entity

import "time"

// ParkingRecord is one persisted occupancy observation for a camera.
type ParkingRecord struct {
	ID               string    `db:"id"`
	UserID           string    `db:"user_id"`
	CameraID         string    `db:"camera_id"`
	NodeID           string    `db:"node_id"`
	Source           string    `db:"source"`
	TotalSlots       int       `db:"total_slots"`
	OccupiedSlots    int       `db:"occupied_slots"`
	EmptySlots       int       `db:"empty_slots"`
	OccupancyRate    float64   `db:"occupancy_rate"`
	CarsDetected     int       `db:"cars_detected"`
	Coordinates      string    `db:"coordinates"`
	SlotsDetails     string    `db:"slots_details"`
	ImageWidth       int       `db:"image_width"`
	ImageHeight      int       `db:"image_height"`
	ArchiveURL       string    `db:"archive_url"`
	ProcessingTimeMs float64   `db:"processing_time_ms"`
	CreatedAt        time.Time `db:"created_at"`
}

const (
	RecordSourceRaw  = "raw_processing"
	RecordSourceEdge = "edge_processing"
)

// SlotDetail is the per-slot breakdown serialized into ParkingRecord.SlotsDetails
// and returned from the detection endpoints.
type SlotDetail struct {
	SlotID      int     `json:"slot_id"`
	Coordinates [4]int  `json:"coordinates"`
	IsOccupied  bool    `json:"is_occupied"`
	MaxOverlap  float64 `json:"max_overlap"`
}

// CameraStatus is the latest known occupancy for one camera, cached in redis
// for the fast read path.
type CameraStatus struct {
	CameraID      string  `json:"camera_id"`
	TotalSlots    int     `json:"total_slots"`
	OccupiedSlots int     `json:"occupied_slots"`
	EmptySlots    int     `json:"empty_slots"`
	OccupancyRate float64 `json:"occupancy_rate"`
	UpdatedAt     string  `json:"updated_at"`
}
