package entity

import "time"

// DetectionBox is one vehicle bounding box returned by the external detector.
// Coordinates are untrusted input: X2 > X1 and Y2 > Y1 must hold before use.
type DetectionBox struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class"`
}

func (b DetectionBox) Valid() bool {
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// FrameTask is one unit of work flowing through the processing queue.
// It is created by a producer, consumed exactly once by a pool worker,
// then discarded.
type FrameTask struct {
	TaskID     string
	FrameID    string
	CameraID   string
	NodeID     string
	Source     string
	ImageData  []byte
	Timestamp  time.Time
	ReceivedAt time.Time
}

// ResultRecord is the outcome of processing one FrameTask. Appended once
// to the results ledger and immutable afterwards. Image payloads are never
// carried here so records stay JSON-serializable for the durable log.
type ResultRecord struct {
	TaskID           string      `json:"task_id"`
	FrameID          string      `json:"frame_id"`
	CameraID         string      `json:"camera_id"`
	NodeID           string      `json:"node_id,omitempty"`
	Timestamp        time.Time   `json:"timestamp"`
	ProcessedAt      time.Time   `json:"processed_at"`
	ProcessingTimeMs float64     `json:"processing_time_ms"`
	Success          bool        `json:"success"`
	Error            string      `json:"error,omitempty"`
	ParkingData      *ParkingSum `json:"parking_data,omitempty"`
}

// ParkingSum is the occupancy summary embedded in a successful ResultRecord.
type ParkingSum struct {
	TotalSlots    int     `json:"total_slots"`
	OccupiedSlots int     `json:"occupied_slots"`
	EmptySlots    int     `json:"empty_slots"`
	OccupancyRate float64 `json:"occupancy_rate"`
	CarsDetected  int     `json:"cars_detected"`
}
