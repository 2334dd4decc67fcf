package parkingService

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"intellilot/internal/api/parking"
	"intellilot/internal/entity"
	"intellilot/internal/occupancy"
	contextPkg "intellilot/pkg/context"
	"intellilot/pkg/redis"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const statusCacheTTL = 5 * time.Minute

func (s *parkingService) ProcessRaw(ctx context.Context, userID string, req parking.UpdateRawRequest, imageData []byte) (parking.DetectionResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)
	start := time.Now()

	if len(imageData) == 0 {
		return parking.DetectionResponse{}, parking.ErrNoImage
	}

	width, height, err := imageDims(imageData)
	if err != nil {
		return parking.DetectionResponse{}, parking.ErrInvalidImage
	}
	if req.ImageWidth > 0 {
		width = req.ImageWidth
	}
	if req.ImageHeight > 0 {
		height = req.ImageHeight
	}

	engine, err := occupancy.New(req.Coordinates)
	if err != nil {
		return parking.DetectionResponse{}, parking.ErrInvalidCoordinates
	}

	boxes, err := s.detector.DetectVehicles(imageData)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"camera_id":  req.CameraID,
		}).Error("Vehicle detection failed")
		return parking.DetectionResponse{}, parking.ErrDetectionUnavailable
	}

	snap := engine.Detect(boxes)
	details := slotDetails(engine.Slots(), snap)

	var archiveURL string
	if req.Archive && s.s3Client != nil {
		key := fmt.Sprintf("frames/%s/%s.jpg", req.CameraID, time.Now().UTC().Format("20060102T150405.000"))
		archiveURL, err = s.s3Client.UploadBytes(key, imageData, "image/jpeg")
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
				"camera_id":  req.CameraID,
			}).Warn("Failed to archive frame, continuing without archive")
			archiveURL = ""
		}
	}

	record, err := s.buildRecord(userID, req, snap, details, boxes, width, height, archiveURL, time.Since(start))
	if err != nil {
		return parking.DetectionResponse{}, err
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return parking.DetectionResponse{}, err
	}
	if err := repo.Records.CreateRecord(ctx, record); err != nil {
		return parking.DetectionResponse{}, err
	}

	s.cacheStatus(ctx, record)

	s.log.WithFields(logrus.Fields{
		"request_id":     requestID,
		"camera_id":      req.CameraID,
		"occupied_slots": snap.OccupiedCount,
		"total_slots":    snap.TotalSlots,
	}).Info("Raw frame processed and persisted")

	return parking.DetectionResponse{
		RecordID:         record.ID,
		CameraID:         record.CameraID,
		TotalSlots:       snap.TotalSlots,
		OccupiedSlots:    snap.OccupiedCount,
		EmptySlots:       snap.EmptyCount,
		OccupancyRate:    snap.OccupancyRate,
		CarsDetected:     len(boxes),
		SlotsDetails:     details,
		ProcessingTimeMs: record.ProcessingTimeMs,
		ArchiveURL:       archiveURL,
		CreatedAt:        record.CreatedAt,
	}, nil
}

func (s *parkingService) Detect(ctx context.Context, req parking.DetectRequest, imageData []byte) (parking.DetectionResponse, error) {
	start := time.Now()

	if len(imageData) == 0 {
		return parking.DetectionResponse{}, parking.ErrNoImage
	}
	if _, _, err := imageDims(imageData); err != nil {
		return parking.DetectionResponse{}, parking.ErrInvalidImage
	}

	opts := []occupancy.Option{}
	if req.Threshold > 0 {
		opts = append(opts, occupancy.WithThreshold(req.Threshold))
	}

	engine, err := occupancy.New(req.Coordinates, opts...)
	if err != nil {
		return parking.DetectionResponse{}, parking.ErrInvalidCoordinates
	}

	boxes, err := s.detector.DetectVehicles(imageData)
	if err != nil {
		return parking.DetectionResponse{}, parking.ErrDetectionUnavailable
	}

	snap := engine.Detect(boxes)

	return parking.DetectionResponse{
		TotalSlots:       snap.TotalSlots,
		OccupiedSlots:    snap.OccupiedCount,
		EmptySlots:       snap.EmptyCount,
		OccupancyRate:    snap.OccupancyRate,
		CarsDetected:     len(boxes),
		SlotsDetails:     slotDetails(engine.Slots(), snap),
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}

func (s *parkingService) SaveEdgeUpdate(ctx context.Context, userID string, req parking.UpdateRequest) (parking.RecordResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return parking.RecordResponse{}, err
	}

	details, err := json.Marshal(req.SlotsDetails)
	if err != nil {
		return parking.RecordResponse{}, err
	}

	record := entity.ParkingRecord{
		ID:               id,
		UserID:           userID,
		CameraID:         req.CameraID,
		NodeID:           req.NodeID,
		Source:           entity.RecordSourceEdge,
		TotalSlots:       req.TotalSlots,
		OccupiedSlots:    req.OccupiedSlots,
		EmptySlots:       req.EmptySlots,
		OccupancyRate:    req.OccupancyRate,
		CarsDetected:     req.CarsDetected,
		SlotsDetails:     string(details),
		ProcessingTimeMs: req.ProcessingTimeMs,
		CreatedAt:        time.Now().UTC(),
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return parking.RecordResponse{}, err
	}
	if err := repo.Records.CreateRecord(ctx, record); err != nil {
		return parking.RecordResponse{}, err
	}

	s.cacheStatus(ctx, record)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"camera_id":  req.CameraID,
	}).Info("Edge update persisted")

	return toRecordResponse(record), nil
}

func (s *parkingService) History(ctx context.Context, userID, cameraID string, limit, offset int) (parking.HistoryResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return parking.HistoryResponse{}, err
	}

	records, total, err := repo.Records.GetByUser(ctx, userID, cameraID, limit, offset)
	if err != nil {
		return parking.HistoryResponse{}, err
	}

	res := parking.HistoryResponse{
		Records: make([]parking.RecordResponse, 0, len(records)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}
	for _, record := range records {
		res.Records = append(res.Records, toRecordResponse(record))
	}

	return res, nil
}

func (s *parkingService) LatestByCamera(ctx context.Context, cameraID string) (entity.CameraStatus, error) {
	status, err := s.redis.GetCameraStatus(ctx, cameraID)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, redis.ErrStatusNotFound) {
		s.log.WithFields(logrus.Fields{
			"error":     err.Error(),
			"camera_id": cameraID,
		}).Warn("Redis lookup failed, falling back to database")
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return entity.CameraStatus{}, err
	}

	record, err := repo.Records.GetLatestByCamera(ctx, cameraID)
	if err != nil {
		return entity.CameraStatus{}, err
	}

	status = statusFromRecord(record)
	s.cacheStatus(ctx, record)

	return status, nil
}

func (s *parkingService) buildRecord(
	userID string,
	req parking.UpdateRawRequest,
	snap occupancy.Snapshot,
	details []entity.SlotDetail,
	boxes []entity.DetectionBox,
	width, height int,
	archiveURL string,
	elapsed time.Duration,
) (entity.ParkingRecord, error) {
	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return entity.ParkingRecord{}, err
	}

	coords, err := json.Marshal(req.Coordinates)
	if err != nil {
		return entity.ParkingRecord{}, err
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return entity.ParkingRecord{}, err
	}

	return entity.ParkingRecord{
		ID:               id,
		UserID:           userID,
		CameraID:         req.CameraID,
		NodeID:           req.NodeID,
		Source:           entity.RecordSourceRaw,
		TotalSlots:       snap.TotalSlots,
		OccupiedSlots:    snap.OccupiedCount,
		EmptySlots:       snap.EmptyCount,
		OccupancyRate:    snap.OccupancyRate,
		CarsDetected:     len(boxes),
		Coordinates:      string(coords),
		SlotsDetails:     string(detailsJSON),
		ImageWidth:       width,
		ImageHeight:      height,
		ArchiveURL:       archiveURL,
		ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

func (s *parkingService) cacheStatus(ctx context.Context, record entity.ParkingRecord) {
	if s.redis == nil {
		return
	}
	if err := s.redis.SetCameraStatus(ctx, statusFromRecord(record), statusCacheTTL); err != nil {
		s.log.WithFields(logrus.Fields{
			"error":     err.Error(),
			"camera_id": record.CameraID,
		}).Warn("Failed to cache camera status")
	}
}

func statusFromRecord(record entity.ParkingRecord) entity.CameraStatus {
	return entity.CameraStatus{
		CameraID:      record.CameraID,
		TotalSlots:    record.TotalSlots,
		OccupiedSlots: record.OccupiedSlots,
		EmptySlots:    record.EmptySlots,
		OccupancyRate: record.OccupancyRate,
		UpdatedAt:     record.CreatedAt.Format(time.RFC3339),
	}
}

func toRecordResponse(record entity.ParkingRecord) parking.RecordResponse {
	return parking.RecordResponse{
		ID:               record.ID,
		CameraID:         record.CameraID,
		NodeID:           record.NodeID,
		Source:           record.Source,
		TotalSlots:       record.TotalSlots,
		OccupiedSlots:    record.OccupiedSlots,
		EmptySlots:       record.EmptySlots,
		OccupancyRate:    record.OccupancyRate,
		CarsDetected:     record.CarsDetected,
		ProcessingTimeMs: record.ProcessingTimeMs,
		ArchiveURL:       record.ArchiveURL,
		CreatedAt:        record.CreatedAt,
	}
}

func slotDetails(slots []occupancy.Slot, snap occupancy.Snapshot) []entity.SlotDetail {
	details := make([]entity.SlotDetail, 0, len(slots))
	for i, slot := range slots {
		details = append(details, entity.SlotDetail{
			SlotID: i + 1,
			Coordinates: [4]int{
				int(slot.X1), int(slot.Y1),
				int(slot.X2), int(slot.Y2),
			},
			IsOccupied: snap.Occupied[i],
			MaxOverlap: snap.MaxOverlaps[i],
		})
	}
	return details
}

func imageDims(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
