package parkingService

import (
	"time"

	"intellilot/internal/api/parking"
	"intellilot/internal/entity"
	"intellilot/internal/pipeline"
	contextPkg "intellilot/pkg/context"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

func (s *parkingService) EnqueueFrame(ctx context.Context, cameraID, nodeID string, imageData []byte) (parking.EnqueueResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if len(imageData) == 0 {
		return parking.EnqueueResponse{}, parking.ErrNoImage
	}

	now := time.Now().UTC()
	taskID, err := s.utils.NewULIDFromTimestamp(now)
	if err != nil {
		return parking.EnqueueResponse{}, err
	}

	task := entity.FrameTask{
		TaskID:     taskID,
		FrameID:    taskID,
		CameraID:   cameraID,
		NodeID:     nodeID,
		Source:     entity.RecordSourceEdge,
		ImageData:  imageData,
		Timestamp:  now,
		ReceivedAt: now,
	}

	if !s.queue.Enqueue(task) {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"camera_id":  cameraID,
		}).Warn("Frame rejected, queue full")
		return parking.EnqueueResponse{}, parking.ErrQueueFull
	}

	return parking.EnqueueResponse{
		TaskID:   taskID,
		CameraID: cameraID,
		Queued:   true,
	}, nil
}

func (s *parkingService) Results(limit int) []entity.ResultRecord {
	if limit <= 0 || limit > pipeline.DefaultLedgerCapacity {
		limit = 50
	}
	return s.ledger.Recent(limit)
}

func (s *parkingService) LatestResult() (entity.ResultRecord, error) {
	record, ok := s.ledger.Latest()
	if !ok {
		return entity.ResultRecord{}, parking.ErrNoResults
	}
	return record, nil
}

func (s *parkingService) PipelineStats() pipeline.StatsSnapshot {
	return s.stats.Snapshot(s.queue, s.workers)
}
