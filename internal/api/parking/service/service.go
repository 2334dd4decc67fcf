package parkingService

import (
	"intellilot/internal/api/parking"
	parkingRepository "intellilot/internal/api/parking/repository"
	"intellilot/internal/entity"
	"intellilot/internal/pipeline"
	"intellilot/pkg/detector"
	"intellilot/pkg/redis"
	"intellilot/pkg/s3"
	"intellilot/pkg/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IParkingService interface {
	ProcessRaw(ctx context.Context, userID string, req parking.UpdateRawRequest, imageData []byte) (parking.DetectionResponse, error)
	Detect(ctx context.Context, req parking.DetectRequest, imageData []byte) (parking.DetectionResponse, error)
	SaveEdgeUpdate(ctx context.Context, userID string, req parking.UpdateRequest) (parking.RecordResponse, error)
	History(ctx context.Context, userID, cameraID string, limit, offset int) (parking.HistoryResponse, error)
	LatestByCamera(ctx context.Context, cameraID string) (entity.CameraStatus, error)

	EnqueueFrame(ctx context.Context, cameraID, nodeID string, imageData []byte) (parking.EnqueueResponse, error)
	Results(limit int) []entity.ResultRecord
	LatestResult() (entity.ResultRecord, error)
	PipelineStats() pipeline.StatsSnapshot
}

type parkingService struct {
	log      *logrus.Logger
	repo     parkingRepository.Repository
	detector detectorPkg.IDetector
	s3Client s3.ItfS3
	redis    redis.IRedis
	utils    utils.IUtils

	queue   *pipeline.Queue
	ledger  *pipeline.Ledger
	stats   *pipeline.Stats
	workers int
}

func New(
	log *logrus.Logger,
	repo parkingRepository.Repository,
	det detectorPkg.IDetector,
	s3Client s3.ItfS3,
	redisServer redis.IRedis,
	u utils.IUtils,
	queue *pipeline.Queue,
	ledger *pipeline.Ledger,
	stats *pipeline.Stats,
	workers int,
) IParkingService {
	return &parkingService{
		log:      log,
		repo:     repo,
		detector: det,
		s3Client: s3Client,
		redis:    redisServer,
		utils:    u,
		queue:    queue,
		ledger:   ledger,
		stats:    stats,
		workers:  workers,
	}
}
