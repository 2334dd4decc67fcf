package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"intellilot/internal/entity"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrStatusNotFound = errors.New("camera status not cached")

type IRedis interface {
	SetCameraStatus(ctx context.Context, status entity.CameraStatus, expiration time.Duration) error
	GetCameraStatus(ctx context.Context, cameraID string) (entity.CameraStatus, error)
	DeleteCameraStatus(ctx context.Context, cameraID string) error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func statusKey(cameraID string) string {
	return "camera_status:" + cameraID
}

func (r *redisClient) SetCameraStatus(ctx context.Context, status entity.CameraStatus, expiration time.Duration) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, statusKey(status.CameraID), payload, expiration).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error caching status for camera %s: %v", status.CameraID, err))
		return err
	}
	return nil
}

func (r *redisClient) GetCameraStatus(ctx context.Context, cameraID string) (entity.CameraStatus, error) {
	val, err := r.client.Get(ctx, statusKey(cameraID)).Result()
	if errors.Is(err, redis.Nil) {
		return entity.CameraStatus{}, ErrStatusNotFound
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error reading status for camera %s: %v", cameraID, err))
		return entity.CameraStatus{}, err
	}

	var status entity.CameraStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return entity.CameraStatus{}, err
	}
	return status, nil
}

func (r *redisClient) DeleteCameraStatus(ctx context.Context, cameraID string) error {
	_, err := r.client.Del(ctx, statusKey(cameraID)).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error deleting status for camera %s: %v", cameraID, err))
		return err
	}
	return nil
}
