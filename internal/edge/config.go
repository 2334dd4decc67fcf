package edge

import (
	"fmt"
	"os"
	"time"

	"intellilot/pkg/camera"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

type CameraConfig struct {
	ID              string        `json:"id" validate:"required"`
	IntervalSeconds float64       `json:"interval_seconds"`
	ArchiveDir      string        `json:"archive_dir"`
	Source          camera.Config `json:"source" validate:"required"`
}

func (c CameraConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return DefaultCaptureInterval
	}
	return time.Duration(c.IntervalSeconds * float64(time.Second))
}

type Config struct {
	ServerURL string         `json:"server_url" validate:"required,url"`
	Username  string         `json:"username" validate:"required"`
	Password  string         `json:"password" validate:"required"`
	NodeID    string         `json:"node_id"`
	Cameras   []CameraConfig `json:"cameras" validate:"required,min=1,dive"`
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read edge config: %w", err)
	}

	var cfg Config
	if err := jsoniter.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse edge config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid edge config: %w", err)
	}

	return cfg, nil
}
