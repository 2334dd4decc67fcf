package camera

import (
	"errors"
	"fmt"

	"golang.org/x/net/context"
)

// Source types accepted in camera configuration.
const (
	TypeSnapshot = "snapshot"
	TypeMJPEG    = "mjpeg"
	TypeDevice   = "device"
	TypeFile     = "file"
)

var (
	ErrNotOpened  = errors.New("camera source not opened")
	ErrNoFrame    = errors.New("no frame available")
	ErrStreamDone = errors.New("camera stream ended")
)

// ISource is a single camera. Implementations are not safe for concurrent
// Capture calls; each worker owns exactly one source.
type ISource interface {
	Open() error
	Capture(ctx context.Context) ([]byte, error)
	Release() error
	Available() bool
}

type Config struct {
	Type string `json:"type"`
	// URL for snapshot and mjpeg sources.
	URL string `json:"url"`
	// Device path and grabber command for device sources.
	Device  string   `json:"device"`
	Grabber []string `json:"grabber"`
	// Dir holds pre-captured frames for file sources.
	Dir  string `json:"dir"`
	Loop bool   `json:"loop"`
}

// New builds the source matching cfg.Type. The variant is fixed for the
// lifetime of the source; switching kinds means building a new one.
func New(cfg Config) (ISource, error) {
	switch cfg.Type {
	case TypeSnapshot:
		return newSnapshotSource(cfg)
	case TypeMJPEG:
		return newMJPEGSource(cfg)
	case TypeDevice:
		return newDeviceSource(cfg)
	case TypeFile:
		return newFileSource(cfg)
	default:
		return nil, fmt.Errorf("unknown camera source type %q", cfg.Type)
	}
}
