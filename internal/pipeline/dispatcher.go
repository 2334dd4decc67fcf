package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"intellilot/internal/entity"
	"intellilot/pkg/log"
	"intellilot/pkg/utils"

	"golang.org/x/net/context"
)

const (
	DefaultFetchInterval = 1 * time.Second
	fetchTimeout         = 5 * time.Second
	maxFrameBytes        = 10 * 1024 * 1024
)

type CameraEndpoint struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// frameEnvelope is the JSON shape returned by edge nodes that publish
// metadata alongside the frame instead of raw image bytes.
type frameEnvelope struct {
	FrameID   string `json:"frame_id"`
	CameraID  string `json:"camera_id"`
	NodeID    string `json:"node_id"`
	Timestamp string `json:"timestamp"`
	ImageData string `json:"image_data"`
	FrameURL  string `json:"frame_url"`
}

// Dispatcher polls each camera endpoint on a fixed interval and feeds the
// frames it gets into the queue. A slow or dead camera only costs its own
// fetch, never the cycle of the others.
type Dispatcher struct {
	cameras  []CameraEndpoint
	queue    *Queue
	client   *http.Client
	utils    utils.IUtils
	stats    *Stats
	interval time.Duration
}

type DispatcherOption func(*Dispatcher)

func WithFetchInterval(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.interval = d
		}
	}
}

func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(dp *Dispatcher) {
		if client != nil {
			dp.client = client
		}
	}
}

func NewDispatcher(cameras []CameraEndpoint, queue *Queue, u utils.IUtils, stats *Stats, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		cameras:  cameras,
		queue:    queue,
		client:   &http.Client{Timeout: fetchTimeout},
		utils:    u,
		stats:    stats,
		interval: DefaultFetchInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	log.Info(log.Fields{
		"cameras":  len(d.cameras),
		"interval": d.interval.String(),
	}, "Ingestion dispatcher started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info(nil, "Ingestion dispatcher stopped")
			return
		case <-ticker.C:
			for _, cam := range d.cameras {
				task, err := d.fetch(ctx, cam)
				if err != nil {
					d.stats.RecordFetchError()
					log.Warn(log.Fields{
						"error":     err.Error(),
						"camera_id": cam.ID,
					}, "Failed to fetch frame from camera")
					continue
				}
				d.stats.RecordFetch()
				d.queue.Enqueue(task)
			}
		}
	}
}

func (d *Dispatcher) fetch(ctx context.Context, cam CameraEndpoint) (entity.FrameTask, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cam.URL, nil)
	if err != nil {
		return entity.FrameTask{}, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return entity.FrameTask{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entity.FrameTask{}, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return entity.FrameTask{}, err
	}
	if len(body) == 0 {
		return entity.FrameTask{}, fmt.Errorf("camera returned empty body")
	}

	now := time.Now().UTC()

	taskID, err := d.utils.NewULIDFromTimestamp(now)
	if err != nil {
		return entity.FrameTask{}, err
	}

	task := entity.FrameTask{
		TaskID:     taskID,
		CameraID:   cam.ID,
		Source:     entity.RecordSourceEdge,
		Timestamp:  now,
		ReceivedAt: now,
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "image/") {
		task.FrameID = taskID
		task.ImageData = body
		return task, nil
	}

	var envelope frameEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return entity.FrameTask{}, fmt.Errorf("unexpected camera payload: %w", err)
	}

	if envelope.FrameID != "" {
		task.FrameID = envelope.FrameID
	} else {
		task.FrameID = taskID
	}
	if envelope.CameraID != "" {
		task.CameraID = envelope.CameraID
	}
	task.NodeID = envelope.NodeID
	if envelope.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, envelope.Timestamp); err == nil {
			task.Timestamp = ts
		}
	}

	switch {
	case envelope.ImageData != "":
		data, err := d.utils.DecodeBase64Image(envelope.ImageData)
		if err != nil {
			return entity.FrameTask{}, err
		}
		task.ImageData = data
	case envelope.FrameURL != "":
		data, err := d.download(ctx, envelope.FrameURL)
		if err != nil {
			return entity.FrameTask{}, err
		}
		task.ImageData = data
	default:
		return entity.FrameTask{}, fmt.Errorf("camera envelope carries no frame")
	}

	return task, nil
}

func (d *Dispatcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("frame download returned status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
}
