package edge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"intellilot/pkg/camera"
	"intellilot/pkg/log"

	"golang.org/x/net/context"
)

const (
	DefaultCaptureInterval = 1 * time.Second
	DefaultUploadRetries   = 3
	DefaultUploadDelay     = 5 * time.Second

	framesPath = "/api/v1/parking/frames"
)

var errUnauthorized = errors.New("server rejected token")

// Worker drives one camera: capture, optional local archive, upload. Cycles
// are anchored to the wall clock so a slow upload shifts nothing. A cycle
// that overruns its interval rolls straight into the next one and the
// anchor resets from there.
type Worker struct {
	cameraID   string
	nodeID     string
	source     camera.ISource
	session    *Session
	serverURL  string
	client     *http.Client
	interval   time.Duration
	archiveDir string

	retries    int
	retryDelay time.Duration
	sleep      func(time.Duration)
}

type WorkerOption func(*Worker)

func WithNodeID(nodeID string) WorkerOption {
	return func(w *Worker) {
		w.nodeID = nodeID
	}
}

func WithWorkerHTTPClient(client *http.Client) WorkerOption {
	return func(w *Worker) {
		if client != nil {
			w.client = client
		}
	}
}

func WithUploadRetry(retries int, delay time.Duration) WorkerOption {
	return func(w *Worker) {
		if retries > 0 {
			w.retries = retries
		}
		if delay >= 0 {
			w.retryDelay = delay
		}
	}
}

func NewWorker(cfg CameraConfig, source camera.ISource, session *Session, serverURL string, opts ...WorkerOption) *Worker {
	w := &Worker{
		cameraID:   cfg.ID,
		source:     source,
		session:    session,
		serverURL:  serverURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		interval:   cfg.Interval(),
		archiveDir: cfg.ArchiveDir,
		retries:    DefaultUploadRetries,
		retryDelay: DefaultUploadDelay,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run captures and uploads until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if err := w.source.Open(); err != nil {
		log.Error(log.Fields{
			"error":     err.Error(),
			"camera_id": w.cameraID,
		}, "Failed to open camera source")
		return
	}
	defer w.source.Release()

	log.Info(log.Fields{
		"camera_id": w.cameraID,
		"interval":  w.interval.String(),
	}, "Camera worker started")

	next := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Info(log.Fields{"camera_id": w.cameraID}, "Camera worker stopped")
			return
		default:
		}

		w.cycle(ctx)

		next = next.Add(w.interval)
		now := time.Now()
		wait := next.Sub(now)
		if wait < 0 {
			// Overran the interval: start the next cycle now and anchor
			// the schedule from here.
			wait = 0
			next = now
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info(log.Fields{"camera_id": w.cameraID}, "Camera worker stopped")
			return
		case <-timer.C:
		}
	}
}

func (w *Worker) cycle(ctx context.Context) {
	capturedAt := time.Now().UTC()

	frame, err := w.source.Capture(ctx)
	if err != nil {
		log.Warn(log.Fields{
			"error":     err.Error(),
			"camera_id": w.cameraID,
		}, "Frame capture failed, reopening source")
		w.reopen()
		return
	}

	w.archive(frame, capturedAt)

	if err := w.uploadWithRetry(ctx, frame, capturedAt); err != nil {
		log.Error(log.Fields{
			"error":     err.Error(),
			"camera_id": w.cameraID,
		}, "Frame upload failed after all retries")
	}
}

func (w *Worker) reopen() {
	w.source.Release()
	if err := w.source.Open(); err != nil {
		log.Error(log.Fields{
			"error":     err.Error(),
			"camera_id": w.cameraID,
		}, "Failed to reopen camera source")
	}
}

func (w *Worker) archive(frame []byte, capturedAt time.Time) {
	if w.archiveDir == "" {
		return
	}

	name := fmt.Sprintf("%s-%s.jpg", w.cameraID, capturedAt.Format("20060102T150405.000Z0700"))
	if err := os.WriteFile(filepath.Join(w.archiveDir, name), frame, 0o644); err != nil {
		log.Warn(log.Fields{
			"error":     err.Error(),
			"camera_id": w.cameraID,
		}, "Failed to archive frame locally")
	}
}

func (w *Worker) uploadWithRetry(ctx context.Context, frame []byte, capturedAt time.Time) error {
	reauthenticated := false

	var lastErr error
	for attempt := 1; attempt <= w.retries; attempt++ {
		err := w.upload(ctx, frame, capturedAt)
		if err == nil {
			return nil
		}

		// One fresh login per upload when the token is rejected. A second
		// 401 means the credentials are bad, not the token, so give up.
		if errors.Is(err, errUnauthorized) {
			if reauthenticated {
				return err
			}
			reauthenticated = true
			lastErr = err
			w.session.Invalidate()
			continue
		}

		lastErr = err
		log.Warn(log.Fields{
			"error":     err.Error(),
			"camera_id": w.cameraID,
			"attempt":   attempt,
			"retries":   w.retries,
		}, "Frame upload attempt failed")

		if attempt < w.retries {
			w.sleep(w.retryDelay)
		}
	}

	return lastErr
}

func (w *Worker) upload(ctx context.Context, frame []byte, capturedAt time.Time) error {
	token, err := w.session.Token(ctx)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("camera_id", w.cameraID); err != nil {
		return err
	}
	if err := writer.WriteField("node_id", w.nodeID); err != nil {
		return err
	}
	if err := writer.WriteField("timestamp", capturedAt.Format(time.RFC3339Nano)); err != nil {
		return err
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="frame"; filename="%s.jpg"`, w.cameraID))
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(frame); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.serverURL+framesPath, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errUnauthorized
	case resp.StatusCode >= 300:
		return fmt.Errorf("frame upload returned status %d", resp.StatusCode)
	}

	return nil
}
