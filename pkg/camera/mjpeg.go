package camera

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/context"
)

// mjpegSource holds a multipart/x-mixed-replace stream open and returns the
// next part on each Capture. Typical for older IP cameras and mjpeg-streamer
// setups.
type mjpegSource struct {
	url    string
	client *http.Client
	body   io.ReadCloser
	reader *multipart.Reader
	cancel context.CancelFunc
}

func newMJPEGSource(cfg Config) (*mjpegSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mjpeg source requires a url")
	}
	return &mjpegSource{
		url: cfg.URL,
		client: &http.Client{
			// No overall timeout, the stream stays open. Connection setup
			// is bounded separately.
			Transport: &http.Transport{
				ResponseHeaderTimeout: 10 * time.Second,
			},
		},
	}, nil
}

func (s *mjpegSource) Open() error {
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		cancel()
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("mjpeg endpoint returned status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("mjpeg endpoint did not return a multipart stream")
	}

	boundary, ok := params["boundary"]
	if !ok {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("mjpeg stream missing multipart boundary")
	}

	s.body = resp.Body
	s.reader = multipart.NewReader(resp.Body, boundary)
	s.cancel = cancel
	return nil
}

func (s *mjpegSource) Capture(ctx context.Context) ([]byte, error) {
	if s.reader == nil {
		return nil, ErrNotOpened
	}

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		part, err := s.reader.NextPart()
		if err != nil {
			if err == io.EOF {
				err = ErrStreamDone
			}
			ch <- result{err: err}
			return
		}
		defer part.Close()

		data, err := io.ReadAll(part)
		if err != nil {
			ch <- result{err: err}
			return
		}
		if len(data) == 0 {
			ch <- result{err: ErrNoFrame}
			return
		}
		ch <- result{data: data}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.data, res.err
	}
}

func (s *mjpegSource) Release() error {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.body != nil {
		err := s.body.Close()
		s.body = nil
		s.reader = nil
		return err
	}
	return nil
}

func (s *mjpegSource) Available() bool {
	return s.reader != nil
}
