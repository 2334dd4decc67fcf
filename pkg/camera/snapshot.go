package camera

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/context"
)

const snapshotTimeout = 5 * time.Second

// snapshotSource pulls one still image per Capture from an HTTP endpoint,
// the usual mode for IP cameras exposing a /snapshot or /shot.jpg URL.
type snapshotSource struct {
	url    string
	client *http.Client
	opened bool
}

func newSnapshotSource(cfg Config) (*snapshotSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("snapshot source requires a url")
	}
	return &snapshotSource{
		url:    cfg.URL,
		client: &http.Client{Timeout: snapshotTimeout},
	}, nil
}

func (s *snapshotSource) Open() error {
	s.opened = true
	return nil
}

func (s *snapshotSource) Capture(ctx context.Context) ([]byte, error) {
	if !s.opened {
		return nil, ErrNotOpened
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot endpoint returned status %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("snapshot endpoint returned %s, expected an image", ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNoFrame
	}

	return data, nil
}

func (s *snapshotSource) Release() error {
	s.opened = false
	return nil
}

func (s *snapshotSource) Available() bool {
	return s.opened
}
