package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/context"
)

// fileSource replays a directory of pre-captured frames in lexical order.
// Used for lots without live feeds and as a deterministic stand-in during
// development.
type fileSource struct {
	dir    string
	loop   bool
	frames []string
	next   int
	opened bool
}

func newFileSource(cfg Config) (*fileSource, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("file source requires a directory")
	}
	return &fileSource{
		dir:  cfg.Dir,
		loop: cfg.Loop,
	}, nil
}

func (s *fileSource) Open() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	frames := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, ".jpeg") || strings.HasSuffix(name, ".png") {
			frames = append(frames, filepath.Join(s.dir, e.Name()))
		}
	}
	if len(frames) == 0 {
		return fmt.Errorf("no frames found in %s", s.dir)
	}

	sort.Strings(frames)
	s.frames = frames
	s.next = 0
	s.opened = true
	return nil
}

func (s *fileSource) Capture(ctx context.Context) ([]byte, error) {
	if !s.opened {
		return nil, ErrNotOpened
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.next >= len(s.frames) {
		if !s.loop {
			return nil, ErrStreamDone
		}
		s.next = 0
	}

	data, err := os.ReadFile(s.frames[s.next])
	if err != nil {
		return nil, err
	}
	s.next++

	return data, nil
}

func (s *fileSource) Release() error {
	s.opened = false
	return nil
}

func (s *fileSource) Available() bool {
	return s.opened
}
