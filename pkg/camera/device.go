package camera

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/net/context"
)

// deviceSource shells out to an external frame grabber for local capture
// devices. The grabber command must write exactly one encoded image to
// stdout per invocation; {device} in its arguments is replaced with the
// configured device path.
type deviceSource struct {
	device  string
	grabber []string
	opened  bool
}

func newDeviceSource(cfg Config) (*deviceSource, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("device source requires a device path")
	}
	if len(cfg.Grabber) == 0 {
		return nil, fmt.Errorf("device source requires a grabber command")
	}
	return &deviceSource{
		device:  cfg.Device,
		grabber: cfg.Grabber,
	}, nil
}

func (s *deviceSource) Open() error {
	if _, err := os.Stat(s.device); err != nil {
		return fmt.Errorf("capture device %s not accessible: %w", s.device, err)
	}
	s.opened = true
	return nil
}

func (s *deviceSource) Capture(ctx context.Context) ([]byte, error) {
	if !s.opened {
		return nil, ErrNotOpened
	}

	args := make([]string, 0, len(s.grabber)-1)
	for _, a := range s.grabber[1:] {
		args = append(args, strings.ReplaceAll(a, "{device}", s.device))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.grabber[0], args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("grabber failed: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("grabber failed: %w", err)
	}

	if stdout.Len() == 0 {
		return nil, ErrNoFrame
	}

	return stdout.Bytes(), nil
}

func (s *deviceSource) Release() error {
	s.opened = false
	return nil
}

func (s *deviceSource) Available() bool {
	if !s.opened {
		return false
	}
	_, err := os.Stat(s.device)
	return err == nil
}
