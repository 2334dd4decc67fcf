package camera

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(Config{Type: "rtsp"})
	assert.Error(t, err)
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"snapshot without url", Config{Type: TypeSnapshot}},
		{"mjpeg without url", Config{Type: TypeMJPEG}},
		{"device without path", Config{Type: TypeDevice, Grabber: []string{"grab"}}},
		{"device without grabber", Config{Type: TypeDevice, Device: "/dev/video0"}},
		{"file without dir", Config{Type: TypeFile}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestFileSourceReplaysFramesInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame-002.jpg"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame-001.jpg"), []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	src, err := New(Config{Type: TypeFile, Dir: dir})
	require.NoError(t, err)

	assert.False(t, src.Available())
	require.NoError(t, src.Open())
	assert.True(t, src.Available())

	ctx := context.Background()

	frame, err := src.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", string(frame))

	frame, err = src.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", string(frame))

	_, err = src.Capture(ctx)
	assert.ErrorIs(t, err, ErrStreamDone)

	require.NoError(t, src.Release())
	assert.False(t, src.Available())
}

func TestFileSourceLoops(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only.jpg"), []byte("frame"), 0o644))

	src, err := New(Config{Type: TypeFile, Dir: dir, Loop: true})
	require.NoError(t, err)
	require.NoError(t, src.Open())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		frame, err := src.Capture(ctx)
		require.NoError(t, err)
		assert.Equal(t, "frame", string(frame))
	}
}

func TestFileSourceEmptyDir(t *testing.T) {
	src, err := New(Config{Type: TypeFile, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Error(t, src.Open())
}

func TestSnapshotSourceCaptures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xff, 0xd8, 0xff, 0xd9})
	}))
	defer server.Close()

	src, err := New(Config{Type: TypeSnapshot, URL: server.URL})
	require.NoError(t, err)

	_, err = src.Capture(context.Background())
	assert.ErrorIs(t, err, ErrNotOpened)

	require.NoError(t, src.Open())

	frame, err := src.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xd9}, frame)
}

func TestSnapshotSourceRejectsNonImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>login page</html>"))
	}))
	defer server.Close()

	src, err := New(Config{Type: TypeSnapshot, URL: server.URL})
	require.NoError(t, err)
	require.NoError(t, src.Open())

	_, err = src.Capture(context.Background())
	assert.Error(t, err)
}

func TestSnapshotSourceServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	src, err := New(Config{Type: TypeSnapshot, URL: server.URL})
	require.NoError(t, err)
	require.NoError(t, src.Open())

	_, err = src.Capture(context.Background())
	assert.Error(t, err)
}

func TestMJPEGSourceReadsParts(t *testing.T) {
	const boundary = "frameboundary"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
		w.WriteHeader(http.StatusOK)
		for _, payload := range []string{"frame-a", "frame-b"} {
			w.Write([]byte("--" + boundary + "\r\n"))
			w.Write([]byte("Content-Type: image/jpeg\r\n\r\n"))
			w.Write([]byte(payload))
			w.Write([]byte("\r\n"))
		}
		w.Write([]byte("--" + boundary + "--\r\n"))
	}))
	defer server.Close()

	src, err := New(Config{Type: TypeMJPEG, URL: server.URL})
	require.NoError(t, err)
	require.NoError(t, src.Open())
	defer src.Release()

	ctx := context.Background()

	frame, err := src.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, "frame-a", string(frame))

	frame, err = src.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, "frame-b", string(frame))

	_, err = src.Capture(ctx)
	assert.ErrorIs(t, err, ErrStreamDone)
}
