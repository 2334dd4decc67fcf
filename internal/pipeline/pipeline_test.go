package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"intellilot/internal/entity"
	"intellilot/internal/occupancy"
	"intellilot/pkg/log"
	"intellilot/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	log.NewLogger()
	os.Exit(m.Run())
}

func task(id, camera string) entity.FrameTask {
	now := time.Now().UTC()
	return entity.FrameTask{
		TaskID:     id,
		FrameID:    id,
		CameraID:   camera,
		Source:     entity.RecordSourceEdge,
		ImageData:  []byte{0xff, 0xd8, 0xff},
		Timestamp:  now,
		ReceivedAt: now,
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(2)

	assert.True(t, q.Enqueue(task("t1", "cam-1")))
	assert.True(t, q.Enqueue(task("t2", "cam-1")))

	// The queue is full now. Every further enqueue returns immediately and
	// bumps the drop counter by exactly one.
	assert.False(t, q.Enqueue(task("t3", "cam-1")))
	assert.False(t, q.Enqueue(task("t4", "cam-1")))

	assert.Equal(t, int64(4), q.Received())
	assert.Equal(t, int64(2), q.Dropped())
	assert.Equal(t, 2, q.Depth())

	got, ok := q.Dequeue(100 * time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "t1", got.TaskID)
}

func TestQueueDequeueTimesOut(t *testing.T) {
	q := NewQueue(2)

	start := time.Now()
	_, ok := q.Dequeue(50 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestLedgerRingBounds(t *testing.T) {
	l := NewLedger(3, "")

	for i := 1; i <= 5; i++ {
		l.Append(entity.ResultRecord{TaskID: fmt.Sprintf("t%d", i), CameraID: "cam-1", Success: true})
	}

	assert.Equal(t, 3, l.Len())

	recent := l.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, "t5", recent[0].TaskID)
	assert.Equal(t, "t4", recent[1].TaskID)
	assert.Equal(t, "t3", recent[2].TaskID)

	latest, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, "t5", latest.TaskID)
}

func TestLedgerLatestByCamera(t *testing.T) {
	l := NewLedger(10, "")

	l.Append(entity.ResultRecord{TaskID: "t1", CameraID: "cam-1"})
	l.Append(entity.ResultRecord{TaskID: "t2", CameraID: "cam-2"})
	l.Append(entity.ResultRecord{TaskID: "t3", CameraID: "cam-1"})

	rec, ok := l.LatestByCamera("cam-1")
	require.True(t, ok)
	assert.Equal(t, "t3", rec.TaskID)

	_, ok = l.LatestByCamera("cam-9")
	assert.False(t, ok)
}

func TestLedgerEmpty(t *testing.T) {
	l := NewLedger(5, "")

	_, ok := l.Latest()
	assert.False(t, ok)
	assert.Empty(t, l.Recent(3))
}

func TestLedgerDurableLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.jsonl")

	l := NewLedger(5, path)
	l.Append(entity.ResultRecord{TaskID: "t1", CameraID: "cam-1", Success: true})
	l.Append(entity.ResultRecord{TaskID: "t2", CameraID: "cam-1", Success: false, Error: "boom"})
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []entity.ResultRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec entity.ResultRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	assert.Equal(t, "t1", lines[0].TaskID)
	assert.Equal(t, "boom", lines[1].Error)
}

type fakeDetector struct {
	boxes []entity.DetectionBox
	err   error
	calls int
}

func (f *fakeDetector) DetectVehicles(frame []byte) ([]entity.DetectionBox, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.boxes, nil
}

func (f *fakeDetector) IsConnected() bool { return true }
func (f *fakeDetector) Reconnect() error  { return nil }
func (f *fakeDetector) Close()            {}

func newTestEngine(t *testing.T) *occupancy.Engine {
	t.Helper()
	engine, err := occupancy.New([][]float64{
		{0, 0, 100, 100},
		{100, 0, 200, 100},
	})
	require.NoError(t, err)
	return engine
}

func waitForLedger(t *testing.T, l *Ledger, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if l.Len() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ledger never reached %d records", n)
}

func TestPoolProducesSuccessRecord(t *testing.T) {
	q := NewQueue(5)
	l := NewLedger(10, "")
	stats := NewStats()
	det := &fakeDetector{boxes: []entity.DetectionBox{
		{X1: 0, Y1: 0, X2: 90, Y2: 90, Confidence: 0.9, Class: "car"},
	}}

	pool := NewPool(q, det, newTestEngine(t), l, stats, WithWorkerCount(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	q.Enqueue(task("t1", "cam-1"))
	waitForLedger(t, l, 1)

	cancel()
	<-done

	rec, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, "t1", rec.TaskID)
	assert.True(t, rec.Success)
	require.NotNil(t, rec.ParkingData)
	assert.Equal(t, 2, rec.ParkingData.TotalSlots)
	assert.Equal(t, 1, rec.ParkingData.OccupiedSlots)
	assert.Equal(t, 1, rec.ParkingData.CarsDetected)

	snap := stats.Snapshot(q, pool.Workers())
	assert.Equal(t, int64(1), snap.FramesProcessed)
	assert.Equal(t, int64(1), snap.FramesSucceeded)
	assert.Zero(t, snap.FramesFailed)
}

func TestPoolSurvivesDetectorFailure(t *testing.T) {
	q := NewQueue(5)
	l := NewLedger(10, "")
	stats := NewStats()
	det := &fakeDetector{err: errors.New("inference backend down")}

	pool := NewPool(q, det, newTestEngine(t), l, stats, WithWorkerCount(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	q.Enqueue(task("t1", "cam-1"))
	q.Enqueue(task("t2", "cam-1"))
	waitForLedger(t, l, 2)

	cancel()
	<-done

	recent := l.Recent(2)
	require.Len(t, recent, 2)
	for _, rec := range recent {
		assert.False(t, rec.Success)
		assert.Contains(t, rec.Error, "inference backend down")
		assert.NotEmpty(t, rec.TaskID)
		assert.Nil(t, rec.ParkingData)
	}

	snap := stats.Snapshot(q, pool.Workers())
	assert.Equal(t, int64(2), snap.FramesFailed)
}

func TestPoolResultHook(t *testing.T) {
	q := NewQueue(5)
	l := NewLedger(10, "")
	det := &fakeDetector{}

	got := make(chan entity.ResultRecord, 1)
	pool := NewPool(q, det, newTestEngine(t), l, NewStats(),
		WithWorkerCount(1),
		WithResultHook(func(rec entity.ResultRecord) { got <- rec }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	q.Enqueue(task("t1", "cam-7"))

	select {
	case rec := <-got:
		assert.Equal(t, "cam-7", rec.CameraID)
	case <-time.After(3 * time.Second):
		t.Fatal("result hook never fired")
	}

	cancel()
	<-done
}

func TestDispatcherCountsFetchesAndErrors(t *testing.T) {
	goodCam := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	defer goodCam.Close()

	badCam := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer badCam.Close()

	q := NewQueue(10)
	stats := NewStats()
	d := NewDispatcher(
		[]CameraEndpoint{
			{ID: "cam-ok", URL: goodCam.URL},
			{ID: "cam-down", URL: badCam.URL},
		},
		q, utils.New(), stats,
		WithFetchInterval(20*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	deadline := time.After(3 * time.Second)
	for {
		snap := stats.Snapshot(q, 0)
		if snap.FramesFetched >= 1 && snap.FetchErrors >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("fetch counters never moved")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done

	snap := stats.Snapshot(q, 0)
	assert.GreaterOrEqual(t, snap.FramesFetched, int64(1))
	assert.GreaterOrEqual(t, snap.FetchErrors, int64(1))
	// Fetched frames made it into the queue, failed fetches did not.
	assert.GreaterOrEqual(t, q.Received(), int64(1))
}
