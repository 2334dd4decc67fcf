package pipeline

import (
	"sync"
	"time"

	"intellilot/internal/entity"
	"intellilot/internal/occupancy"
	"intellilot/pkg/detector"
	"intellilot/pkg/log"

	"golang.org/x/net/context"
)

const (
	DefaultWorkerCount = 2
	dequeueTimeout     = 1 * time.Second
)

// Pool drains the frame queue with a fixed set of workers. Every dequeued
// task produces exactly one ledger record, successful or not.
type Pool struct {
	queue    *Queue
	detector detectorPkg.IDetector
	engine   *occupancy.Engine
	ledger   *Ledger
	stats    *Stats
	workers  int
	onResult func(entity.ResultRecord)
	wg       sync.WaitGroup
}

type PoolOption func(*Pool)

func WithWorkerCount(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithResultHook registers a callback invoked after each record is appended
// to the ledger. It runs on the worker goroutine and must not block.
func WithResultHook(hook func(entity.ResultRecord)) PoolOption {
	return func(p *Pool) {
		p.onResult = hook
	}
}

func NewPool(
	queue *Queue,
	det detectorPkg.IDetector,
	engine *occupancy.Engine,
	ledger *Ledger,
	stats *Stats,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		queue:    queue,
		detector: det,
		engine:   engine,
		ledger:   ledger,
		stats:    stats,
		workers:  DefaultWorkerCount,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) Workers() int {
	return p.workers
}

// Run starts the workers and blocks until ctx is cancelled and all workers
// have drained out.
func (p *Pool) Run(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log.Info(log.Fields{"worker": id}, "Processing worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info(log.Fields{"worker": id}, "Processing worker stopped")
			return
		default:
		}

		task, ok := p.queue.Dequeue(dequeueTimeout)
		if !ok {
			continue
		}

		record := p.process(task)
		p.ledger.Append(record)

		if p.onResult != nil {
			p.onResult(record)
		}
	}
}

func (p *Pool) process(task entity.FrameTask) entity.ResultRecord {
	start := time.Now()

	record := entity.ResultRecord{
		TaskID:    task.TaskID,
		FrameID:   task.FrameID,
		CameraID:  task.CameraID,
		NodeID:    task.NodeID,
		Timestamp: task.Timestamp,
	}

	boxes, err := p.detector.DetectVehicles(task.ImageData)
	if err != nil {
		return p.fail(record, start, err)
	}

	snap := p.engine.Detect(boxes)

	record.ProcessedAt = time.Now().UTC()
	record.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000
	record.Success = true
	record.ParkingData = &entity.ParkingSum{
		TotalSlots:    snap.TotalSlots,
		OccupiedSlots: snap.OccupiedCount,
		EmptySlots:    snap.EmptyCount,
		OccupancyRate: snap.OccupancyRate,
		CarsDetected:  len(boxes),
	}

	p.stats.RecordSuccess(time.Since(start))

	return record
}

func (p *Pool) fail(record entity.ResultRecord, start time.Time, err error) entity.ResultRecord {
	record.ProcessedAt = time.Now().UTC()
	record.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000
	record.Success = false
	record.Error = err.Error()

	p.stats.RecordFailure(time.Since(start))

	log.Error(log.Fields{
		"error":     err.Error(),
		"task_id":   record.TaskID,
		"camera_id": record.CameraID,
	}, "Frame processing failed")

	return record
}
