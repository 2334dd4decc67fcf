package pipeline

import (
	"encoding/json"
	"sync"

	"intellilot/internal/entity"
	"intellilot/pkg/log"

	"gopkg.in/natefinch/lumberjack.v2"
)

const DefaultLedgerCapacity = 1000

// Ledger keeps the most recent processing results in memory and appends
// every record to a rotating JSONL file for durability.
type Ledger struct {
	mu       sync.RWMutex
	records  []entity.ResultRecord
	start    int
	count    int
	capacity int
	sink     *lumberjack.Logger
}

func NewLedger(capacity int, logPath string) *Ledger {
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}

	l := &Ledger{
		records:  make([]entity.ResultRecord, capacity),
		capacity: capacity,
	}

	if logPath != "" {
		l.sink = &lumberjack.Logger{
			Filename:   logPath,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     14,
			MaxBackups: 5,
		}
	}

	return l
}

func (l *Ledger) Append(record entity.ResultRecord) {
	l.mu.Lock()
	idx := (l.start + l.count) % l.capacity
	l.records[idx] = record
	if l.count < l.capacity {
		l.count++
	} else {
		l.start = (l.start + 1) % l.capacity
	}
	l.mu.Unlock()

	l.persist(record)
}

func (l *Ledger) persist(record entity.ResultRecord) {
	if l.sink == nil {
		return
	}

	line, err := json.Marshal(record)
	if err != nil {
		log.Error(log.Fields{
			"error":   err.Error(),
			"task_id": record.TaskID,
		}, "Failed to marshal result record for durable log")
		return
	}

	if _, err := l.sink.Write(append(line, '\n')); err != nil {
		log.Error(log.Fields{
			"error":   err.Error(),
			"task_id": record.TaskID,
		}, "Failed to append result record to durable log")
	}
}

// Recent returns up to n records, newest first.
func (l *Ledger) Recent(n int) []entity.ResultRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.count {
		n = l.count
	}

	out := make([]entity.ResultRecord, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.start + l.count - 1 - i) % l.capacity
		out = append(out, l.records[idx])
	}
	return out
}

func (l *Ledger) Latest() (entity.ResultRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.count == 0 {
		return entity.ResultRecord{}, false
	}
	idx := (l.start + l.count - 1) % l.capacity
	return l.records[idx], true
}

// LatestByCamera returns the newest record for the given camera, scanning
// backwards through the retained window.
func (l *Ledger) LatestByCamera(cameraID string) (entity.ResultRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := 0; i < l.count; i++ {
		idx := (l.start + l.count - 1 - i) % l.capacity
		if l.records[idx].CameraID == cameraID {
			return l.records[idx], true
		}
	}
	return entity.ResultRecord{}, false
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

func (l *Ledger) Close() error {
	if l.sink == nil {
		return nil
	}
	return l.sink.Close()
}
