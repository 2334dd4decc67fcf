package pipeline

import (
	"sync/atomic"
	"time"
)

type Stats struct {
	startedAt   time.Time
	fetched     atomic.Int64
	fetchErrors atomic.Int64
	processed   atomic.Int64
	succeeded   atomic.Int64
	failed      atomic.Int64
	totalMs     atomic.Int64
}

func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) RecordFetch() {
	s.fetched.Add(1)
}

func (s *Stats) RecordFetchError() {
	s.fetchErrors.Add(1)
}

func (s *Stats) RecordSuccess(elapsed time.Duration) {
	s.processed.Add(1)
	s.succeeded.Add(1)
	s.totalMs.Add(elapsed.Milliseconds())
}

func (s *Stats) RecordFailure(elapsed time.Duration) {
	s.processed.Add(1)
	s.failed.Add(1)
	s.totalMs.Add(elapsed.Milliseconds())
}

type StatsSnapshot struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	FramesFetched    int64   `json:"frames_fetched"`
	FetchErrors      int64   `json:"fetch_errors"`
	FramesReceived   int64   `json:"frames_received"`
	FramesDropped    int64   `json:"frames_dropped"`
	FramesProcessed  int64   `json:"frames_processed"`
	FramesSucceeded  int64   `json:"frames_succeeded"`
	FramesFailed     int64   `json:"frames_failed"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	QueueDepth       int     `json:"queue_depth"`
	QueueCapacity    int     `json:"queue_capacity"`
	Workers          int     `json:"workers"`
}

func (s *Stats) Snapshot(q *Queue, workers int) StatsSnapshot {
	processed := s.processed.Load()

	snap := StatsSnapshot{
		UptimeSeconds:   time.Since(s.startedAt).Seconds(),
		FramesFetched:   s.fetched.Load(),
		FetchErrors:     s.fetchErrors.Load(),
		FramesProcessed: processed,
		FramesSucceeded: s.succeeded.Load(),
		FramesFailed:    s.failed.Load(),
		Workers:         workers,
	}
	if processed > 0 {
		snap.AverageLatencyMs = float64(s.totalMs.Load()) / float64(processed)
	}
	if q != nil {
		snap.FramesReceived = q.Received()
		snap.FramesDropped = q.Dropped()
		snap.QueueDepth = q.Depth()
		snap.QueueCapacity = q.Capacity()
	}
	return snap
}
