package occupancy

import (
	"errors"
	"fmt"
	"sync"

	"intellilot/internal/entity"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultSlotWidth  = 107
	DefaultSlotHeight = 48
	DefaultThreshold  = 0.30

	trendIncreasing = "increasing"
	trendDecreasing = "decreasing"
	trendStable     = "stable"
)

var (
	ErrNoPositions     = errors.New("no parking positions provided")
	ErrInvalidGeometry = errors.New("invalid slot geometry")
)

// Slot is one parking slot rectangle, fixed at engine construction.
type Slot struct {
	X1, Y1, X2, Y2 float64
}

func (s Slot) Width() float64  { return s.X2 - s.X1 }
func (s Slot) Height() float64 { return s.Y2 - s.Y1 }
func (s Slot) Area() float64   { return s.Width() * s.Height() }

// Snapshot is the result of one detection cycle. Created fresh per call,
// never mutated afterwards.
type Snapshot struct {
	Occupied      []bool
	MaxOverlaps   []float64
	TotalSlots    int
	OccupiedCount int
	EmptyCount    int
	OccupancyRate float64
}

// WindowAnalysis describes occupancy behaviour over the last N cycles.
type WindowAnalysis struct {
	WindowSize         int
	AverageOccupancy   float64
	OccupancyStdDev    float64
	Trend              string
	DetectionStability float64
	PeakOccupancy      int
	MinOccupancy       int
}

type Option func(*config)

type config struct {
	slotWidth  float64
	slotHeight float64
	threshold  float64
}

func WithSlotSize(width, height float64) Option {
	return func(c *config) {
		c.slotWidth = width
		c.slotHeight = height
	}
}

func WithThreshold(threshold float64) Option {
	return func(c *config) {
		c.threshold = threshold
	}
}

// Engine decides per-slot occupancy from vehicle detection boxes. It does no
// I/O; the history it keeps is guarded so pool workers can share one instance.
type Engine struct {
	slots         []Slot
	useRectangles bool
	threshold     float64

	mu               sync.Mutex
	occupancyHistory []int
	detectionHistory []int
}

// New builds an engine from a position list. The coordinate arity of the
// first entry decides the format for the whole list: 2 values mean a
// top-left point with the shared slot size, 4 values mean an explicit
// (x1,y1,x2,y2) rectangle.
func New(positions [][]float64, opts ...Option) (*Engine, error) {
	if len(positions) == 0 {
		return nil, ErrNoPositions
	}

	cfg := config{
		slotWidth:  DefaultSlotWidth,
		slotHeight: DefaultSlotHeight,
		threshold:  DefaultThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.slotWidth <= 0 || cfg.slotHeight <= 0 {
		return nil, fmt.Errorf("%w: slot size %gx%g", ErrInvalidGeometry, cfg.slotWidth, cfg.slotHeight)
	}

	arity := len(positions[0])
	if arity != 2 && arity != 4 {
		return nil, fmt.Errorf("%w: expected 2 or 4 coordinates, got %d", ErrInvalidGeometry, arity)
	}

	slots := make([]Slot, 0, len(positions))
	for i, pos := range positions {
		if len(pos) != arity {
			return nil, fmt.Errorf("%w: slot %d has %d coordinates, expected %d", ErrInvalidGeometry, i+1, len(pos), arity)
		}
		var slot Slot
		if arity == 2 {
			slot = Slot{X1: pos[0], Y1: pos[1], X2: pos[0] + cfg.slotWidth, Y2: pos[1] + cfg.slotHeight}
		} else {
			slot = Slot{X1: pos[0], Y1: pos[1], X2: pos[2], Y2: pos[3]}
		}
		if slot.X2 <= slot.X1 || slot.Y2 <= slot.Y1 {
			return nil, fmt.Errorf("%w: slot %d has non-positive extent", ErrInvalidGeometry, i+1)
		}
		slots = append(slots, slot)
	}

	return &Engine{
		slots:         slots,
		useRectangles: arity == 4,
		threshold:     cfg.threshold,
	}, nil
}

func (e *Engine) TotalSlots() int    { return len(e.slots) }
func (e *Engine) Threshold() float64 { return e.threshold }

// Slots returns a copy of the slot rectangles.
func (e *Engine) Slots() []Slot {
	out := make([]Slot, len(e.slots))
	copy(out, e.slots)
	return out
}

// Detect marks each slot occupied when any detection box overlaps it by
// strictly more than the threshold. The first crossing detection wins and
// the remaining detections for that slot are skipped, so the recorded max
// overlap may not belong to the detection that marked the slot.
func (e *Engine) Detect(detections []entity.DetectionBox) Snapshot {
	occupied := make([]bool, len(e.slots))
	maxOverlaps := make([]float64, len(e.slots))

	for i, slot := range e.slots {
		for _, det := range detections {
			if !det.Valid() {
				continue
			}

			ratio := overlapRatio(det, slot)
			if ratio > maxOverlaps[i] {
				maxOverlaps[i] = ratio
			}
			if ratio > e.threshold {
				occupied[i] = true
				break
			}
		}
	}

	occupiedCount := 0
	for _, occ := range occupied {
		if occ {
			occupiedCount++
		}
	}

	e.mu.Lock()
	e.occupancyHistory = append(e.occupancyHistory, occupiedCount)
	e.detectionHistory = append(e.detectionHistory, len(detections))
	e.mu.Unlock()

	return Snapshot{
		Occupied:      occupied,
		MaxOverlaps:   maxOverlaps,
		TotalSlots:    len(e.slots),
		OccupiedCount: occupiedCount,
		EmptyCount:    len(e.slots) - occupiedCount,
		OccupancyRate: rate(occupiedCount, len(e.slots)),
	}
}

// overlapRatio is intersection area over the slot's own area, not IoU.
// The intersection is clamped to the slot rectangle, so the ratio stays
// in [0,1] even for detection boxes much larger than the slot.
func overlapRatio(det entity.DetectionBox, slot Slot) float64 {
	ix1 := max(det.X1, slot.X1)
	iy1 := max(det.Y1, slot.Y1)
	ix2 := min(det.X2, slot.X2)
	iy2 := min(det.Y2, slot.Y2)

	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}

	area := slot.Area()
	if area <= 0 {
		return 0
	}
	return (ix2 - ix1) * (iy2 - iy1) / area
}

func rate(occupied, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(occupied) / float64(total) * 100
}

// ErrInsufficientData reports how many cycles a window analysis still needs.
type ErrInsufficientData struct {
	CyclesNeeded int
	CyclesSeen   int
}

func (e *ErrInsufficientData) Error() string {
	return fmt.Sprintf("insufficient data: have %d cycles, need %d", e.CyclesSeen, e.CyclesNeeded)
}

// AnalyzeWindow examines the last window cycles of history. When fewer than
// window cycles have been recorded it returns ErrInsufficientData rather
// than guessing a trend.
func (e *Engine) AnalyzeWindow(window int) (WindowAnalysis, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.occupancyHistory) < window {
		return WindowAnalysis{}, &ErrInsufficientData{CyclesNeeded: window, CyclesSeen: len(e.occupancyHistory)}
	}

	recentOcc := e.occupancyHistory[len(e.occupancyHistory)-window:]
	recentDet := e.detectionHistory[len(e.detectionHistory)-window:]

	occ := toFloats(recentOcc)
	det := toFloats(recentDet)

	peak, low := recentOcc[0], recentOcc[0]
	for _, v := range recentOcc {
		if v > peak {
			peak = v
		}
		if v < low {
			low = v
		}
	}

	return WindowAnalysis{
		WindowSize:         window,
		AverageOccupancy:   stat.Mean(occ, nil),
		OccupancyStdDev:    stat.PopStdDev(occ, nil),
		Trend:              classifyTrend(occ),
		DetectionStability: stat.PopStdDev(det, nil),
		PeakOccupancy:      peak,
		MinOccupancy:       low,
	}, nil
}

// classifyTrend fits a degree-1 least-squares line to the series and maps
// the slope onto increasing / decreasing / stable.
func classifyTrend(series []float64) string {
	if len(series) < 2 {
		return trendStable
	}

	xs := make([]float64, len(series))
	for i := range xs {
		xs[i] = float64(i)
	}

	_, slope := stat.LinearRegression(xs, series, nil, false)
	switch {
	case slope > 0.1:
		return trendIncreasing
	case slope < -0.1:
		return trendDecreasing
	default:
		return trendStable
	}
}

// Statistics aggregates the full recorded history.
type Statistics struct {
	TotalSlots        int     `json:"total_slots"`
	Threshold         float64 `json:"occupancy_threshold"`
	CyclesProcessed   int     `json:"cycles_processed"`
	AverageOccupancy  float64 `json:"average_occupancy"`
	MaxOccupancy      int     `json:"max_occupancy"`
	MinOccupancy      int     `json:"min_occupancy"`
	AverageDetections float64 `json:"average_detections"`
}

func (e *Engine) ExportStatistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := Statistics{
		TotalSlots:      len(e.slots),
		Threshold:       e.threshold,
		CyclesProcessed: len(e.occupancyHistory),
	}

	if len(e.occupancyHistory) > 0 {
		occ := toFloats(e.occupancyHistory)
		stats.AverageOccupancy = stat.Mean(occ, nil)
		stats.MaxOccupancy = e.occupancyHistory[0]
		stats.MinOccupancy = e.occupancyHistory[0]
		for _, v := range e.occupancyHistory {
			if v > stats.MaxOccupancy {
				stats.MaxOccupancy = v
			}
			if v < stats.MinOccupancy {
				stats.MinOccupancy = v
			}
		}
	}
	if len(e.detectionHistory) > 0 {
		stats.AverageDetections = stat.Mean(toFloats(e.detectionHistory), nil)
	}

	return stats
}

// ResetStatistics clears the recorded history. Operator action only.
func (e *Engine) ResetStatistics() {
	e.mu.Lock()
	e.occupancyHistory = nil
	e.detectionHistory = nil
	e.mu.Unlock()
}

func toFloats(in []int) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
