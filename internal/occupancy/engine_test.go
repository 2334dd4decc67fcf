package occupancy

import (
	"errors"
	"testing"

	"intellilot/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(x1, y1, x2, y2 float64) entity.DetectionBox {
	return entity.DetectionBox{X1: x1, Y1: y1, X2: x2, Y2: y2, Confidence: 0.9, Class: "car"}
}

func TestNewDetectsCoordinateFormat(t *testing.T) {
	tests := []struct {
		name      string
		positions [][]float64
		opts      []Option
		wantErr   bool
		wantSlot  Slot
	}{
		{
			name:      "point format uses shared slot size",
			positions: [][]float64{{10, 20}},
			opts:      []Option{WithSlotSize(100, 50)},
			wantSlot:  Slot{X1: 10, Y1: 20, X2: 110, Y2: 70},
		},
		{
			name:      "rectangle format keeps explicit bounds",
			positions: [][]float64{{0, 0, 100, 100}},
			wantSlot:  Slot{X1: 0, Y1: 0, X2: 100, Y2: 100},
		},
		{
			name:      "empty position list",
			positions: nil,
			wantErr:   true,
		},
		{
			name:      "invalid arity",
			positions: [][]float64{{1, 2, 3}},
			wantErr:   true,
		},
		{
			name:      "degenerate rectangle",
			positions: [][]float64{{100, 0, 100, 50}},
			wantErr:   true,
		},
		{
			name:      "inverted rectangle",
			positions: [][]float64{{100, 100, 50, 50}},
			wantErr:   true,
		},
		{
			name:      "mixed arity in one list",
			positions: [][]float64{{0, 0, 100, 100}, {10, 20}},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := New(tt.positions, tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, len(tt.positions), engine.TotalSlots())
			assert.Equal(t, tt.wantSlot, engine.Slots()[0])
		})
	}
}

func TestOverlapRatioBounds(t *testing.T) {
	slot := Slot{X1: 0, Y1: 0, X2: 100, Y2: 100}

	tests := []struct {
		name string
		det  entity.DetectionBox
		want float64
	}{
		{"no intersection", box(200, 200, 300, 300), 0},
		{"touching edge only", box(100, 0, 200, 100), 0},
		{"quarter overlap", box(50, 50, 150, 150), 0.25},
		{"detection contains slot", box(-50, -50, 150, 150), 1},
		{"detection equals slot", box(0, 0, 100, 100), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := overlapRatio(tt.det, slot)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestDetectThresholdIsStrict(t *testing.T) {
	engine, err := New([][]float64{{0, 0, 100, 100}}, WithThreshold(0.30))
	require.NoError(t, err)

	// Exactly 30% of the slot area: 0.30 is not strictly greater than 0.30.
	snap := engine.Detect([]entity.DetectionBox{box(0, 0, 30, 100)})
	assert.False(t, snap.Occupied[0])
	assert.InDelta(t, 0.30, snap.MaxOverlaps[0], 1e-9)

	// A hair more crosses it.
	snap = engine.Detect([]entity.DetectionBox{box(0, 0, 30.0001, 100)})
	assert.True(t, snap.Occupied[0])
}

func TestDetectEndToEndScenario(t *testing.T) {
	engine, err := New([][]float64{
		{0, 0, 100, 100},
		{100, 0, 200, 100},
		{200, 0, 300, 100},
	}, WithThreshold(0.30))
	require.NoError(t, err)

	// 50x50 intersection over a 100x100 slot: 0.25, below threshold.
	snap := engine.Detect([]entity.DetectionBox{box(10, 10, 60, 60)})
	assert.Equal(t, []bool{false, false, false}, snap.Occupied)
	assert.InDelta(t, 0.25, snap.MaxOverlaps[0], 1e-9)
	assert.Zero(t, snap.OccupiedCount)

	// 80x80 intersection: 0.64, slot 1 occupied, the rest stay empty.
	snap = engine.Detect([]entity.DetectionBox{box(10, 10, 90, 90)})
	assert.Equal(t, []bool{true, false, false}, snap.Occupied)
	assert.Equal(t, 1, snap.OccupiedCount)
	assert.Equal(t, 2, snap.EmptyCount)
	assert.InDelta(t, 33.33, snap.OccupancyRate, 0.01)
}

func TestDetectIgnoresInvalidBoxes(t *testing.T) {
	engine, err := New([][]float64{{0, 0, 100, 100}})
	require.NoError(t, err)

	snap := engine.Detect([]entity.DetectionBox{
		box(90, 10, 10, 90),  // x2 < x1
		box(10, 90, 90, 10),  // y2 < y1
		box(10, 10, 10, 90),  // zero width
	})
	assert.False(t, snap.Occupied[0])
	assert.Zero(t, snap.MaxOverlaps[0])
}

func TestDetectEmptyDetections(t *testing.T) {
	engine, err := New([][]float64{{0, 0}, {200, 0}}, WithSlotSize(100, 100))
	require.NoError(t, err)

	snap := engine.Detect(nil)
	assert.Equal(t, []bool{false, false}, snap.Occupied)
	assert.Equal(t, 2, snap.EmptyCount)
	assert.Zero(t, snap.OccupancyRate)
}

func TestOccupancyRateNoSlotsDivision(t *testing.T) {
	assert.Zero(t, rate(0, 0))
	assert.InDelta(t, 50.0, rate(1, 2), 1e-9)
}

func TestAnalyzeWindowTrend(t *testing.T) {
	tests := []struct {
		name   string
		series []int
		want   string
	}{
		{"flat series is stable", []int{10, 10, 10, 10, 10}, trendStable},
		{"rising series is increasing", []int{1, 3, 5, 7, 9}, trendIncreasing},
		{"falling series is decreasing", []int{9, 7, 5, 3, 1}, trendDecreasing},
		{"small jitter stays stable", []int{5, 5, 6, 5, 5}, trendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := New([][]float64{{0, 0, 100, 100}})
			require.NoError(t, err)

			for _, occ := range tt.series {
				engine.mu.Lock()
				engine.occupancyHistory = append(engine.occupancyHistory, occ)
				engine.detectionHistory = append(engine.detectionHistory, occ)
				engine.mu.Unlock()
			}

			analysis, err := engine.AnalyzeWindow(len(tt.series))
			require.NoError(t, err)
			assert.Equal(t, tt.want, analysis.Trend)
		})
	}
}

func TestAnalyzeWindowInsufficientData(t *testing.T) {
	engine, err := New([][]float64{{0, 0, 100, 100}})
	require.NoError(t, err)

	engine.Detect(nil)
	engine.Detect(nil)

	_, err = engine.AnalyzeWindow(5)
	require.Error(t, err)

	var insufficient *ErrInsufficientData
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 5, insufficient.CyclesNeeded)
	assert.Equal(t, 2, insufficient.CyclesSeen)
}

func TestExportAndResetStatistics(t *testing.T) {
	engine, err := New([][]float64{{0, 0, 100, 100}}, WithThreshold(0.30))
	require.NoError(t, err)

	engine.Detect([]entity.DetectionBox{box(0, 0, 100, 100)})
	engine.Detect(nil)

	stats := engine.ExportStatistics()
	assert.Equal(t, 2, stats.CyclesProcessed)
	assert.Equal(t, 1, stats.MaxOccupancy)
	assert.Equal(t, 0, stats.MinOccupancy)
	assert.InDelta(t, 0.5, stats.AverageOccupancy, 1e-9)

	engine.ResetStatistics()
	assert.Zero(t, engine.ExportStatistics().CyclesProcessed)
}
