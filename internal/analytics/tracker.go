package analytics

import (
	"math"
	"sync"
	"time"

	"airq-service/internal/models"
)

// Tracker keeps rolling statistics over the overall scores of ingested
// readings and records sudden drops. It is the only stateful piece of the
// package and is safe for concurrent use.
type Tracker struct {
	windowSize      int
	zScoreThreshold float64
	minSamples      int
	scoreWindow     []float64
	drops           []models.ScoreEvent
	stats           models.ScoreStats
	mu              sync.RWMutex
}

const maxDrops = 100

func NewTracker(windowSize int, zScoreThreshold float64) *Tracker {
	return &Tracker{
		windowSize:      windowSize,
		zScoreThreshold: zScoreThreshold,
		minSamples:      10,
		scoreWindow:     make([]float64, 0, windowSize),
		drops:           make([]models.ScoreEvent, 0, maxDrops),
		stats: models.ScoreStats{
			CategoryCounts:  map[string]int64{},
			WindowSize:      windowSize,
			ZScoreThreshold: zScoreThreshold,
		},
	}
}

// Observe folds one analysis into the statistics. Invalid results are
// counted but never enter the score window.
func (t *Tracker) Observe(deviceID string, at time.Time, result models.AnalysisResult) models.ScoreEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.TotalReadings++
	t.stats.CategoryCounts[result.Level]++

	if !result.Success {
		t.stats.TotalInvalid++
		return models.ScoreEvent{Timestamp: at, DeviceID: deviceID, Level: result.Level}
	}

	t.scoreWindow = append(t.scoreWindow, result.Score)
	if len(t.scoreWindow) > t.windowSize {
		t.scoreWindow = t.scoreWindow[1:]
	}

	rollingAvg := t.rollingAverage()
	zScore := t.zScore(result.Score, rollingAvg)

	// Only falling scores matter for air quality.
	isDrop := zScore <= -t.zScoreThreshold && len(t.scoreWindow) >= t.minSamples

	ev := models.ScoreEvent{
		Timestamp:      at,
		DeviceID:       deviceID,
		Score:          result.Score,
		Level:          result.Level,
		RollingAverage: rollingAvg,
		ZScore:         zScore,
		IsDrop:         isDrop,
	}

	t.stats.CurrentScore = result.Score
	t.stats.RollingAverage = rollingAvg

	if isDrop {
		t.stats.TotalDrops++
		t.stats.LastDropTime = at

		t.drops = append(t.drops, ev)
		if len(t.drops) > maxDrops {
			t.drops = t.drops[1:]
		}
	}
	valid := t.stats.TotalReadings - t.stats.TotalInvalid
	if valid > 0 {
		t.stats.DropRate = float64(t.stats.TotalDrops) / float64(valid)
	}

	return ev
}

func (t *Tracker) rollingAverage() float64 {
	if len(t.scoreWindow) == 0 {
		return 0
	}

	var sum float64
	for _, s := range t.scoreWindow {
		sum += s
	}
	return sum / float64(len(t.scoreWindow))
}

func (t *Tracker) zScore(value, mean float64) float64 {
	if len(t.scoreWindow) < 2 {
		return 0
	}

	var variance float64
	for _, s := range t.scoreWindow {
		diff := s - mean
		variance += diff * diff
	}

	stdDev := math.Sqrt(variance / float64(len(t.scoreWindow)-1))
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

func (t *Tracker) Stats() models.ScoreStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.stats
	s.CategoryCounts = make(map[string]int64, len(t.stats.CategoryCounts))
	for k, v := range t.stats.CategoryCounts {
		s.CategoryCounts[k] = v
	}
	return s
}

// RecentDrops returns up to limit drop events, oldest first.
func (t *Tracker) RecentDrops(limit int) []models.ScoreEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit > len(t.drops) {
		limit = len(t.drops)
	}
	if limit < 0 {
		limit = 0
	}

	out := make([]models.ScoreEvent, limit)
	copy(out, t.drops[len(t.drops)-limit:])
	return out
}
