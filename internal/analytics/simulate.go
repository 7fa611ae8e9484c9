package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"airq-service/internal/models"
)

var (
	ErrUnknownMetric     = errors.New("unknown metric")
	ErrUnreachableTarget = errors.New("area per person target must not be zero")
)

// Simulate applies deltas to a copy of in and compares the scores before
// and after. Deltas are applied in DeltaOrder, so an area_per_person delta
// is resolved against the area and occupancy already adjusted by the other
// deltas. Occupancy deltas are rounded to whole people.
func (e *Engine) Simulate(in models.RawInputs, deltas models.Deltas) (models.Prediction, error) {
	for m := range deltas {
		if !knownDelta(m) {
			return models.Prediction{}, fmt.Errorf("%w: %q", ErrUnknownMetric, m)
		}
	}

	improved := in
	applied := make(models.Deltas, len(deltas))
	for _, m := range DeltaOrder {
		d, ok := deltas[m]
		if !ok {
			continue
		}
		switch m {
		case models.MetricTemperature:
			improved.Temperature += d
		case models.MetricHumidity:
			improved.Humidity += d
		case models.MetricCO2:
			improved.CO2 += d
		case models.MetricArea:
			improved.Area += d
		case models.MetricOccupancy:
			improved.Occupancy += int(math.Round(d))
		case models.MetricAreaPerPerson:
			target := AreaPerPerson(improved.Area, improved.Occupancy) + d
			// Only head count is adjusted; a single occupant cannot be reduced.
			// A negative target bottoms out at one person.
			if improved.Occupancy > 1 {
				if target == 0 {
					return models.Prediction{}, ErrUnreachableTarget
				}
				improved.Occupancy = int(math.Max(1, improved.Area/target))
			}
		}
		applied[m] = d
	}

	current := e.Score(e.Normalize(in))
	next := e.Score(e.Normalize(improved))

	p := models.Prediction{
		CurrentScore:   current,
		ImprovedScore:  next,
		Improvement:    next - current,
		Applied:        applied,
		ImprovedInputs: improved,
	}
	if current > 0 {
		p.ImprovementPercentage = (next - current) / current * 100
	}
	p.Impact = e.impact(p.ImprovementPercentage)
	return p, nil
}

func (e *Engine) impact(pct float64) string {
	key := "small"
	switch {
	case pct > 20:
		key = "large"
	case pct > 10:
		key = "moderate"
	}
	if label, ok := e.text.Impact[key]; ok {
		return label
	}
	return key
}

// SuggestDeltas proposes a fixed corrective delta for every metric that is
// outside its comfortable band. The first matching suggestion per metric
// wins.
func (e *Engine) SuggestDeltas(in models.RawInputs) models.Deltas {
	out := models.Deltas{}
	for _, s := range e.tables.Suggestions {
		if _, done := out[s.Metric]; done {
			continue
		}
		v, ok := metricValue(in, s.Metric)
		if !ok {
			continue
		}
		if (s.Direction == Below && v < s.Threshold) || (s.Direction == Above && v > s.Threshold) {
			out[s.Metric] = s.Delta
		}
	}
	return out
}

func knownDelta(m models.Metric) bool {
	for _, k := range DeltaOrder {
		if k == m {
			return true
		}
	}
	return false
}

// SortedMetrics returns the keys of d in DeltaOrder.
func SortedMetrics(d models.Deltas) []models.Metric {
	out := make([]models.Metric, 0, len(d))
	for m := range d {
		out = append(out, m)
	}
	rank := func(m models.Metric) int {
		for i, k := range DeltaOrder {
			if k == m {
				return i
			}
		}
		return len(DeltaOrder)
	}
	sort.Slice(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}
