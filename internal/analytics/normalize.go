package analytics

import "airq-service/internal/models"

// AreaPerPerson divides floor area by head count. With no occupants the
// area itself is returned.
func AreaPerPerson(area float64, occupancy int) float64 {
	if occupancy <= 0 {
		return area
	}
	return area / float64(occupancy)
}

// NormalizeValue maps a raw value to [0,1] on the range's triangle, peaking
// at Optimal. Values outside [Min, Max] saturate. Inverse ranges return the
// complement of the clamped score.
func NormalizeValue(value float64, r ReferenceRange) float64 {
	var score float64
	if value <= r.Optimal {
		if r.Optimal == r.Min {
			score = 1.0
		} else {
			score = (value - r.Min) / (r.Optimal - r.Min)
		}
	} else {
		if r.Max == r.Optimal {
			score = 0.0
		} else {
			score = 1.0 - (value-r.Optimal)/(r.Max-r.Optimal)
		}
	}
	score = clamp(score)
	if r.Inverse {
		score = 1.0 - score
	}
	return score
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func metricValue(in models.RawInputs, m models.Metric) (float64, bool) {
	switch m {
	case models.MetricTemperature:
		return in.Temperature, true
	case models.MetricHumidity:
		return in.Humidity, true
	case models.MetricCO2:
		return in.CO2, true
	case models.MetricArea:
		return in.Area, true
	case models.MetricOccupancy:
		return float64(in.Occupancy), true
	case models.MetricAreaPerPerson:
		return AreaPerPerson(in.Area, in.Occupancy), true
	}
	return 0, false
}

// Normalize scores every weighted metric. Occupancy is not scored.
func (e *Engine) Normalize(in models.RawInputs) models.NormalizedScores {
	out := make(models.NormalizedScores, len(e.tables.Weights))
	for _, w := range e.tables.Weights {
		v, ok := metricValue(in, w.Metric)
		if !ok {
			continue
		}
		out[w.Metric] = NormalizeValue(v, e.tables.Ranges[w.Metric])
	}
	return out
}
