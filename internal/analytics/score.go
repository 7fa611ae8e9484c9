package analytics

import "airq-service/internal/models"

// Score is the weighted mean of the normalized metrics that are present.
func (e *Engine) Score(n models.NormalizedScores) float64 {
	var totalScore, totalWeight float64
	for _, w := range e.tables.Weights {
		if v, ok := n[w.Metric]; ok {
			totalScore += v * w.Weight
			totalWeight += w.Weight
		}
	}
	if totalWeight == 0 {
		return 0
	}
	return totalScore / totalWeight
}

// Categorize picks the first band whose floor the score reaches. Bands are
// ordered highest first; the last one catches everything else.
func (e *Engine) Categorize(score float64) models.Category {
	bands := e.tables.Bands
	band := bands[len(bands)-1]
	for _, b := range bands {
		if score >= b.Min {
			band = b
			break
		}
	}
	return models.Category{
		Level: band.Level,
		Label: e.text.CategoryLabel(band.Level),
		Color: band.Color,
	}
}
