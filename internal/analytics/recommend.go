package analytics

import (
	"sort"

	"airq-service/internal/models"
)

// Recommend builds the recommendation list for valid inputs. A low overall
// score adds one general entry; each metric contributes at most one entry,
// from the first of its rules that matches. The list is stable-sorted by
// priority rank and capped at MaxResults.
func (e *Engine) Recommend(in models.RawInputs, score float64) []models.Recommendation {
	recs := make([]models.Recommendation, 0, len(recommendationOrder)+1)

	if score < e.tables.GeneralBelow {
		recs = append(recs, models.Recommendation{
			Type:        models.MetricGeneral,
			Priority:    models.PriorityCritical,
			Title:       e.text.General.Title,
			Description: e.text.General.Description,
			Actions:     cloneStrings(e.text.General.Actions),
		})
	}

	for _, m := range recommendationOrder {
		v, _ := metricValue(in, m)
		for _, r := range e.rulesByMetric[m] {
			if !r.matches(v) {
				continue
			}
			recs = append(recs, models.Recommendation{
				Type:        m,
				Condition:   r.Condition,
				Priority:    r.Priority,
				Title:       e.text.RecommendationTitle(string(m)),
				Description: e.text.RecommendationDescription(string(m)),
				Actions:     cloneStrings(r.Actions),
			})
			break
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return PriorityRank(recs[i].Priority) < PriorityRank(recs[j].Priority)
	})

	if len(recs) > e.tables.MaxResults {
		recs = recs[:e.tables.MaxResults]
	}
	return recs
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
