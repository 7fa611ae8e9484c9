// Package analytics scores indoor air quality from room readings and turns
// out-of-range readings into prioritized recommendations.
//
// An Engine is immutable once built and safe for concurrent use. Build one
// per catalog locale with New.
package analytics

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"airq-service/internal/catalog"
	"airq-service/internal/models"
)

type Engine struct {
	tables        Tables
	rulesByMetric map[models.Metric][]Rule
	text          *catalog.Catalog
	validate      *validator.Validate
}

// New checks the tables for consistency and binds rule actions to the
// catalog's text.
func New(tables Tables, text *catalog.Catalog) (*Engine, error) {
	if text == nil {
		return nil, fmt.Errorf("analytics: catalog is required")
	}
	if len(tables.Bands) == 0 {
		return nil, fmt.Errorf("analytics: no category bands")
	}
	for i := 1; i < len(tables.Bands); i++ {
		if tables.Bands[i].Min > tables.Bands[i-1].Min {
			return nil, fmt.Errorf("analytics: band %q is out of order", tables.Bands[i].Level)
		}
	}
	if tables.MaxResults <= 0 {
		return nil, fmt.Errorf("analytics: max results must be positive, got %d", tables.MaxResults)
	}

	var sum float64
	for _, w := range tables.Weights {
		r, ok := tables.Ranges[w.Metric]
		if !ok {
			return nil, fmt.Errorf("analytics: weighted metric %q has no reference range", w.Metric)
		}
		if r.Min > r.Optimal || r.Optimal > r.Max {
			return nil, fmt.Errorf("analytics: range for %q must satisfy min <= optimal <= max", w.Metric)
		}
		sum += w.Weight
	}
	if math.Abs(sum-1) > 1e-9 {
		return nil, fmt.Errorf("analytics: weights sum to %.4f, want 1", sum)
	}

	byMetric := make(map[models.Metric][]Rule)
	rules := make([]Rule, 0, len(tables.Rules))
	for _, r := range tables.Rules {
		actions := text.ActionsFor(string(r.Metric), string(r.Condition))
		if len(actions) == 0 {
			return nil, fmt.Errorf("analytics: catalog %q has no actions for %s.%s", text.Locale, r.Metric, r.Condition)
		}
		r.Actions = cloneStrings(actions)
		rules = append(rules, r)
		byMetric[r.Metric] = append(byMetric[r.Metric], r)
	}
	tables.Rules = rules

	// Detach from the caller's maps and slices.
	ranges := make(map[models.Metric]ReferenceRange, len(tables.Ranges))
	for k, v := range tables.Ranges {
		ranges[k] = v
	}
	tables.Ranges = ranges
	status := make(map[models.Metric]StatusBand, len(tables.Status))
	for k, v := range tables.Status {
		status[k] = v
	}
	tables.Status = status
	tables.Weights = append([]Weight(nil), tables.Weights...)
	tables.Bands = append([]Band(nil), tables.Bands...)
	tables.Suggestions = append([]Suggestion(nil), tables.Suggestions...)

	return &Engine{
		tables:        tables,
		rulesByMetric: byMetric,
		text:          text,
		validate:      newValidator(),
	}, nil
}

func (e *Engine) Locale() string { return e.text.Locale }

// Rules returns the rule table with localized actions.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.tables.Rules))
	for i, r := range e.tables.Rules {
		r.Actions = cloneStrings(r.Actions)
		out[i] = r
	}
	return out
}

func (e *Engine) Ranges() map[models.Metric]ReferenceRange {
	out := make(map[models.Metric]ReferenceRange, len(e.tables.Ranges))
	for k, v := range e.tables.Ranges {
		out[k] = v
	}
	return out
}

func (e *Engine) Weights() []Weight {
	out := make([]Weight, len(e.tables.Weights))
	copy(out, e.tables.Weights)
	return out
}

func (e *Engine) Bands() []Band {
	out := make([]Band, len(e.tables.Bands))
	copy(out, e.tables.Bands)
	return out
}

// Analyze runs the full pipeline. Invalid inputs produce an unsuccessful
// result carrying the validation messages and a zero score.
func (e *Engine) Analyze(in models.RawInputs) models.AnalysisResult {
	if errs := e.Validate(in); len(errs) > 0 {
		return models.AnalysisResult{
			Success:         false,
			Errors:          errs,
			Score:           0,
			Category:        e.text.Invalid,
			Level:           LevelInvalid,
			Recommendations: []models.Recommendation{},
		}
	}

	normalized := e.Normalize(in)
	score := e.Score(normalized)
	category := e.Categorize(score)

	return models.AnalysisResult{
		Success:          true,
		Score:            score,
		Category:         category.Label,
		Level:            category.Level,
		Color:            category.Color,
		Recommendations:  e.Recommend(in, score),
		DetailedAnalysis: e.Detail(in, normalized),
		NormalizedScores: normalized,
	}
}

// Detail reports each metric's value, score and whether it sits inside its
// comfortable band.
func (e *Engine) Detail(in models.RawInputs, normalized models.NormalizedScores) map[models.Metric]models.MetricDetail {
	out := make(map[models.Metric]models.MetricDetail, len(e.tables.Status))
	for m, band := range e.tables.Status {
		v, ok := metricValue(in, m)
		if !ok {
			continue
		}
		status := band.NotOK
		if v >= band.Low && v <= band.High {
			status = band.OK
		}
		d := models.MetricDetail{
			Value:        v,
			Unit:         e.text.Units[string(m)],
			Status:       e.text.StatusLabel(status),
			OptimalRange: e.text.OptimalRanges[string(m)],
		}
		if band.Scored {
			if s, ok := normalized[m]; ok {
				d.Score = &s
			}
		}
		out[m] = d
	}
	return out
}
