package analytics

import (
	"math"

	"airq-service/internal/models"
)

// ReferenceRange is the triangle a raw value is scored against. Inverse
// ranges flip the clamped score, so readings away from the optimum score
// higher.
type ReferenceRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Optimal float64 `json:"optimal"`
	Inverse bool    `json:"inverse,omitempty"`
}

type Weight struct {
	Metric models.Metric `json:"metric"`
	Weight float64       `json:"weight"`
}

type Band struct {
	Min   float64 `json:"min"`
	Level string  `json:"level"`
	Color string  `json:"color"`
}

type Direction string

const (
	Below Direction = "below"
	Above Direction = "above"
)

type Rule struct {
	Metric    models.Metric    `json:"metric"`
	Condition models.Condition `json:"condition"`
	Direction Direction        `json:"direction"`
	Threshold float64          `json:"threshold"`
	Priority  models.Priority  `json:"priority"`
	Actions   []string         `json:"actions,omitempty"`
}

func (r Rule) matches(v float64) bool {
	if r.Direction == Below {
		return v < r.Threshold
	}
	return v > r.Threshold
}

// StatusBand marks the acceptable interval used in the detailed report.
type StatusBand struct {
	Low    float64
	High   float64
	OK     string
	NotOK  string
	Scored bool
}

// Suggestion is a canned delta proposed when a metric leaves its band.
type Suggestion struct {
	Metric    models.Metric
	Direction Direction
	Threshold float64
	Delta     float64
}

// Tables bundles the static data an Engine is built from.
type Tables struct {
	Ranges       map[models.Metric]ReferenceRange
	Weights      []Weight
	Bands        []Band
	Rules        []Rule
	Status       map[models.Metric]StatusBand
	Suggestions  []Suggestion
	GeneralBelow float64
	MaxResults   int
}

const (
	LevelExcellent = "excellent"
	LevelGood      = "good"
	LevelModerate  = "moderate"
	LevelPoor      = "poor"
	LevelVeryPoor  = "very_poor"
	LevelInvalid   = "invalid"
)

var priorityRank = map[models.Priority]int{
	models.PriorityEmergency: 0,
	models.PriorityCritical:  1,
	models.PriorityHigh:      2,
	models.PriorityMedium:    3,
	models.PriorityLow:       4,
}

// PriorityRank orders priorities from most to least urgent. Unknown
// priorities rank with low.
func PriorityRank(p models.Priority) int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return priorityRank[models.PriorityLow]
}

// recommendationOrder is the order metric rules are evaluated in.
var recommendationOrder = []models.Metric{
	models.MetricTemperature,
	models.MetricHumidity,
	models.MetricCO2,
	models.MetricAreaPerPerson,
}

// DeltaOrder is the fixed order simulated deltas are applied in.
// area_per_person comes last so it sees every direct change first.
var DeltaOrder = []models.Metric{
	models.MetricTemperature,
	models.MetricHumidity,
	models.MetricCO2,
	models.MetricArea,
	models.MetricOccupancy,
	models.MetricAreaPerPerson,
}

// DefaultTables returns a fresh copy of the built-in tables. Rule actions
// are empty here; New fills them from the catalog.
func DefaultTables() Tables {
	return Tables{
		Ranges: map[models.Metric]ReferenceRange{
			models.MetricTemperature:   {Min: 18, Max: 26, Optimal: 22},
			models.MetricHumidity:      {Min: 30, Max: 60, Optimal: 45},
			models.MetricCO2:           {Min: 400, Max: 1000, Optimal: 600, Inverse: true},
			models.MetricAreaPerPerson: {Min: 10, Max: 50, Optimal: 25},
			models.MetricOccupancy:     {Min: 1, Max: 100, Optimal: 10},
		},
		Weights: []Weight{
			{Metric: models.MetricTemperature, Weight: 0.25},
			{Metric: models.MetricHumidity, Weight: 0.20},
			{Metric: models.MetricCO2, Weight: 0.35},
			{Metric: models.MetricAreaPerPerson, Weight: 0.20},
		},
		Bands: []Band{
			{Min: 0.8, Level: LevelExcellent, Color: "green"},
			{Min: 0.6, Level: LevelGood, Color: "lightgreen"},
			{Min: 0.4, Level: LevelModerate, Color: "orange"},
			{Min: 0.2, Level: LevelPoor, Color: "red"},
			{Min: 0, Level: LevelVeryPoor, Color: "darkred"},
		},
		Rules: []Rule{
			{Metric: models.MetricTemperature, Condition: models.ConditionLow, Direction: Below, Threshold: 18, Priority: models.PriorityHigh},
			{Metric: models.MetricTemperature, Condition: models.ConditionHigh, Direction: Above, Threshold: 26, Priority: models.PriorityHigh},
			{Metric: models.MetricHumidity, Condition: models.ConditionLow, Direction: Below, Threshold: 30, Priority: models.PriorityMedium},
			{Metric: models.MetricHumidity, Condition: models.ConditionHigh, Direction: Above, Threshold: 60, Priority: models.PriorityMedium},
			{Metric: models.MetricCO2, Condition: models.ConditionVeryHigh, Direction: Above, Threshold: 1500, Priority: models.PriorityEmergency},
			{Metric: models.MetricCO2, Condition: models.ConditionHigh, Direction: Above, Threshold: 1000, Priority: models.PriorityCritical},
			{Metric: models.MetricAreaPerPerson, Condition: models.ConditionLow, Direction: Below, Threshold: 15, Priority: models.PriorityHigh},
		},
		Status: map[models.Metric]StatusBand{
			models.MetricTemperature:   {Low: 18, High: 26, OK: "optimal", NotOK: "needs_improvement", Scored: true},
			models.MetricHumidity:      {Low: 30, High: 60, OK: "optimal", NotOK: "needs_improvement", Scored: true},
			models.MetricCO2:           {Low: math.Inf(-1), High: 1000, OK: "optimal", NotOK: "needs_improvement", Scored: true},
			models.MetricAreaPerPerson: {Low: 20, High: math.Inf(1), OK: "optimal", NotOK: "needs_improvement", Scored: true},
			models.MetricOccupancy:     {Low: math.Inf(-1), High: 50, OK: "normal", NotOK: "high_density"},
		},
		Suggestions: []Suggestion{
			{Metric: models.MetricTemperature, Direction: Below, Threshold: 18, Delta: 4},
			{Metric: models.MetricTemperature, Direction: Above, Threshold: 26, Delta: -4},
			{Metric: models.MetricHumidity, Direction: Below, Threshold: 30, Delta: 15},
			{Metric: models.MetricHumidity, Direction: Above, Threshold: 60, Delta: -15},
			{Metric: models.MetricCO2, Direction: Above, Threshold: 1000, Delta: -200},
			{Metric: models.MetricAreaPerPerson, Direction: Below, Threshold: 20, Delta: 5},
		},
		GeneralBelow: 0.4,
		MaxResults:   10,
	}
}
