package models

import "time"

type Metric string

const (
	MetricTemperature   Metric = "temperature"
	MetricHumidity      Metric = "humidity"
	MetricCO2           Metric = "co2"
	MetricArea          Metric = "area"
	MetricOccupancy     Metric = "occupancy"
	MetricAreaPerPerson Metric = "area_per_person"
)

// MetricGeneral is the recommendation type used for the score-wide rule.
const MetricGeneral Metric = "general"

type Priority string

const (
	PriorityEmergency Priority = "emergency"
	PriorityCritical  Priority = "critical"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

type Condition string

const (
	ConditionLow      Condition = "low"
	ConditionHigh     Condition = "high"
	ConditionVeryHigh Condition = "very_high"
)

// RawInputs is one set of room readings. The validate tags carry the
// accepted sensor ranges.
type RawInputs struct {
	Temperature float64 `json:"temperature" yaml:"temperature" validate:"gte=-10,lte=50"`
	Humidity    float64 `json:"humidity" yaml:"humidity" validate:"gte=0,lte=100"`
	CO2         float64 `json:"co2" yaml:"co2" validate:"gte=300,lte=5000"`
	Area        float64 `json:"area" yaml:"area" validate:"gt=0"`
	Occupancy   int     `json:"occupancy" yaml:"occupancy" validate:"gte=0"`
}

type NormalizedScores map[Metric]float64

type Category struct {
	Level string `json:"level" yaml:"level"`
	Label string `json:"label" yaml:"label"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

type Recommendation struct {
	Type        Metric    `json:"type" yaml:"type"`
	Condition   Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Priority    Priority  `json:"priority" yaml:"priority"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Actions     []string  `json:"actions" yaml:"actions"`
}

type MetricDetail struct {
	Value        float64  `json:"value" yaml:"value"`
	Unit         string   `json:"unit" yaml:"unit"`
	Score        *float64 `json:"score,omitempty" yaml:"score,omitempty"`
	Status       string   `json:"status" yaml:"status"`
	OptimalRange string   `json:"optimal_range" yaml:"optimal_range"`
}

type AnalysisResult struct {
	Success          bool                    `json:"success" yaml:"success"`
	Errors           []string                `json:"errors,omitempty" yaml:"errors,omitempty"`
	Score            float64                 `json:"score" yaml:"score"`
	Category         string                  `json:"category" yaml:"category"`
	Level            string                  `json:"level" yaml:"level"`
	Color            string                  `json:"color,omitempty" yaml:"color,omitempty"`
	Recommendations  []Recommendation        `json:"recommendations" yaml:"recommendations"`
	DetailedAnalysis map[Metric]MetricDetail `json:"detailed_analysis,omitempty" yaml:"detailed_analysis,omitempty"`
	NormalizedScores NormalizedScores        `json:"normalized_scores,omitempty" yaml:"normalized_scores,omitempty"`
}

type Deltas map[Metric]float64

type Prediction struct {
	CurrentScore          float64   `json:"current_score" yaml:"current_score"`
	ImprovedScore         float64   `json:"improved_score" yaml:"improved_score"`
	Improvement           float64   `json:"improvement" yaml:"improvement"`
	ImprovementPercentage float64   `json:"improvement_percentage" yaml:"improvement_percentage"`
	Impact                string    `json:"impact" yaml:"impact"`
	Applied               Deltas    `json:"applied" yaml:"applied"`
	ImprovedInputs        RawInputs `json:"improved_inputs" yaml:"improved_inputs"`
}

type Reading struct {
	ID        string    `json:"id" yaml:"id"`
	DeviceID  string    `json:"device_id" yaml:"device_id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Inputs    RawInputs `json:"inputs" yaml:"inputs"`
}

type AnalysisRecord struct {
	ID        string         `json:"id" yaml:"id"`
	DeviceID  string         `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Locale    string         `json:"locale" yaml:"locale"`
	Inputs    RawInputs      `json:"inputs" yaml:"inputs"`
	Result    AnalysisResult `json:"result" yaml:"result"`
}

type ScoreEvent struct {
	Timestamp      time.Time `json:"timestamp" yaml:"timestamp"`
	DeviceID       string    `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	Score          float64   `json:"score" yaml:"score"`
	Level          string    `json:"level" yaml:"level"`
	RollingAverage float64   `json:"rolling_average" yaml:"rolling_average"`
	ZScore         float64   `json:"z_score" yaml:"z_score"`
	IsDrop         bool      `json:"is_drop" yaml:"is_drop"`
}

type ScoreStats struct {
	CurrentScore    float64          `json:"current_score" yaml:"current_score"`
	RollingAverage  float64          `json:"rolling_average" yaml:"rolling_average"`
	DropRate        float64          `json:"drop_rate" yaml:"drop_rate"`
	TotalReadings   int64            `json:"total_readings" yaml:"total_readings"`
	TotalInvalid    int64            `json:"total_invalid" yaml:"total_invalid"`
	TotalDrops      int64            `json:"total_drops" yaml:"total_drops"`
	LastDropTime    time.Time        `json:"last_drop_time,omitempty" yaml:"last_drop_time,omitempty"`
	CategoryCounts  map[string]int64 `json:"category_counts" yaml:"category_counts"`
	WindowSize      int              `json:"window_size" yaml:"window_size"`
	ZScoreThreshold float64          `json:"z_score_threshold" yaml:"z_score_threshold"`
}
