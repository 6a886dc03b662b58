package model

import "time"

// Semaphore - traffic-light compliance state of a metric period
type Semaphore string

const (
	SemaphoreGreen  Semaphore = "green"
	SemaphoreYellow Semaphore = "yellow"
	SemaphoreRed    Semaphore = "red"
)

// MetricFormula records which compliance formula produced a metric row.
type MetricFormula string

const (
	FormulaRecompute MetricFormula = "recompute"
	FormulaBatch     MetricFormula = "batch"
)

// Metric - one row per (item, year, month)
type Metric struct {
	ID            int64         `json:"id"`
	ItemID        int64         `json:"item_id"`
	Year          int           `json:"year"`
	Month         int           `json:"month"`
	Incidents     int           `json:"incidents"`
	CompliancePct float64       `json:"compliance_pct"`
	Semaphore     Semaphore     `json:"semaphore"`
	Formula       MetricFormula `json:"formula"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type GenerateMetricRequest struct {
	ItemID int64 `json:"item_id" validate:"required,gt=0"`
	Month  int   `json:"month" validate:"required,min=1,max=12"`
	Year   int   `json:"year" validate:"required,min=2000,max=2100"`
}

type MetricFilter struct {
	ItemID *int64
	Year   int
	Month  int
}

// GenerateMetricResult - metric plus any trend alerts raised while compiling it
type GenerateMetricResult struct {
	Metric       Metric         `json:"metric"`
	Alerts       []Alert        `json:"alerts"`
	Notification DeliveryStatus `json:"notification"`
}

// BatchSummary - result of the scheduled prior-month generation
type BatchSummary struct {
	Ran       bool `json:"ran"`
	Year      int  `json:"year"`
	Month     int  `json:"month"`
	Generated int  `json:"generated"`
	Skipped   int  `json:"skipped"`
	Failed    int  `json:"failed"`
}
