// Metric compiler
//
// Two semaphore formulas coexist and are kept apart on purpose:
//   - recomputeFormula: on-event recompute and manual generation. Fixed
//     bands (0 green, 1-2 yellow, 3+ red), two decimals.
//   - batchFormula: scheduled prior-month generation. Bands relative to the
//     item's SLA limit, one decimal.

package service

import (
	"math"
	"time"

	"github.com/slatrack/backend/internal/model"
)

func recomputeFormula(incidents int) (model.Semaphore, float64) {
	switch {
	case incidents <= 0:
		return model.SemaphoreGreen, 100
	case incidents <= 2:
		return model.SemaphoreYellow, roundTo(100-float64(incidents)*7.5, 2)
	default:
		return model.SemaphoreRed, roundTo(math.Max(0, 85-float64(incidents-2)*15), 2)
	}
}

func batchFormula(incidents, limit int) (model.Semaphore, float64) {
	if limit <= 0 {
		limit = defaultIncidentLimit
	}
	switch {
	case incidents <= 0:
		return model.SemaphoreGreen, 100
	case incidents <= limit:
		return model.SemaphoreYellow, roundTo(100-float64(incidents)/float64(limit)*15, 1)
	default:
		excess := incidents - limit
		return model.SemaphoreRed, roundTo(math.Max(0, 85-float64(excess)*15), 1)
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// monthBounds returns [start of month, start of next month) in loc.
func monthBounds(year, month int, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// previousMonth returns the calendar month before t.
func previousMonth(t time.Time) (int, int) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	prev := first.AddDate(0, 0, -1)
	return prev.Year(), int(prev.Month())
}
