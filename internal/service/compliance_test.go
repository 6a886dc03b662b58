package service

import (
	"testing"
	"time"

	"github.com/slatrack/backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestRecomputeFormula(t *testing.T) {
	tests := []struct {
		incidents int
		wantSem   model.Semaphore
		wantPct   float64
	}{
		{0, model.SemaphoreGreen, 100},
		{1, model.SemaphoreYellow, 92.5},
		{2, model.SemaphoreYellow, 85},
		{3, model.SemaphoreRed, 70},
		{4, model.SemaphoreRed, 55},
		{7, model.SemaphoreRed, 10},
		{8, model.SemaphoreRed, 0},
		{20, model.SemaphoreRed, 0},
	}
	for _, tt := range tests {
		sem, pct := recomputeFormula(tt.incidents)
		assert.Equal(t, tt.wantSem, sem, "incidents=%d", tt.incidents)
		assert.InDelta(t, tt.wantPct, pct, 1e-9, "incidents=%d", tt.incidents)
	}
}

func TestBatchFormula(t *testing.T) {
	tests := []struct {
		name      string
		incidents int
		limit     int
		wantSem   model.Semaphore
		wantPct   float64
	}{
		{"no incidents", 0, 2, model.SemaphoreGreen, 100},
		{"half of default limit", 1, 2, model.SemaphoreYellow, 92.5},
		{"at default limit", 2, 2, model.SemaphoreYellow, 85},
		{"one over default limit", 3, 2, model.SemaphoreRed, 70},
		{"one of three", 1, 3, model.SemaphoreYellow, 95},
		{"two of three", 2, 3, model.SemaphoreYellow, 90},
		{"rounded to one decimal", 1, 4, model.SemaphoreYellow, 96.3},
		{"far over limit", 12, 3, model.SemaphoreRed, 0},
		{"zero limit falls back to default", 2, 0, model.SemaphoreYellow, 85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sem, pct := batchFormula(tt.incidents, tt.limit)
			assert.Equal(t, tt.wantSem, sem)
			assert.InDelta(t, tt.wantPct, pct, 1e-9)
		})
	}
}

func TestFormulasDisagreeAboveLimit(t *testing.T) {
	// A product allowed 5 incidents is yellow under the batch formula but
	// red under the recompute formula.
	batchSem, _ := batchFormula(4, 5)
	recomputeSem, _ := recomputeFormula(4)
	assert.Equal(t, model.SemaphoreYellow, batchSem)
	assert.Equal(t, model.SemaphoreRed, recomputeSem)
}

func TestMonthBounds(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	start, end := monthBounds(2026, 12, loc)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, loc), end)
}

func TestPreviousMonth(t *testing.T) {
	tests := []struct {
		now       time.Time
		wantYear  int
		wantMonth int
	}{
		{time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC), 2026, 3},
		{time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), 2025, 12},
		{time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC), 2026, 2},
	}
	for _, tt := range tests {
		y, m := previousMonth(tt.now)
		assert.Equal(t, tt.wantYear, y)
		assert.Equal(t, tt.wantMonth, m)
	}
}

func TestLimitFor(t *testing.T) {
	intp := func(v int) *int { return &v }
	product := model.Item{Type: model.ItemTypeProduct}
	svc := model.Item{Type: model.ItemTypeService}

	tests := []struct {
		name string
		item model.Item
		sla  *model.SLA
		want int
	}{
		{"product without sla", product, nil, 2},
		{"product with allowances", product, &model.SLA{CriticalAllowed: intp(1), MinorAllowed: intp(2)}, 3},
		{"product with only critical", product, &model.SLA{CriticalAllowed: intp(4)}, 4},
		{"product with zero allowances", product, &model.SLA{CriticalAllowed: intp(0), MinorAllowed: intp(0)}, 2},
		{"service ignores allowances", svc, &model.SLA{CriticalAllowed: intp(5), MinorAllowed: intp(5)}, 2},
		{"service without sla", svc, nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LimitFor(tt.item, tt.sla))
		})
	}
}
