package service

import (
	"context"
	"fmt"

	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/model"
)

// ReportService builds the monthly compliance report over the live roster.
type ReportService struct {
	store db.Store
}

func NewReportService(store db.Store) *ReportService {
	return &ReportService{store: store}
}

func (s *ReportService) ComplianceReport(ctx context.Context, year, month int) (*model.ComplianceReport, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidInput)
	}
	if year < 2000 || year > 2100 {
		return nil, fmt.Errorf("%w: year out of range", ErrInvalidInput)
	}

	graph, err := loadGraph(ctx, s.store)
	if err != nil {
		return nil, err
	}
	metrics, err := s.store.ListMetrics(ctx, model.MetricFilter{Year: year, Month: month})
	if err != nil {
		return nil, err
	}
	byItem := make(map[int64]model.Metric, len(metrics))
	for _, m := range metrics {
		byItem[m.ItemID] = m
	}
	active, err := s.store.ListAlerts(ctx, model.AlertFilter{State: model.AlertActive})
	if err != nil {
		return nil, err
	}
	alertCount := make(map[int64]int)
	for _, a := range active {
		alertCount[a.ItemID]++
	}

	report := &model.ComplianceReport{
		Year:  year,
		Month: month,
		Rows:  []model.ComplianceRow{},
		Totals: map[model.Semaphore]int{
			model.SemaphoreGreen:  0,
			model.SemaphoreYellow: 0,
			model.SemaphoreRed:    0,
		},
	}
	for _, item := range graph.Roster() {
		limit, err := limitOf(ctx, s.store, item)
		if err != nil {
			return nil, err
		}
		row := model.ComplianceRow{Item: item, Limit: limit, ActiveAlerts: alertCount[item.ID]}
		if m, ok := byItem[item.ID]; ok {
			row.Metric = &m
			report.Totals[m.Semaphore]++
		} else {
			report.NoData++
		}
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}
