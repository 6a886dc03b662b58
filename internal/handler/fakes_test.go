package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slatrack/backend/internal/model"
	"github.com/slatrack/backend/internal/service"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// withUser stands in for AuthMiddleware in handler tests.
func withUser(user *model.AuthUser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(authUserKey, user)
		}
		c.Next()
	}
}

func doJSON(t *testing.T, r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

var errNotFound = fmt.Errorf("%w: item 9", service.ErrNotFound)

type fakeItems struct {
	err    error
	actor  *int64
	filter model.ItemFilter
	create model.CreateItemRequest
	sla    model.SLARequest
}

func (f *fakeItems) CreateItem(_ context.Context, actorID *int64, req model.CreateItemRequest) (*model.Item, error) {
	f.actor, f.create = actorID, req
	if f.err != nil {
		return nil, f.err
	}
	return &model.Item{ID: 1, Code: req.Code, Name: req.Name, Type: req.Type, State: model.ItemStateProposed}, nil
}

func (f *fakeItems) DecideApproval(_ context.Context, id int64, actorID *int64, _ model.ApprovalRequest) (*model.Item, error) {
	f.actor = actorID
	if f.err != nil {
		return nil, f.err
	}
	return &model.Item{ID: id, State: model.ItemStateApproved}, nil
}

func (f *fakeItems) UpdateItem(_ context.Context, id int64, actorID *int64, req model.UpdateItemRequest) (*model.Item, error) {
	f.actor = actorID
	if f.err != nil {
		return nil, f.err
	}
	return &model.Item{ID: id, Name: req.Name, OperationalState: req.OperationalState}, nil
}

func (f *fakeItems) GetItem(_ context.Context, id int64) (*model.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Item{ID: id, Code: "P01"}, nil
}

func (f *fakeItems) ListItems(_ context.Context, filter model.ItemFilter) ([]model.Item, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return []model.Item{{ID: 1, Code: "P01"}}, nil
}

func (f *fakeItems) GetChain(_ context.Context, id int64) (*model.ItemChain, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.ItemChain{Item: model.Item{ID: id}, Previous: []model.Item{}, Next: []model.Item{}, TotalVersions: 1}, nil
}

func (f *fakeItems) GetSLA(_ context.Context, itemID int64) (*model.SLA, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.SLA{ItemID: itemID}, nil
}

func (f *fakeItems) UpsertSLA(_ context.Context, itemID int64, req model.SLARequest) (*model.SLA, error) {
	f.sla = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.SLA{ItemID: itemID, CriticalAllowed: req.CriticalAllowed, MinorAllowed: req.MinorAllowed}, nil
}

// fakeEngine covers the incident, alert, metric and batch surfaces.
type fakeEngine struct {
	err   error
	actor *int64

	evidence       model.IncidentEvidence
	incidentFilter model.IncidentFilter
	alertFilter    model.AlertFilter
	metricFilter   model.MetricFilter
	resolveReq     model.ResolveAlertRequest
	resolveResult  *model.ResolveAlertResult
	since          time.Time
	force          bool
	generate       model.GenerateMetricRequest
}

func (f *fakeEngine) ReportIncident(_ context.Context, actorID *int64, req model.ReportIncidentRequest) (*model.ReportIncidentResult, error) {
	f.actor = actorID
	if f.err != nil {
		return nil, f.err
	}
	return &model.ReportIncidentResult{
		Incident:     model.Incident{ID: 7, ItemID: req.ItemID, Title: req.Title, State: model.IncidentOpen},
		Alerts:       []model.Alert{},
		Notification: model.DeliveryNotRequested,
		Technician:   model.DeliveryNotRequested,
	}, nil
}

func (f *fakeEngine) StartIncident(_ context.Context, id int64) (*model.Incident, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Incident{ID: id, State: model.IncidentInProgress}, nil
}

func (f *fakeEngine) ResolveIncident(_ context.Context, id int64, actorID *int64, ev model.IncidentEvidence) (*model.Incident, error) {
	f.actor, f.evidence = actorID, ev
	if f.err != nil {
		return nil, f.err
	}
	return &model.Incident{ID: id, State: model.IncidentResolved, ResolutionImage: ev.ImageRef}, nil
}

func (f *fakeEngine) GetIncident(_ context.Context, id int64) (*model.Incident, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Incident{ID: id}, nil
}

func (f *fakeEngine) ListIncidents(_ context.Context, filter model.IncidentFilter) ([]model.Incident, error) {
	f.incidentFilter = filter
	return []model.Incident{}, f.err
}

func (f *fakeEngine) ListAlerts(_ context.Context, filter model.AlertFilter) ([]model.Alert, error) {
	f.alertFilter = filter
	return []model.Alert{}, f.err
}

func (f *fakeEngine) GetAlert(_ context.Context, id int64) (*model.Alert, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Alert{ID: id}, nil
}

func (f *fakeEngine) AlertIncidents(_ context.Context, alertID int64) (*model.AlertIncidents, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.AlertIncidents{Alert: model.Alert{ID: alertID}, Linked: []model.Incident{}, Candidates: []model.Incident{}}, nil
}

func (f *fakeEngine) RecentAlerts(_ context.Context, since time.Time) ([]model.Alert, error) {
	f.since = since
	return []model.Alert{}, f.err
}

func (f *fakeEngine) ResolveAlert(_ context.Context, alertID int64, actorID *int64, req model.ResolveAlertRequest) (*model.ResolveAlertResult, error) {
	f.actor, f.resolveReq = actorID, req
	if f.err != nil {
		return nil, f.err
	}
	if f.resolveResult != nil {
		return f.resolveResult, nil
	}
	return &model.ResolveAlertResult{Alert: model.Alert{ID: alertID, State: model.AlertResolved}, AutoResolved: true}, nil
}

func (f *fakeEngine) TriggerManualCriticalAlert(_ context.Context, actorID *int64, req model.ManualAlertRequest) (*model.ManualAlertResult, error) {
	f.actor = actorID
	if f.err != nil {
		return nil, f.err
	}
	return &model.ManualAlertResult{
		Alert:        model.Alert{ID: 3, ItemID: req.ItemID, Type: model.AlertTypeManualCritical},
		Notification: model.DeliveryQueued,
		Message:      "critical alert sent",
	}, nil
}

func (f *fakeEngine) GenerateMetric(_ context.Context, req model.GenerateMetricRequest) (*model.GenerateMetricResult, error) {
	f.generate = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.GenerateMetricResult{Metric: model.Metric{ItemID: req.ItemID, Year: req.Year, Month: req.Month}, Alerts: []model.Alert{}}, nil
}

func (f *fakeEngine) RecalculateMetric(_ context.Context, id int64) (*model.GenerateMetricResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.GenerateMetricResult{Metric: model.Metric{ID: id}, Alerts: []model.Alert{}}, nil
}

func (f *fakeEngine) ListMetrics(_ context.Context, filter model.MetricFilter) ([]model.Metric, error) {
	f.metricFilter = filter
	return []model.Metric{}, f.err
}

func (f *fakeEngine) RunScheduledBatch(_ context.Context, force bool) (model.BatchSummary, error) {
	f.force = force
	if f.err != nil {
		return model.BatchSummary{}, f.err
	}
	return model.BatchSummary{Ran: force, Year: 2024, Month: 2}, nil
}

type fakeReports struct {
	year, month int
}

func (f *fakeReports) ComplianceReport(_ context.Context, year, month int) (*model.ComplianceReport, error) {
	f.year, f.month = year, month
	return &model.ComplianceReport{Year: year, Month: month, Rows: []model.ComplianceRow{}, Totals: map[model.Semaphore]int{}}, nil
}

var errBoom = errors.New("connection reset")

func newCookieRequest(method, target, name, value string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.AddCookie(&http.Cookie{Name: name, Value: value})
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
