package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/model"
)

var errUniqueViolation = &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

// memStore is an in-memory db.Store. WithTx snapshots the tables and
// restores them when fn fails.
type memStore struct {
	mu   sync.Mutex
	inTx bool

	nextID    int64
	items     map[int64]model.Item
	slas      map[int64]model.SLA
	versions  []model.ItemVersion
	incidents map[int64]model.Incident
	metrics   map[int64]model.Metric
	alerts    map[int64]model.Alert
	links     map[[2]int64]model.AlertIncidentLink
	users     map[int64]model.User
	locks     []int64

	// fail lets a test inject an error for an operation on an item id
	// (0 matches every item).
	fail func(op string, itemID int64) error
}

func newMemStore() *memStore {
	return &memStore{
		items:     map[int64]model.Item{},
		slas:      map[int64]model.SLA{},
		incidents: map[int64]model.Incident{},
		metrics:   map[int64]model.Metric{},
		alerts:    map[int64]model.Alert{},
		links:     map[[2]int64]model.AlertIncidentLink{},
		users:     map[int64]model.User{},
	}
}

var _ db.Store = (*memStore)(nil)

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) injected(op string, itemID int64) error {
	if s.fail == nil {
		return nil
	}
	return s.fail(op, itemID)
}

type memSnapshot struct {
	nextID    int64
	items     map[int64]model.Item
	slas      map[int64]model.SLA
	versions  []model.ItemVersion
	incidents map[int64]model.Incident
	metrics   map[int64]model.Metric
	alerts    map[int64]model.Alert
	links     map[[2]int64]model.AlertIncidentLink
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		nextID:    s.nextID,
		items:     cloneMap(s.items),
		slas:      cloneMap(s.slas),
		versions:  append([]model.ItemVersion(nil), s.versions...),
		incidents: cloneMap(s.incidents),
		metrics:   cloneMap(s.metrics),
		alerts:    cloneMap(s.alerts),
		links:     cloneMap(s.links),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.nextID = snap.nextID
	s.items = snap.items
	s.slas = snap.slas
	s.versions = snap.versions
	s.incidents = snap.incidents
	s.metrics = snap.metrics
	s.alerts = snap.alerts
	s.links = snap.links
}

func (s *memStore) WithTx(ctx context.Context, fn func(tx db.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	snap := s.snapshot()
	s.inTx = true
	err := fn(s)
	s.inTx = false
	if err != nil {
		s.restore(snap)
	}
	return err
}

// ---- items ----

func (s *memStore) CreateItem(ctx context.Context, item *model.Item) error {
	for _, existing := range s.items {
		if existing.Code == item.Code {
			return errUniqueViolation
		}
		if item.SupersedesID != nil && existing.SupersedesID != nil && *existing.SupersedesID == *item.SupersedesID {
			return errUniqueViolation
		}
	}
	item.ID = s.id()
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	s.items[item.ID] = *item
	return nil
}

func (s *memStore) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &item, nil
}

func (s *memStore) LockItem(ctx context.Context, id int64) error {
	if _, ok := s.items[id]; !ok {
		return pgx.ErrNoRows
	}
	s.locks = append(s.locks, id)
	return nil
}

func (s *memStore) ListItems(ctx context.Context) ([]model.Item, error) {
	out := []model.Item{}
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *memStore) UpdateItem(ctx context.Context, item *model.Item) error {
	existing, ok := s.items[item.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.Name = item.Name
	existing.Description = item.Description
	existing.State = item.State
	existing.OperationalState = item.OperationalState
	existing.UpdatedAt = time.Now()
	item.UpdatedAt = existing.UpdatedAt
	s.items[item.ID] = existing
	return nil
}

func (s *memStore) InsertItemVersion(ctx context.Context, v *model.ItemVersion) error {
	n, _ := s.CountItemVersions(ctx, v.ItemID)
	v.ID = s.id()
	v.Version = n + 1
	v.CreatedAt = time.Now()
	s.versions = append(s.versions, *v)
	return nil
}

func (s *memStore) CountItemVersions(ctx context.Context, itemID int64) (int, error) {
	n := 0
	for _, v := range s.versions {
		if v.ItemID == itemID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) GetSLA(ctx context.Context, itemID int64) (*model.SLA, error) {
	sla, ok := s.slas[itemID]
	if !ok {
		return nil, nil
	}
	return &sla, nil
}

func (s *memStore) UpsertSLA(ctx context.Context, sla *model.SLA) error {
	sla.UpdatedAt = time.Now()
	s.slas[sla.ItemID] = *sla
	return nil
}

// ---- incidents ----

func (s *memStore) CreateIncident(ctx context.Context, inc *model.Incident) error {
	if err := s.injected("CreateIncident", inc.ItemID); err != nil {
		return err
	}
	inc.ID = s.id()
	inc.CreatedAt = time.Now()
	s.incidents[inc.ID] = *inc
	return nil
}

func (s *memStore) GetIncident(ctx context.Context, id int64) (*model.Incident, error) {
	inc, ok := s.incidents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &inc, nil
}

func (s *memStore) ListIncidents(ctx context.Context, filter model.IncidentFilter) ([]model.Incident, error) {
	out := []model.Incident{}
	for _, inc := range s.incidents {
		if filter.ItemID != nil && inc.ItemID != *filter.ItemID {
			continue
		}
		if filter.State != "" && inc.State != filter.State {
			continue
		}
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *memStore) UpdateIncidentState(ctx context.Context, id int64, from, to model.IncidentState) (bool, error) {
	inc, ok := s.incidents[id]
	if !ok || inc.State != from {
		return false, nil
	}
	inc.State = to
	s.incidents[id] = inc
	return true, nil
}

func (s *memStore) MarkIncidentResolved(ctx context.Context, inc *model.Incident) (bool, error) {
	existing, ok := s.incidents[inc.ID]
	if !ok || existing.State == model.IncidentResolved {
		return false, nil
	}
	existing.State = model.IncidentResolved
	existing.ResolvedAt = inc.ResolvedAt
	existing.ResolvedBy = inc.ResolvedBy
	existing.ResolutionMinutes = inc.ResolutionMinutes
	existing.ResolutionComment = inc.ResolutionComment
	existing.ResolutionImage = inc.ResolutionImage
	s.incidents[inc.ID] = existing
	return true, nil
}

func (s *memStore) CountIncidents(ctx context.Context, itemID int64, from, to time.Time, activeOnly bool) (int, error) {
	n := 0
	for _, inc := range s.incidents {
		if inc.ItemID != itemID || inc.OccurredAt.Before(from) || !inc.OccurredAt.Before(to) {
			continue
		}
		if activeOnly && inc.State == model.IncidentResolved {
			continue
		}
		n++
	}
	return n, nil
}

// ---- metrics ----

func (s *memStore) findMetric(itemID int64, year, month int) (model.Metric, bool) {
	for _, m := range s.metrics {
		if m.ItemID == itemID && m.Year == year && m.Month == month {
			return m, true
		}
	}
	return model.Metric{}, false
}

func (s *memStore) GetMetric(ctx context.Context, itemID int64, year, month int) (*model.Metric, error) {
	m, ok := s.findMetric(itemID, year, month)
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &m, nil
}

func (s *memStore) GetMetricByID(ctx context.Context, id int64) (*model.Metric, error) {
	m, ok := s.metrics[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &m, nil
}

func (s *memStore) InsertMetric(ctx context.Context, m *model.Metric) error {
	if err := s.injected("InsertMetric", m.ItemID); err != nil {
		return err
	}
	if _, ok := s.findMetric(m.ItemID, m.Year, m.Month); ok {
		return errUniqueViolation
	}
	m.ID = s.id()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	s.metrics[m.ID] = *m
	return nil
}

func (s *memStore) SaveMetric(ctx context.Context, m *model.Metric) error {
	if err := s.injected("SaveMetric", m.ItemID); err != nil {
		return err
	}
	if existing, ok := s.findMetric(m.ItemID, m.Year, m.Month); ok {
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		m.UpdatedAt = time.Now()
		s.metrics[m.ID] = *m
		return nil
	}
	m.ID = s.id()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	s.metrics[m.ID] = *m
	return nil
}

func (s *memStore) ListMetricHistory(ctx context.Context, itemID int64, year, month, limit int) ([]model.Metric, error) {
	out := []model.Metric{}
	for _, m := range s.metrics {
		if m.ItemID != itemID {
			continue
		}
		if m.Year < year || (m.Year == year && m.Month < month) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ListMetrics(ctx context.Context, filter model.MetricFilter) ([]model.Metric, error) {
	out := []model.Metric{}
	for _, m := range s.metrics {
		if filter.ItemID != nil && m.ItemID != *filter.ItemID {
			continue
		}
		if filter.Year != 0 && m.Year != filter.Year {
			continue
		}
		if filter.Month != 0 && m.Month != filter.Month {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		if out[i].Month != out[j].Month {
			return out[i].Month > out[j].Month
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

// ---- alerts ----

func (s *memStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	if err := s.injected("CreateAlert", a.ItemID); err != nil {
		return err
	}
	if a.Type == model.AlertTypeSLABreach && a.State == model.AlertActive {
		for _, existing := range s.alerts {
			if existing.ItemID == a.ItemID && existing.Type == a.Type && existing.State == model.AlertActive {
				return errUniqueViolation
			}
		}
	}
	a.ID = s.id()
	s.alerts[a.ID] = *a
	return nil
}

func (s *memStore) GetAlert(ctx context.Context, id int64) (*model.Alert, error) {
	a, ok := s.alerts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (s *memStore) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error) {
	out := []model.Alert{}
	for _, a := range s.alerts {
		if filter.ItemID != nil && a.ItemID != *filter.ItemID {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.State != "" && a.State != filter.State {
			continue
		}
		if filter.Since != nil && !a.CreatedAt.After(*filter.Since) {
			continue
		}
		if filter.Year != 0 && a.PeriodYear != filter.Year {
			continue
		}
		if filter.Month != 0 && a.PeriodMonth != filter.Month {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *memStore) UpdateAlertCounters(ctx context.Context, a *model.Alert) error {
	existing, ok := s.alerts[a.ID]
	if !ok {
		return errors.New("no alert found")
	}
	existing.PendingIncidents = a.PendingIncidents
	existing.ResolvedIncidents = a.ResolvedIncidents
	s.alerts[a.ID] = existing
	return nil
}

func (s *memStore) MarkAlertResolved(ctx context.Context, id int64, resolvedBy *int64, at time.Time) (bool, error) {
	a, ok := s.alerts[id]
	if !ok || a.State != model.AlertActive {
		return false, nil
	}
	a.State = model.AlertResolved
	a.ResolvedAt = &at
	a.ResolvedBy = resolvedBy
	s.alerts[id] = a
	return true, nil
}

func (s *memStore) LinkAlertIncident(ctx context.Context, link model.AlertIncidentLink) (bool, error) {
	key := [2]int64{link.AlertID, link.IncidentID}
	if _, ok := s.links[key]; ok {
		return false, nil
	}
	s.links[key] = link
	return true, nil
}

func (s *memStore) ListLinkedIncidents(ctx context.Context, alertID int64) ([]model.Incident, error) {
	out := []model.Incident{}
	for key := range s.links {
		if key[0] != alertID {
			continue
		}
		if inc, ok := s.incidents[key[1]]; ok {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- users ----

func (s *memStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (s *memStore) ListNotificationEmails(ctx context.Context, roles []model.Role) ([]string, error) {
	seen := map[string]bool{}
	out := []string{}
	for _, u := range s.users {
		if u.Email == "" || seen[u.Email] {
			continue
		}
		for _, r := range roles {
			if u.Role == r {
				seen[u.Email] = true
				out = append(out, u.Email)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// ---- seeding helpers ----

func (s *memStore) addItem(code string, typ model.ItemType) model.Item {
	item := model.Item{
		ID:               s.id(),
		Code:             code,
		Name:             code + " name",
		Type:             typ,
		State:            model.ItemStateApproved,
		OperationalState: model.OperationalActive,
	}
	s.items[item.ID] = item
	return item
}

func (s *memStore) setItem(item model.Item) {
	s.items[item.ID] = item
}

func (s *memStore) addSLA(itemID int64, critical, minor int) {
	s.slas[itemID] = model.SLA{ItemID: itemID, CriticalAllowed: &critical, MinorAllowed: &minor}
}

func (s *memStore) addIncident(itemID int64, occurred time.Time, state model.IncidentState) model.Incident {
	inc := model.Incident{
		ID:         s.id(),
		ItemID:     itemID,
		Title:      "seeded",
		Type:       "minor",
		Severity:   "medium",
		State:      state,
		OccurredAt: occurred,
	}
	s.incidents[inc.ID] = inc
	return inc
}

func (s *memStore) addMetric(itemID int64, year, month int, sem model.Semaphore, incidents int) model.Metric {
	m := model.Metric{
		ID:        s.id(),
		ItemID:    itemID,
		Year:      year,
		Month:     month,
		Incidents: incidents,
		Semaphore: sem,
		Formula:   model.FormulaRecompute,
	}
	s.metrics[m.ID] = m
	return m
}

func (s *memStore) addUser(role model.Role, email string) model.User {
	u := model.User{ID: s.id(), LoginID: string(role) + "-user", Role: role, Email: email}
	s.users[u.ID] = u
	return u
}

func (s *memStore) alertsOf(itemID int64, t model.AlertType) []model.Alert {
	out, _ := s.ListAlerts(context.Background(), model.AlertFilter{ItemID: &itemID, Type: t})
	return out
}

// recordingNotifier keeps every notification handed to it.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
	err  error
}

func (n *recordingNotifier) Enqueue(notification model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}

func (n *recordingNotifier) alertTypes() []model.AlertType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := []model.AlertType{}
	for _, s := range n.sent {
		if s.Alert != nil {
			out = append(out, s.Alert.Type)
		}
	}
	return out
}
