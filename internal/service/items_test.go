package service

import (
	"context"
	"testing"

	"github.com/slatrack/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateItemWithReplacement(t *testing.T) {
	store := newMemStore()
	svc := NewItemService(store)
	ctx := context.Background()
	actor := int64(2)

	old := store.addItem("P03", model.ItemTypeProduct)

	created, err := svc.CreateItem(ctx, &actor, model.CreateItemRequest{
		Code: " P04 ", Name: "Core router v2", Type: model.ItemTypeProduct,
		SupersedesID: &old.ID, ReplacementReason: "end of support",
	})
	require.NoError(t, err)
	assert.Equal(t, "P04", created.Code)
	assert.Equal(t, model.ItemStateProposed, created.State)
	require.NotNil(t, created.ReplacedAt)

	alerts := store.alertsOf(old.ID, model.AlertTypeReplacement)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.UrgencyLow, alerts[0].Urgency)
	assert.Contains(t, alerts[0].Message, "P04")
	assert.Contains(t, alerts[0].Message, "end of support")

	n, _ := store.CountItemVersions(ctx, created.ID)
	assert.Equal(t, 1, n)

	// The replaced item already has a successor.
	_, err = svc.CreateItem(ctx, &actor, model.CreateItemRequest{
		Code: "P05", Name: "Another", Type: model.ItemTypeProduct, SupersedesID: &old.ID,
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateItem(ctx, &actor, model.CreateItemRequest{Code: "P04", Name: "Dup", Type: model.ItemTypeProduct})
	assert.ErrorIs(t, err, ErrConflict)

	missing := int64(999)
	_, err = svc.CreateItem(ctx, &actor, model.CreateItemRequest{Code: "P06", Name: "x", Type: model.ItemTypeProduct, SupersedesID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CreateItem(ctx, &actor, model.CreateItemRequest{Code: "P07", Name: "x", Type: "vehicle"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDecideApproval(t *testing.T) {
	store := newMemStore()
	svc := NewItemService(store)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, nil, model.CreateItemRequest{Code: "S10", Name: "VPN", Type: model.ItemTypeService})
	require.NoError(t, err)

	_, err = svc.DecideApproval(ctx, item.ID, nil, model.ApprovalRequest{Decision: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	decided, err := svc.DecideApproval(ctx, item.ID, nil, model.ApprovalRequest{Decision: "Approve", Comment: "ok"})
	require.NoError(t, err)
	assert.Equal(t, model.ItemStateApproved, decided.State)

	_, err = svc.DecideApproval(ctx, item.ID, nil, model.ApprovalRequest{Decision: "reject"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.DecideApproval(ctx, 999, nil, model.ApprovalRequest{Decision: "reject"})
	assert.ErrorIs(t, err, ErrNotFound)

	n, _ := store.CountItemVersions(ctx, item.ID)
	assert.Equal(t, 2, n)
}

func TestUpdateItemAndLiveFilter(t *testing.T) {
	store := newMemStore()
	svc := NewItemService(store)
	ctx := context.Background()

	a := store.addItem("A", model.ItemTypeProduct)
	b := store.addItem("B", model.ItemTypeService)
	c := store.addItem("C", model.ItemTypeProduct)
	c.SupersedesID = &a.ID
	store.setItem(c)

	updated, err := svc.UpdateItem(ctx, b.ID, nil, model.UpdateItemRequest{Name: "Mail", OperationalState: model.OperationalMaintenance})
	require.NoError(t, err)
	assert.Equal(t, model.OperationalMaintenance, updated.OperationalState)

	_, err = svc.UpdateItem(ctx, b.ID, nil, model.UpdateItemRequest{Name: "Mail", OperationalState: "broken"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	live, err := svc.ListItems(ctx, model.ItemFilter{LiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, codes(live))

	products, err := svc.ListItems(ctx, model.ItemFilter{Type: model.ItemTypeProduct})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, codes(products))

	_, err = svc.ListItems(ctx, model.ItemFilter{Type: "vehicle"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetChain(t *testing.T) {
	store := newMemStore()
	svc := NewItemService(store)
	ctx := context.Background()

	a := store.addItem("A", model.ItemTypeProduct)
	b := store.addItem("B", model.ItemTypeProduct)
	b.SupersedesID = &a.ID
	store.setItem(b)
	c := store.addItem("C", model.ItemTypeProduct)
	c.SupersedesID = &b.ID
	store.setItem(c)

	chain, err := svc.GetChain(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, codes(chain.Previous))
	assert.Empty(t, chain.Next)
	assert.Equal(t, 3, chain.TotalVersions)
	assert.False(t, chain.Truncated)

	chain, err = svc.GetChain(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, codes(chain.Previous))
	assert.Equal(t, []string{"C"}, codes(chain.Next))

	_, err = svc.GetChain(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	// Corrupt the data into a cycle: A now supersedes C.
	a.SupersedesID = &c.ID
	store.setItem(a)
	chain, err = svc.GetChain(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, chain.Truncated)
}

func TestSLA(t *testing.T) {
	store := newMemStore()
	svc := NewItemService(store)
	ctx := context.Background()
	p := store.addItem("P40", model.ItemTypeProduct)

	_, err := svc.GetSLA(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	crit, minor := 1, 2
	saved, err := svc.UpsertSLA(ctx, p.ID, model.SLARequest{CriticalAllowed: &crit, MinorAllowed: &minor})
	require.NoError(t, err)
	assert.Equal(t, 3, LimitFor(p, saved))

	got, err := svc.GetSLA(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, *got.MinorAllowed)

	negative := -1
	_, err = svc.UpsertSLA(ctx, p.ID, model.SLARequest{CriticalAllowed: &negative})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpsertSLA(ctx, 999, model.SLARequest{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestComplianceReport(t *testing.T) {
	store := newMemStore()
	svc := NewReportService(store)
	ctx := context.Background()

	p := store.addItem("P01", model.ItemTypeProduct)
	store.addSLA(p.ID, 2, 2)
	s := store.addItem("S01", model.ItemTypeService)
	store.addItem("Q01", model.ItemTypeProduct)
	old := store.addItem("O01", model.ItemTypeProduct)
	replacement := store.addItem("O02", model.ItemTypeProduct)
	replacement.SupersedesID = &old.ID
	store.setItem(replacement)

	store.addMetric(p.ID, 2026, 3, model.SemaphoreRed, 6)
	store.addMetric(s.ID, 2026, 3, model.SemaphoreGreen, 0)
	store.addMetric(old.ID, 2026, 3, model.SemaphoreRed, 9)
	require.NoError(t, store.CreateAlert(ctx, &model.Alert{ItemID: p.ID, Type: model.AlertTypeFirstRed, State: model.AlertActive}))

	report, err := svc.ComplianceReport(ctx, 2026, 3)
	require.NoError(t, err)
	require.Len(t, report.Rows, 4)
	assert.Equal(t, "O02", report.Rows[0].Item.Code)
	assert.Equal(t, 1, report.Totals[model.SemaphoreRed])
	assert.Equal(t, 1, report.Totals[model.SemaphoreGreen])
	assert.Equal(t, 0, report.Totals[model.SemaphoreYellow])
	assert.Equal(t, 2, report.NoData)

	for _, row := range report.Rows {
		switch row.Item.Code {
		case "P01":
			assert.Equal(t, 4, row.Limit)
			assert.Equal(t, 1, row.ActiveAlerts)
		case "Q01":
			assert.Nil(t, row.Metric)
			assert.Equal(t, 2, row.Limit)
		}
	}

	_, err = svc.ComplianceReport(ctx, 2026, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
