// Item registry
//
// Items are created as proposed and decided once (approve/reject). A new item
// may supersede exactly one existing item; the superseded item leaves the live
// roster immediately and gets an informational replacement alert. Every
// create, edit and decision writes an item_versions row.

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/model"
	"github.com/slatrack/backend/internal/telemetry"
)

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

type ItemService struct {
	store db.Store
	now   func() time.Time
}

func NewItemService(store db.Store) *ItemService {
	return &ItemService{store: store, now: time.Now}
}

func (s *ItemService) CreateItem(ctx context.Context, actorID *int64, req model.CreateItemRequest) (*model.Item, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var created *model.Item
	err := s.store.WithTx(ctx, func(tx db.Store) error {
		item := model.Item{
			Code:             req.Code,
			Name:             req.Name,
			Type:             req.Type,
			Description:      req.Description,
			State:            model.ItemStateProposed,
			OperationalState: model.OperationalActive,
			CreatedBy:        actorID,
		}

		var target model.Item
		if req.SupersedesID != nil {
			graph, err := loadGraph(ctx, tx)
			if err != nil {
				return err
			}
			if err := graph.CheckSupersede(0, *req.SupersedesID); err != nil {
				return err
			}
			target, _ = graph.Item(*req.SupersedesID)
			now := s.now()
			item.SupersedesID = req.SupersedesID
			item.ReplacementReason = strings.TrimSpace(req.ReplacementReason)
			item.ReplacedAt = &now
		}

		if err := tx.CreateItem(ctx, &item); err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("%w: item code %s or replacement target is already taken", ErrConflict, item.Code)
			}
			return fmt.Errorf("create item: %w", err)
		}
		if err := tx.InsertItemVersion(ctx, &model.ItemVersion{ItemID: item.ID, Action: "created", ActorID: actorID}); err != nil {
			return fmt.Errorf("record version: %w", err)
		}

		if item.SupersedesID != nil {
			if err := s.replacementAlert(ctx, tx, target, item, actorID); err != nil {
				return err
			}
		}
		created = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("[Items] created", "item_id", created.ID, "code", created.Code, "supersedes", created.SupersedesID)
	return created, nil
}

func (s *ItemService) replacementAlert(ctx context.Context, tx db.Store, old, replacement model.Item, actorID *int64) error {
	msg := fmt.Sprintf("REPLACEMENT: %s - %s is being replaced by %s - %s.", old.Code, old.Name, replacement.Code, replacement.Name)
	if replacement.ReplacementReason != "" {
		msg += " Reason: " + replacement.ReplacementReason
	}
	alert := model.Alert{
		ItemID:    old.ID,
		Type:      model.AlertTypeReplacement,
		Urgency:   model.UrgencyLow,
		State:     model.AlertActive,
		Message:   msg,
		CreatedBy: actorID,
		CreatedAt: s.now(),
	}
	if err := tx.CreateAlert(ctx, &alert); err != nil {
		return fmt.Errorf("create replacement alert: %w", err)
	}
	telemetry.AlertsCreatedTotal.WithLabelValues(string(alert.Type)).Inc()
	return nil
}

// DecideApproval approves or rejects a proposed item.
func (s *ItemService) DecideApproval(ctx context.Context, id int64, actorID *int64, req model.ApprovalRequest) (*model.Item, error) {
	var next model.ItemState
	switch strings.ToLower(strings.TrimSpace(req.Decision)) {
	case DecisionApprove:
		next = model.ItemStateApproved
	case DecisionReject:
		next = model.ItemStateRejected
	default:
		return nil, fmt.Errorf("%w: decision must be %q or %q", ErrInvalidInput, DecisionApprove, DecisionReject)
	}

	var item *model.Item
	err := s.store.WithTx(ctx, func(tx db.Store) error {
		current, err := tx.GetItem(ctx, id)
		if err != nil {
			return notFound(err, "item", id)
		}
		if current.State != model.ItemStateProposed {
			return fmt.Errorf("%w: item %s is already %s", ErrConflict, current.Code, current.State)
		}
		current.State = next
		if err := tx.UpdateItem(ctx, current); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		v := model.ItemVersion{ItemID: id, Action: string(next), Comment: strings.TrimSpace(req.Comment), ActorID: actorID}
		if err := tx.InsertItemVersion(ctx, &v); err != nil {
			return fmt.Errorf("record version: %w", err)
		}
		item = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("[Items] approval decided", "item_id", id, "state", item.State)
	return item, nil
}

func (s *ItemService) UpdateItem(ctx context.Context, id int64, actorID *int64, req model.UpdateItemRequest) (*model.Item, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var item *model.Item
	err := s.store.WithTx(ctx, func(tx db.Store) error {
		current, err := tx.GetItem(ctx, id)
		if err != nil {
			return notFound(err, "item", id)
		}
		current.Name = req.Name
		current.Description = req.Description
		current.OperationalState = req.OperationalState
		if err := tx.UpdateItem(ctx, current); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		if err := tx.InsertItemVersion(ctx, &model.ItemVersion{ItemID: id, Action: "updated", ActorID: actorID}); err != nil {
			return fmt.Errorf("record version: %w", err)
		}
		item = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ItemService) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, notFound(err, "item", id)
	}
	return item, nil
}

func (s *ItemService) ListItems(ctx context.Context, filter model.ItemFilter) ([]model.Item, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, filter.Type)
	}
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	graph := NewChainResolver(items)

	out := []model.Item{}
	for _, item := range items {
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		if filter.State != "" && item.State != filter.State {
			continue
		}
		if filter.LiveOnly && !graph.IsLive(item.ID) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// GetChain returns the lineage of an item. A chain longer than the traversal
// bound is returned partially with Truncated set.
func (s *ItemService) GetChain(ctx context.Context, id int64) (*model.ItemChain, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	graph := NewChainResolver(items)
	item, ok := graph.Item(id)
	if !ok {
		return nil, fmt.Errorf("%w: item %d", ErrNotFound, id)
	}

	chain := &model.ItemChain{Item: item}

	preds, err := graph.Predecessors(id)
	if err != nil {
		if !errors.Is(err, ErrChainLimit) {
			return nil, err
		}
		chain.Truncated = true
		slog.Warn("[Items] replacement chain truncated", "item_id", id, "direction", "previous", "error", err)
	}
	previous := make([]model.Item, 0, len(preds))
	for i := len(preds) - 1; i >= 0; i-- {
		previous = append(previous, preds[i])
	}
	chain.Previous = previous

	succs, err := graph.Successors(id)
	if err != nil {
		if !errors.Is(err, ErrChainLimit) {
			return nil, err
		}
		chain.Truncated = true
		slog.Warn("[Items] replacement chain truncated", "item_id", id, "direction", "next", "error", err)
	}
	chain.Next = succs
	chain.TotalVersions = len(chain.Previous) + len(chain.Next) + 1
	return chain, nil
}

func (s *ItemService) GetSLA(ctx context.Context, itemID int64) (*model.SLA, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	sla, err := s.store.GetSLA(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if sla == nil {
		return nil, fmt.Errorf("%w: item %d has no SLA", ErrNotFound, itemID)
	}
	return sla, nil
}

func (s *ItemService) UpsertSLA(ctx context.Context, itemID int64, req model.SLARequest) (*model.SLA, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	sla := &model.SLA{
		ItemID:            itemID,
		AvailabilityPct:   req.AvailabilityPct,
		LatencyMs:         req.LatencyMs,
		ResponseMinutes:   req.ResponseMinutes,
		ResolutionMinutes: req.ResolutionMinutes,
		CriticalAllowed:   req.CriticalAllowed,
		MinorAllowed:      req.MinorAllowed,
	}
	if err := s.store.UpsertSLA(ctx, sla); err != nil {
		return nil, fmt.Errorf("save sla: %w", err)
	}
	return sla, nil
}
