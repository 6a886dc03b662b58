// Replacement chain resolver
//
// Items are indexed by id; the successor of an item is the item whose
// SupersedesID points at it. Every walk is bounded by maxChainHops so a
// corrupted (cyclic) chain ends with ErrChainLimit instead of looping.

package service

import (
	"fmt"
	"sort"

	"github.com/slatrack/backend/internal/model"
)

const maxChainHops = 50

type ChainResolver struct {
	items     map[int64]model.Item
	successor map[int64]int64
}

func NewChainResolver(items []model.Item) *ChainResolver {
	r := &ChainResolver{
		items:     make(map[int64]model.Item, len(items)),
		successor: make(map[int64]int64),
	}
	for _, item := range items {
		r.items[item.ID] = item
	}
	for _, item := range items {
		if item.SupersedesID == nil {
			continue
		}
		// Lowest id wins if the data ever branches.
		target := *item.SupersedesID
		if prev, ok := r.successor[target]; !ok || item.ID < prev {
			r.successor[target] = item.ID
		}
	}
	return r
}

func (r *ChainResolver) Item(id int64) (model.Item, bool) {
	item, ok := r.items[id]
	return item, ok
}

// Successor returns the item that directly supersedes id.
func (r *ChainResolver) Successor(id int64) (model.Item, bool) {
	next, ok := r.successor[id]
	if !ok {
		return model.Item{}, false
	}
	return r.Item(next)
}

// Predecessors follows supersedes links backward, nearest first.
// With C -> B -> A, Predecessors(C) is [B, A].
func (r *ChainResolver) Predecessors(id int64) ([]model.Item, error) {
	out := []model.Item{}
	current, ok := r.items[id]
	if !ok {
		return out, nil
	}
	for hops := 0; current.SupersedesID != nil; hops++ {
		if hops == maxChainHops {
			return out, fmt.Errorf("%w: walking back from item %d", ErrChainLimit, id)
		}
		prev, ok := r.items[*current.SupersedesID]
		if !ok {
			break
		}
		out = append(out, prev)
		current = prev
	}
	return out, nil
}

// Successors follows the reverse lookup forward, nearest first.
func (r *ChainResolver) Successors(id int64) ([]model.Item, error) {
	out := []model.Item{}
	current := id
	for hops := 0; ; hops++ {
		next, ok := r.Successor(current)
		if !ok {
			return out, nil
		}
		if hops == maxChainHops {
			return out, fmt.Errorf("%w: walking forward from item %d", ErrChainLimit, id)
		}
		out = append(out, next)
		current = next.ID
	}
}

func (r *ChainResolver) IsSuperseded(id int64) bool {
	_, ok := r.successor[id]
	return ok
}

// IsLive reports whether an item takes part in metrics, alerting and
// reporting: approved and not replaced by another item.
func (r *ChainResolver) IsLive(id int64) bool {
	item, ok := r.items[id]
	if !ok {
		return false
	}
	return item.State == model.ItemStateApproved && !r.IsSuperseded(id)
}

// Roster returns the live, operationally active items ordered by code.
func (r *ChainResolver) Roster() []model.Item {
	out := []model.Item{}
	for id, item := range r.items {
		if r.IsLive(id) && item.OperationalState == model.OperationalActive {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// CheckSupersede validates a new supersession edge newID -> targetID.
// The target must exist, must not already be superseded, and the edge must
// not close a cycle.
func (r *ChainResolver) CheckSupersede(newID, targetID int64) error {
	if _, ok := r.items[targetID]; !ok {
		return fmt.Errorf("%w: item %d", ErrNotFound, targetID)
	}
	if newID != 0 && newID == targetID {
		return fmt.Errorf("%w: an item cannot supersede itself", ErrInvalidInput)
	}
	if succ, ok := r.Successor(targetID); ok && succ.ID != newID {
		return fmt.Errorf("%w: item %d is already superseded by %s", ErrConflict, targetID, succ.Code)
	}
	if newID == 0 {
		return nil
	}
	preds, err := r.Predecessors(targetID)
	if err != nil {
		return err
	}
	for _, p := range preds {
		if p.ID == newID {
			return fmt.Errorf("%w: superseding item %d would create a cycle", ErrInvalidInput, targetID)
		}
	}
	return nil
}
