package service

import (
	"testing"

	"github.com/slatrack/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainItem(id int64, code string, supersedes *int64) model.Item {
	return model.Item{
		ID:               id,
		Code:             code,
		State:            model.ItemStateApproved,
		OperationalState: model.OperationalActive,
		SupersedesID:     supersedes,
	}
}

func ptr[T any](v T) *T { return &v }

// A(1) <- B(2) <- C(3)
func linearChain() []model.Item {
	return []model.Item{
		chainItem(1, "A", nil),
		chainItem(2, "B", ptr(int64(1))),
		chainItem(3, "C", ptr(int64(2))),
	}
}

func codes(items []model.Item) []string {
	out := []string{}
	for _, it := range items {
		out = append(out, it.Code)
	}
	return out
}

func TestChainResolverWalks(t *testing.T) {
	r := NewChainResolver(linearChain())

	preds, err := r.Predecessors(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, codes(preds))

	succ, ok := r.Successor(1)
	require.True(t, ok)
	assert.Equal(t, "B", succ.Code)

	succs, err := r.Successors(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, codes(succs))

	_, ok = r.Successor(3)
	assert.False(t, ok)

	preds, err = r.Predecessors(99)
	require.NoError(t, err)
	assert.Empty(t, preds)
}

func TestChainResolverLiveness(t *testing.T) {
	items := linearChain()
	items = append(items,
		model.Item{ID: 4, Code: "D", State: model.ItemStateProposed, OperationalState: model.OperationalActive},
		model.Item{ID: 5, Code: "E", State: model.ItemStateApproved, OperationalState: model.OperationalMaintenance},
		model.Item{ID: 6, Code: "F", State: model.ItemStateApproved, OperationalState: model.OperationalActive},
		// a rejected successor still takes its target off the roster
		model.Item{ID: 7, Code: "G", State: model.ItemStateRejected, SupersedesID: ptr(int64(6))},
	)
	r := NewChainResolver(items)

	assert.False(t, r.IsLive(1))
	assert.False(t, r.IsLive(2))
	assert.True(t, r.IsLive(3))
	assert.False(t, r.IsLive(4))
	assert.True(t, r.IsLive(5))
	assert.False(t, r.IsLive(6))
	assert.False(t, r.IsLive(99))

	assert.Equal(t, []string{"C"}, codes(r.Roster()))
}

func TestChainResolverBranchingPicksLowestID(t *testing.T) {
	r := NewChainResolver([]model.Item{
		chainItem(1, "A", nil),
		chainItem(5, "B2", ptr(int64(1))),
		chainItem(3, "B1", ptr(int64(1))),
	})
	succ, ok := r.Successor(1)
	require.True(t, ok)
	assert.Equal(t, "B1", succ.Code)
}

func TestChainResolverCycleIsBounded(t *testing.T) {
	r := NewChainResolver([]model.Item{
		chainItem(1, "A", ptr(int64(2))),
		chainItem(2, "B", ptr(int64(1))),
	})

	preds, err := r.Predecessors(1)
	assert.ErrorIs(t, err, ErrChainLimit)
	assert.Len(t, preds, maxChainHops)

	succs, err := r.Successors(1)
	assert.ErrorIs(t, err, ErrChainLimit)
	assert.Len(t, succs, maxChainHops)
}

func TestCheckSupersede(t *testing.T) {
	r := NewChainResolver(linearChain())

	tests := []struct {
		name    string
		newID   int64
		target  int64
		wantErr error
	}{
		{"new item replaces chain head", 0, 3, nil},
		{"unknown target", 0, 42, ErrNotFound},
		{"target already superseded", 0, 1, ErrConflict},
		{"self supersession", 3, 3, ErrInvalidInput},
		{"edge would close a cycle", 1, 3, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.CheckSupersede(tt.newID, tt.target)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
