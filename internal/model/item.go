// Item (IT asset) and SLA models.
// Items form a supersession chain through SupersedesID: a newer item points at
// the single item it replaces, and the reverse lookup finds the successor.

package model

import "time"

type ItemType string

const (
	ItemTypeProduct ItemType = "product"
	ItemTypeService ItemType = "service"
)

func (t ItemType) Valid() bool {
	return t == ItemTypeProduct || t == ItemTypeService
}

// ItemState is the approval lifecycle: proposed -> approved | rejected.
type ItemState string

const (
	ItemStateProposed ItemState = "proposed"
	ItemStateApproved ItemState = "approved"
	ItemStateRejected ItemState = "rejected"
)

type OperationalState string

const (
	OperationalActive      OperationalState = "active"
	OperationalMaintenance OperationalState = "maintenance"
	OperationalInactive    OperationalState = "inactive"
)

type Item struct {
	ID                int64            `json:"id"`
	Code              string           `json:"code"`
	Name              string           `json:"name"`
	Type              ItemType         `json:"type"`
	Description       string           `json:"description"`
	State             ItemState        `json:"state"`
	OperationalState  OperationalState `json:"operational_state"`
	SupersedesID      *int64           `json:"supersedes_id,omitempty"`
	ReplacementReason string           `json:"replacement_reason,omitempty"`
	ReplacedAt        *time.Time       `json:"replaced_at,omitempty"`
	CreatedBy         *int64           `json:"created_by,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// SLA - optional 1:1 attachment to an item.
// Service fields are descriptive; only the product failure allowances feed the
// incident threshold.
type SLA struct {
	ItemID            int64     `json:"item_id"`
	AvailabilityPct   *float64  `json:"availability_pct,omitempty"`
	LatencyMs         *int      `json:"latency_ms,omitempty"`
	ResponseMinutes   *int      `json:"response_minutes,omitempty"`
	ResolutionMinutes *int      `json:"resolution_minutes,omitempty"`
	CriticalAllowed   *int      `json:"critical_allowed,omitempty"`
	MinorAllowed      *int      `json:"minor_allowed,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ItemVersion - audit row written on create, edit and approval decisions
type ItemVersion struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Version   int       `json:"version"`
	Action    string    `json:"action"`
	Comment   string    `json:"comment,omitempty"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateItemRequest struct {
	Code              string   `json:"code" validate:"required,max=50"`
	Name              string   `json:"name" validate:"required,max=200"`
	Type              ItemType `json:"type" validate:"required,oneof=product service"`
	Description       string   `json:"description"`
	SupersedesID      *int64   `json:"supersedes_id,omitempty" validate:"omitempty,gt=0"`
	ReplacementReason string   `json:"replacement_reason,omitempty"`
}

type UpdateItemRequest struct {
	Name             string           `json:"name" validate:"required,max=200"`
	Description      string           `json:"description"`
	OperationalState OperationalState `json:"operational_state" validate:"required,oneof=active maintenance inactive"`
}

type ApprovalRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

type SLARequest struct {
	AvailabilityPct   *float64 `json:"availability_pct,omitempty" validate:"omitempty,gte=0,lte=100"`
	LatencyMs         *int     `json:"latency_ms,omitempty" validate:"omitempty,gte=0"`
	ResponseMinutes   *int     `json:"response_minutes,omitempty" validate:"omitempty,gte=0"`
	ResolutionMinutes *int     `json:"resolution_minutes,omitempty" validate:"omitempty,gte=0"`
	CriticalAllowed   *int     `json:"critical_allowed,omitempty" validate:"omitempty,gte=0"`
	MinorAllowed      *int     `json:"minor_allowed,omitempty" validate:"omitempty,gte=0"`
}

type ItemFilter struct {
	Type     ItemType
	State    ItemState
	LiveOnly bool
}

// ItemChain - lineage of an item.
// Previous is ordered oldest -> newest, Next nearest successor first.
type ItemChain struct {
	Item          Item   `json:"item"`
	Previous      []Item `json:"previous"`
	Next          []Item `json:"next"`
	TotalVersions int    `json:"total_versions"`
	Truncated     bool   `json:"truncated"`
}
