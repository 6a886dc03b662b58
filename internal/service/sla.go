package service

import "github.com/slatrack/backend/internal/model"

// defaultIncidentLimit applies to every service and to products without a
// usable failure allowance.
const defaultIncidentLimit = 2

// LimitFor returns the number of incidents an item may accrue in a month
// before it is in breach. Service SLA fields (availability, latency, times)
// are descriptive and never change the limit.
func LimitFor(item model.Item, sla *model.SLA) int {
	if item.Type != model.ItemTypeProduct {
		return defaultIncidentLimit
	}
	if sla == nil {
		return defaultIncidentLimit
	}
	limit := derefInt(sla.CriticalAllowed) + derefInt(sla.MinorAllowed)
	if limit <= 0 {
		return defaultIncidentLimit
	}
	return limit
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
