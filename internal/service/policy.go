// Alert policy rules
//
// Trend rules look at the current metric and up to two earlier samples
// (newest first). Each rule is independent; several may fire for the same
// metric and each one yields its own alert:
//  1. first red          current red, previous sample missing or not red  -> critical
//  2. persistent yellow  current yellow, previous yellow                  -> medium
//  3. second red         current red, previous red                        -> high
//  4. third red          current red, previous two red                    -> critical
//  5. incident burst     current incidents >= 5                           -> critical
//
// The SLA breach rule compares the live active-incident count against the
// item limit and is reconciled by the engine on every incident change.

package service

import (
	"fmt"

	"github.com/slatrack/backend/internal/model"
)

const burstThreshold = 5

type alertDraft struct {
	Type    model.AlertType
	Urgency model.Urgency
	Message string
}

func evaluateTrend(item model.Item, current model.Metric, history []model.Metric) []alertDraft {
	var drafts []alertDraft

	prevIs := func(i int, s model.Semaphore) bool {
		return len(history) > i && history[i].Semaphore == s
	}
	label := fmt.Sprintf("%s - %s", item.Code, item.Name)

	if current.Semaphore == model.SemaphoreRed && !prevIs(0, model.SemaphoreRed) {
		drafts = append(drafts, alertDraft{
			Type:    model.AlertTypeFirstRed,
			Urgency: model.UrgencyCritical,
			Message: fmt.Sprintf("CRITICAL: %s dropped to RED. Incidents: %d. Compliance: %.2f%%. Immediate review and a corrective plan are required.",
				label, current.Incidents, current.CompliancePct),
		})
	}

	if current.Semaphore == model.SemaphoreYellow && prevIs(0, model.SemaphoreYellow) {
		drafts = append(drafts, alertDraft{
			Type:    model.AlertTypePersistentYellow,
			Urgency: model.UrgencyMedium,
			Message: fmt.Sprintf("PREVENTIVE: %s remains YELLOW. Incidents: %d. Schedule preventive maintenance before it escalates.",
				label, current.Incidents),
		})
	}

	if current.Semaphore == model.SemaphoreRed && prevIs(0, model.SemaphoreRed) {
		avg := (current.CompliancePct + history[0].CompliancePct) / 2
		drafts = append(drafts, alertDraft{
			Type:    model.AlertTypeSecondRed,
			Urgency: model.UrgencyHigh,
			Message: fmt.Sprintf("ESCALATION: %s has been RED for 2 consecutive periods. Corrective actions were not effective; replacement approval is required. Average compliance: %.2f%%.",
				label, avg),
		})
	}

	if current.Semaphore == model.SemaphoreRed && prevIs(0, model.SemaphoreRed) && prevIs(1, model.SemaphoreRed) {
		drafts = append(drafts, alertDraft{
			Type:    model.AlertTypeThirdRed,
			Urgency: model.UrgencyCritical,
			Message: fmt.Sprintf("REPLACEMENT REQUIRED: %s has been RED for 3 consecutive periods. Start the replacement process.",
				label),
		})
	}

	if current.Incidents >= burstThreshold {
		drafts = append(drafts, alertDraft{
			Type:    model.AlertTypeIncidentBurst,
			Urgency: model.UrgencyCritical,
			Message: fmt.Sprintf("INCIDENT BURST: %s has %d incidents in %02d/%d.",
				label, current.Incidents, current.Month, current.Year),
		})
	}

	return drafts
}

func breachMessage(item model.Item, active, limit int) string {
	return fmt.Sprintf("SLA BREACH: %s - %s has %d active incidents this month (limit %d).",
		item.Code, item.Name, active, limit)
}
