package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slatrack/backend/internal/model"
)

// recentWindow is the lookback of GET /alerts/recent when since is omitted.
const recentWindow = 24 * time.Hour

type alertService interface {
	ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error)
	GetAlert(ctx context.Context, id int64) (*model.Alert, error)
	AlertIncidents(ctx context.Context, alertID int64) (*model.AlertIncidents, error)
	RecentAlerts(ctx context.Context, since time.Time) ([]model.Alert, error)
	ResolveAlert(ctx context.Context, alertID int64, actorID *int64, req model.ResolveAlertRequest) (*model.ResolveAlertResult, error)
	TriggerManualCriticalAlert(ctx context.Context, actorID *int64, req model.ManualAlertRequest) (*model.ManualAlertResult, error)
}

type AlertHandler struct {
	svc alertService
}

func NewAlertHandler(svc alertService) *AlertHandler {
	return &AlertHandler{svc: svc}
}

// ListAlerts godoc
// @Summary List alerts
// @Tags alerts
// @Produce json
// @Security BearerAuth
// @Param item_id query int false "Item ID"
// @Param type query string false "Alert type"
// @Param state query string false "active | resolved"
// @Success 200 {object} model.AlertListEnvelope
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/v1/alerts [get]
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	itemID, ok := queryInt64(c, "item_id")
	if !ok {
		return
	}
	filter := model.AlertFilter{
		ItemID: itemID,
		Type:   model.AlertType(c.Query("type")),
		State:  model.AlertState(c.Query("state")),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		badRequest(c, "invalid type")
		return
	}
	if filter.State != "" && filter.State != model.AlertActive && filter.State != model.AlertResolved {
		badRequest(c, "invalid state")
		return
	}

	alerts, err := h.svc.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AlertListEnvelope{Status: "success", Data: alerts})
}

// RecentAlerts godoc
// @Summary Active alerts created after a point in time
// @Description since is RFC3339; defaults to the last 24 hours.
// @Tags alerts
// @Produce json
// @Security BearerAuth
// @Param since query string false "RFC3339 timestamp"
// @Success 200 {object} model.AlertListEnvelope
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/v1/alerts/recent [get]
func (h *AlertHandler) RecentAlerts(c *gin.Context) {
	since := time.Now().Add(-recentWindow)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "since must be RFC3339")
			return
		}
		since = parsed
	}

	alerts, err := h.svc.RecentAlerts(c.Request.Context(), since)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AlertListEnvelope{Status: "success", Data: alerts})
}

// GetAlert godoc
// @Summary Get an alert
// @Tags alerts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Alert ID"
// @Success 200 {object} model.AlertEnvelope
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/alerts/{id} [get]
func (h *AlertHandler) GetAlert(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	alert, err := h.svc.GetAlert(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AlertEnvelope{Status: "success", Data: alert})
}

// AlertIncidents godoc
// @Summary Incidents linked to an alert and the ones still resolvable through it
// @Tags alerts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Alert ID"
// @Success 200 {object} model.AlertIncidentsEnvelope
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/alerts/{id}/incidents [get]
func (h *AlertHandler) AlertIncidents(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.AlertIncidents(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AlertIncidentsEnvelope{Status: "success", Data: res})
}

// ResolveAlert godoc
// @Summary Resolve an alert
// @Description With incident_ids the listed incidents are resolved and credited to the alert, which closes once enough are resolved. Without them the alert is closed manually.
// @Tags alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Alert ID"
// @Param request body model.ResolveAlertRequest false "Incidents to resolve"
// @Success 200 {object} model.ResolveAlertEnvelope
// @Failure 400,404,409,500 {object} model.ErrorResponse
// @Router /api/v1/alerts/{id}/resolve [post]
func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.ResolveAlertRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	res, err := h.svc.ResolveAlert(c.Request.Context(), id, actorID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	message := "alert updated"
	if res.AutoResolved {
		message = "alert resolved"
	}
	c.JSON(http.StatusOK, model.ResolveAlertEnvelope{Status: "success", Message: message, Data: res})
}

// TriggerManualAlert godoc
// @Summary Raise a manual critical alert for an incident
// @Tags alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.ManualAlertRequest true "Item and incident"
// @Success 201 {object} model.ManualAlertEnvelope
// @Failure 400,403,404,409,500 {object} model.ErrorResponse
// @Router /api/v1/alerts/manual [post]
func (h *AlertHandler) TriggerManualAlert(c *gin.Context) {
	var req model.ManualAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.TriggerManualCriticalAlert(c.Request.Context(), actorID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.ManualAlertEnvelope{Status: "success", Message: res.Message, Data: res})
}
