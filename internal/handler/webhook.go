// Notification webhook settings
//
// Webhooks are one of the notification channels. Each config subscribes to
// alert types (or "incident") and carries a body template; the preview
// endpoint renders that template against a sample event without sending it.

package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/slatrack/backend/internal/model"
)

type webhookService interface {
	ListWebhookConfigs(ctx context.Context, event string) ([]model.WebhookConfig, error)
	GetWebhookConfig(ctx context.Context, id int) (*model.WebhookConfig, error)
	CreateWebhookConfig(ctx context.Context, req model.WebhookConfigRequest) (int, error)
	UpdateWebhookConfig(ctx context.Context, id int, req model.WebhookConfigRequest) error
	DeleteWebhookConfig(ctx context.Context, id int) error
	PreviewWebhookConfig(ctx context.Context, id int, event string) (*model.WebhookPreview, error)
}

type WebhookSettingsHandler struct {
	svc webhookService
}

func NewWebhookSettingsHandler(svc webhookService) *WebhookSettingsHandler {
	return &WebhookSettingsHandler{svc: svc}
}

// ListWebhookConfigs godoc
// @Summary List notification webhooks
// @Description With event set, only webhooks that would receive that alert type (or "incident") are returned.
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Param event query string false "Alert type or incident"
// @Success 200 {object} model.WebhookConfigListResponse
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks [get]
func (h *WebhookSettingsHandler) ListWebhookConfigs(c *gin.Context) {
	configs, err := h.svc.ListWebhookConfigs(c.Request.Context(), strings.TrimSpace(c.Query("event")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.WebhookConfigListResponse{Status: "success", Data: configs})
}

// WebhookEvents godoc
// @Summary List subscribable webhook events
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.WebhookEventsResponse
// @Router /api/v1/settings/webhooks/events [get]
func (h *WebhookSettingsHandler) WebhookEvents(c *gin.Context) {
	c.JSON(http.StatusOK, model.WebhookEventsResponse{Status: "success", Data: model.WebhookEvents()})
}

// GetWebhookConfig godoc
// @Summary Get a notification webhook
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Webhook ID"
// @Success 200 {object} model.WebhookConfigResponse
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks/{id} [get]
func (h *WebhookSettingsHandler) GetWebhookConfig(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	cfg, err := h.svc.GetWebhookConfig(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.WebhookConfigResponse{Status: "success", Data: cfg})
}

// PreviewWebhookConfig godoc
// @Summary Render a webhook against a sample event
// @Description Nothing is sent. accepted reports whether the webhook's event filter would let the event through.
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Webhook ID"
// @Param event query string false "Alert type or incident (default sobrepaso_sla)"
// @Success 200 {object} model.WebhookPreviewResponse
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks/{id}/preview [get]
func (h *WebhookSettingsHandler) PreviewWebhookConfig(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	preview, err := h.svc.PreviewWebhookConfig(c.Request.Context(), id, strings.TrimSpace(c.Query("event")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.WebhookPreviewResponse{Status: "success", Data: preview})
}

// CreateWebhookConfig godoc
// @Summary Create a notification webhook
// @Description body may use alert.*, item.* and incident.* placeholders in double braces. events filters by alert type or "incident".
// @Tags settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.WebhookConfigRequest true "Webhook config"
// @Success 201 {object} model.WebhookConfigMutationResponse
// @Failure 400,403,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks [post]
func (h *WebhookSettingsHandler) CreateWebhookConfig(c *gin.Context) {
	req, ok := bindWebhook(c)
	if !ok {
		return
	}
	id, err := h.svc.CreateWebhookConfig(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	webhookMutated(c, http.StatusCreated, "webhook created", id)
}

// UpdateWebhookConfig godoc
// @Summary Replace a notification webhook
// @Tags settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Webhook ID"
// @Param request body model.WebhookConfigRequest true "Webhook config"
// @Success 200 {object} model.WebhookConfigMutationResponse
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks/{id} [put]
func (h *WebhookSettingsHandler) UpdateWebhookConfig(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	req, ok := bindWebhook(c)
	if !ok {
		return
	}
	if err := h.svc.UpdateWebhookConfig(c.Request.Context(), id, req); err != nil {
		writeServiceError(c, err)
		return
	}
	webhookMutated(c, http.StatusOK, "webhook updated", id)
}

// DeleteWebhookConfig godoc
// @Summary Delete a notification webhook
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Webhook ID"
// @Success 200 {object} model.WebhookConfigMutationResponse
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks/{id} [delete]
func (h *WebhookSettingsHandler) DeleteWebhookConfig(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteWebhookConfig(c.Request.Context(), id); err != nil {
		writeServiceError(c, err)
		return
	}
	webhookMutated(c, http.StatusOK, "webhook deleted", id)
}

func bindWebhook(c *gin.Context) (model.WebhookConfigRequest, bool) {
	var req model.WebhookConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return req, false
	}
	return req, true
}

func webhookMutated(c *gin.Context, status int, message string, id int) {
	c.JSON(status, model.WebhookConfigMutationResponse{Status: "success", Message: message, ID: id})
}

func webhookID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "invalid webhook id")
		return 0, false
	}
	return id, true
}
