package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/slatrack/backend/internal/model"
)

type itemService interface {
	CreateItem(ctx context.Context, actorID *int64, req model.CreateItemRequest) (*model.Item, error)
	DecideApproval(ctx context.Context, id int64, actorID *int64, req model.ApprovalRequest) (*model.Item, error)
	UpdateItem(ctx context.Context, id int64, actorID *int64, req model.UpdateItemRequest) (*model.Item, error)
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	ListItems(ctx context.Context, filter model.ItemFilter) ([]model.Item, error)
	GetChain(ctx context.Context, id int64) (*model.ItemChain, error)
	GetSLA(ctx context.Context, itemID int64) (*model.SLA, error)
	UpsertSLA(ctx context.Context, itemID int64, req model.SLARequest) (*model.SLA, error)
}

type ItemHandler struct {
	svc itemService
}

func NewItemHandler(svc itemService) *ItemHandler {
	return &ItemHandler{svc: svc}
}

// ListItems godoc
// @Summary List items
// @Description live=true keeps only approved items nothing supersedes.
// @Tags items
// @Produce json
// @Security BearerAuth
// @Param type query string false "product | service"
// @Param state query string false "proposed | approved | rejected"
// @Param live query bool false "Only live items"
// @Success 200 {object} model.ItemListEnvelope
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/v1/items [get]
func (h *ItemHandler) ListItems(c *gin.Context) {
	filter := model.ItemFilter{
		Type:  model.ItemType(c.Query("type")),
		State: model.ItemState(c.Query("state")),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		badRequest(c, "invalid type")
		return
	}
	if raw := c.Query("live"); raw != "" {
		live, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "invalid live")
			return
		}
		filter.LiveOnly = live
	}

	items, err := h.svc.ListItems(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ItemListEnvelope{Status: "success", Data: items})
}

// GetItem godoc
// @Summary Get an item
// @Tags items
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Success 200 {object} model.ItemEnvelope
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/items/{id} [get]
func (h *ItemHandler) GetItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := h.svc.GetItem(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ItemEnvelope{Status: "success", Data: item})
}

// CreateItem godoc
// @Summary Propose an item
// @Description New items start as proposed. supersedes_id records a replacement of an existing item.
// @Tags items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.CreateItemRequest true "Item"
// @Success 201 {object} model.ItemEnvelope
// @Failure 400,404,409,500 {object} model.ErrorResponse
// @Router /api/v1/items [post]
func (h *ItemHandler) CreateItem(c *gin.Context) {
	var req model.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	item, err := h.svc.CreateItem(c.Request.Context(), actorID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.ItemEnvelope{Status: "success", Data: item})
}

// UpdateItem godoc
// @Summary Update an item
// @Tags items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body model.UpdateItemRequest true "Item fields"
// @Success 200 {object} model.ItemEnvelope
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/items/{id} [put]
func (h *ItemHandler) UpdateItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	item, err := h.svc.UpdateItem(c.Request.Context(), id, actorID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ItemEnvelope{Status: "success", Data: item})
}

// DecideApproval godoc
// @Summary Approve or reject a proposed item
// @Tags items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body model.ApprovalRequest true "decision: approve | reject"
// @Success 200 {object} model.ItemEnvelope
// @Failure 400,403,404,409,500 {object} model.ErrorResponse
// @Router /api/v1/items/{id}/approval [post]
func (h *ItemHandler) DecideApproval(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	item, err := h.svc.DecideApproval(c.Request.Context(), id, actorID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ItemEnvelope{Status: "success", Data: item})
}

// GetChain godoc
// @Summary Replacement chain of an item
// @Tags items
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Success 200 {object} model.ItemChainEnvelope
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/items/{id}/chain [get]
func (h *ItemHandler) GetChain(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	chain, err := h.svc.GetChain(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ItemChainEnvelope{Status: "success", Data: chain})
}

// GetSLA godoc
// @Summary Get the SLA of an item
// @Tags items
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Success 200 {object} model.SLAEnvelope
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/items/{id}/sla [get]
func (h *ItemHandler) GetSLA(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sla, err := h.svc.GetSLA(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SLAEnvelope{Status: "success", Data: sla})
}

// UpsertSLA godoc
// @Summary Create or replace the SLA of an item
// @Tags items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body model.SLARequest true "SLA"
// @Success 200 {object} model.SLAEnvelope
// @Failure 400,403,404,500 {object} model.ErrorResponse
// @Router /api/v1/items/{id}/sla [put]
func (h *ItemHandler) UpsertSLA(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.SLARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	sla, err := h.svc.UpsertSLA(c.Request.Context(), id, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SLAEnvelope{Status: "success", Data: sla})
}
