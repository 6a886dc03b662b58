package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slatrack/backend/internal/model"
)

type metricService interface {
	GenerateMetric(ctx context.Context, req model.GenerateMetricRequest) (*model.GenerateMetricResult, error)
	RecalculateMetric(ctx context.Context, id int64) (*model.GenerateMetricResult, error)
	ListMetrics(ctx context.Context, filter model.MetricFilter) ([]model.Metric, error)
}

type MetricHandler struct {
	svc metricService
}

func NewMetricHandler(svc metricService) *MetricHandler {
	return &MetricHandler{svc: svc}
}

// ListMetrics godoc
// @Summary List monthly metrics
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param item_id query int false "Item ID"
// @Param year query int false "Year"
// @Param month query int false "Month (1-12)"
// @Success 200 {object} model.MetricListEnvelope
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/v1/metrics [get]
func (h *MetricHandler) ListMetrics(c *gin.Context) {
	itemID, ok := queryInt64(c, "item_id")
	if !ok {
		return
	}
	year, ok := queryInt(c, "year")
	if !ok {
		return
	}
	month, ok := queryInt(c, "month")
	if !ok {
		return
	}
	if month < 0 || month > 12 {
		badRequest(c, "invalid month")
		return
	}

	metrics, err := h.svc.ListMetrics(c.Request.Context(), model.MetricFilter{ItemID: itemID, Year: year, Month: month})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MetricListEnvelope{Status: "success", Data: metrics})
}

// GenerateMetric godoc
// @Summary Compile the metric of an item for a month
// @Tags metrics
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.GenerateMetricRequest true "Item and period"
// @Success 201 {object} model.GenerateMetricEnvelope
// @Failure 400,404,409,500 {object} model.ErrorResponse
// @Router /api/v1/metrics [post]
func (h *MetricHandler) GenerateMetric(c *gin.Context) {
	var req model.GenerateMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.GenerateMetric(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.GenerateMetricEnvelope{Status: "success", Message: "metric generated", Data: res})
}

// RecalculateMetric godoc
// @Summary Recompile an existing metric
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Param id path int true "Metric ID"
// @Success 200 {object} model.GenerateMetricEnvelope
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/metrics/{id}/recalculate [post]
func (h *MetricHandler) RecalculateMetric(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.RecalculateMetric(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.GenerateMetricEnvelope{Status: "success", Message: "metric recalculated", Data: res})
}
