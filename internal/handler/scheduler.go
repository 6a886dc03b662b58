package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/slatrack/backend/internal/model"
)

type batchRunner interface {
	RunScheduledBatch(ctx context.Context, force bool) (model.BatchSummary, error)
}

type SchedulerHandler struct {
	runner batchRunner
}

func NewSchedulerHandler(runner batchRunner) *SchedulerHandler {
	return &SchedulerHandler{runner: runner}
}

// RunBatch godoc
// @Summary Run the monthly metric batch now
// @Description Without force the batch only runs on the first day of the month. It always targets the previous month and skips existing metrics.
// @Tags scheduler
// @Produce json
// @Security BearerAuth
// @Param force query bool false "Run on any day"
// @Success 200 {object} model.BatchSummaryEnvelope
// @Failure 400,403,500 {object} model.ErrorResponse
// @Router /api/v1/scheduler/run [post]
func (h *SchedulerHandler) RunBatch(c *gin.Context) {
	force := false
	if raw := c.Query("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "invalid force")
			return
		}
		force = v
	}

	summary, err := h.runner.RunScheduledBatch(c.Request.Context(), force)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.BatchSummaryEnvelope{Status: "success", Data: &summary})
}
