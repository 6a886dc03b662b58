package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slatrack/backend/internal/model"
)

type reportService interface {
	ComplianceReport(ctx context.Context, year, month int) (*model.ComplianceReport, error)
}

type ReportHandler struct {
	svc reportService
	loc *time.Location
}

func NewReportHandler(svc reportService, loc *time.Location) *ReportHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportHandler{svc: svc, loc: loc}
}

// ComplianceReport godoc
// @Summary Monthly compliance report over live items
// @Description year and month default to the current month.
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param year query int false "Year"
// @Param month query int false "Month (1-12)"
// @Success 200 {object} model.ComplianceReportEnvelope
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/v1/reports/compliance [get]
func (h *ReportHandler) ComplianceReport(c *gin.Context) {
	year, ok := queryInt(c, "year")
	if !ok {
		return
	}
	month, ok := queryInt(c, "month")
	if !ok {
		return
	}
	now := time.Now().In(h.loc)
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		badRequest(c, "invalid month")
		return
	}

	report, err := h.svc.ComplianceReport(c.Request.Context(), year, month)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ComplianceReportEnvelope{Status: "success", Data: report})
}
