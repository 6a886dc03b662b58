// Incident endpoints
//
// Resolve flow (multipart):
//  1. read comment and image, check them with service.EvidenceRef
//  2. save the image under UPLOAD_DIR at the returned reference
//  3. resolve the incident; the saved image is removed if that fails

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/slatrack/backend/internal/model"
	"github.com/slatrack/backend/internal/service"
)

type incidentService interface {
	ReportIncident(ctx context.Context, actorID *int64, req model.ReportIncidentRequest) (*model.ReportIncidentResult, error)
	StartIncident(ctx context.Context, id int64) (*model.Incident, error)
	ResolveIncident(ctx context.Context, id int64, actorID *int64, ev model.IncidentEvidence) (*model.Incident, error)
	GetIncident(ctx context.Context, id int64) (*model.Incident, error)
	ListIncidents(ctx context.Context, filter model.IncidentFilter) ([]model.Incident, error)
}

type IncidentHandler struct {
	svc       incidentService
	uploadDir string
}

func NewIncidentHandler(svc incidentService, uploadDir string) *IncidentHandler {
	return &IncidentHandler{svc: svc, uploadDir: uploadDir}
}

// ListIncidents godoc
// @Summary List incidents
// @Tags incidents
// @Produce json
// @Security BearerAuth
// @Param item_id query int false "Item ID"
// @Param state query string false "open | in_progress | resolved"
// @Success 200 {object} model.IncidentListEnvelope
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/v1/incidents [get]
func (h *IncidentHandler) ListIncidents(c *gin.Context) {
	itemID, ok := queryInt64(c, "item_id")
	if !ok {
		return
	}
	filter := model.IncidentFilter{ItemID: itemID, State: model.IncidentState(c.Query("state"))}
	switch filter.State {
	case "", model.IncidentOpen, model.IncidentInProgress, model.IncidentResolved:
	default:
		badRequest(c, "invalid state")
		return
	}

	incidents, err := h.svc.ListIncidents(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.IncidentListEnvelope{Status: "success", Data: incidents})
}

// GetIncident godoc
// @Summary Get an incident
// @Tags incidents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Incident ID"
// @Success 200 {object} model.IncidentEnvelope
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/incidents/{id} [get]
func (h *IncidentHandler) GetIncident(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	inc, err := h.svc.GetIncident(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.IncidentEnvelope{Status: "success", Data: inc})
}

// ReportIncident godoc
// @Summary Report an incident
// @Description Refreshes the current-month metric and may raise trend or SLA breach alerts.
// @Tags incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.ReportIncidentRequest true "Incident"
// @Success 201 {object} model.ReportIncidentEnvelope
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/incidents [post]
func (h *IncidentHandler) ReportIncident(c *gin.Context) {
	var req model.ReportIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.ReportIncident(c.Request.Context(), actorID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.ReportIncidentEnvelope{
		Status:  "success",
		Message: "incident reported",
		Data:    res,
	})
}

// StartIncident godoc
// @Summary Move an open incident to in_progress
// @Tags incidents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Incident ID"
// @Success 200 {object} model.IncidentEnvelope
// @Failure 400,404,409,500 {object} model.ErrorResponse
// @Router /api/v1/incidents/{id}/start [post]
func (h *IncidentHandler) StartIncident(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	inc, err := h.svc.StartIncident(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.IncidentEnvelope{Status: "success", Data: inc})
}

// ResolveIncident godoc
// @Summary Resolve an incident with evidence
// @Description Requires a comment of at least 10 characters and an image (png, jpg, jpeg, gif, webp; max 5MB).
// @Tags incidents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Incident ID"
// @Param comment formData string true "Resolution comment"
// @Param image formData file true "Evidence image"
// @Success 200 {object} model.IncidentEnvelope
// @Failure 400,404,409,500 {object} model.ErrorResponse
// @Router /api/v1/incidents/{id}/resolve [post]
func (h *IncidentHandler) ResolveIncident(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	comment := c.PostForm("comment")
	file, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "an evidence image is required")
		return
	}

	ref, err := service.EvidenceRef(comment, file.Filename, file.Size)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	dst := filepath.Join(h.uploadDir, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		writeServiceError(c, err)
		return
	}
	if err := c.SaveUploadedFile(file, dst); err != nil {
		writeServiceError(c, err)
		return
	}

	inc, err := h.svc.ResolveIncident(c.Request.Context(), id, actorID(c), model.IncidentEvidence{
		Comment:   comment,
		ImageName: file.Filename,
		ImageSize: file.Size,
		ImageRef:  ref,
	})
	if err != nil {
		if rmErr := os.Remove(dst); rmErr != nil {
			slog.Warn("[Incidents] failed to remove evidence image", "path", dst, "error", rmErr)
		}
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.IncidentEnvelope{Status: "success", Data: inc})
}
