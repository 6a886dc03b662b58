package handler

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/slatrack/backend/internal/model"
	"github.com/slatrack/backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIncidentRouter(svc incidentService, uploadDir string, user *model.AuthUser) *gin.Engine {
	h := NewIncidentHandler(svc, uploadDir)
	r := gin.New()
	r.Use(withUser(user))
	r.GET("/api/v1/incidents", h.ListIncidents)
	r.POST("/api/v1/incidents", h.ReportIncident)
	r.GET("/api/v1/incidents/:id", h.GetIncident)
	r.POST("/api/v1/incidents/:id/start", h.StartIncident)
	r.POST("/api/v1/incidents/:id/resolve", h.ResolveIncident)
	return r
}

func evidenceRequest(t *testing.T, target, comment, filename string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("comment", comment))
	if filename != "" {
		part, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestListIncidentsFilter(t *testing.T) {
	svc := &fakeEngine{}
	r := newIncidentRouter(svc, t.TempDir(), nil)

	w := doJSON(t, r, http.MethodGet, "/api/v1/incidents?item_id=4&state=open", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.incidentFilter.ItemID)
	assert.Equal(t, int64(4), *svc.incidentFilter.ItemID)
	assert.Equal(t, model.IncidentOpen, svc.incidentFilter.State)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/api/v1/incidents?state=closed", "").Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/api/v1/incidents?item_id=abc", "").Code)
}

func TestReportIncident(t *testing.T) {
	svc := &fakeEngine{}
	r := newIncidentRouter(svc, t.TempDir(), &model.AuthUser{ID: 8, Role: model.RoleTechnician})

	w := doJSON(t, r, http.MethodPost, "/api/v1/incidents", `{"item_id":1,"title":"Printer jam","type":"critical","severity":"high"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.actor)
	assert.Equal(t, int64(8), *svc.actor)

	body := decode(t, w)
	assert.Equal(t, "incident reported", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "not_requested", data["notification"])

	notLive := newIncidentRouter(&fakeEngine{err: fmt.Errorf("%w: item is not live", service.ErrInvalidInput)}, t.TempDir(), nil)
	w = doJSON(t, notLive, http.MethodPost, "/api/v1/incidents", `{"item_id":2,"title":"x","type":"minor","severity":"low"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartIncidentConflict(t *testing.T) {
	r := newIncidentRouter(&fakeEngine{err: fmt.Errorf("%w: incident 3 is resolved", service.ErrConflict)}, t.TempDir(), nil)
	assert.Equal(t, http.StatusConflict, doJSON(t, r, http.MethodPost, "/api/v1/incidents/3/start", "").Code)
}

func TestResolveIncidentStoresEvidence(t *testing.T) {
	dir := t.TempDir()
	svc := &fakeEngine{}
	r := newIncidentRouter(svc, dir, &model.AuthUser{ID: 5, Role: model.RoleTechnician})

	image := []byte("\x89PNG fake image")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, evidenceRequest(t, "/api/v1/incidents/11/resolve", "  replaced the fuser unit  ", "proof.PNG", image))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ev := svc.evidence
	assert.Equal(t, "  replaced the fuser unit  ", ev.Comment)
	assert.Equal(t, "proof.PNG", ev.ImageName)
	assert.Equal(t, int64(len(image)), ev.ImageSize)
	assert.True(t, strings.HasPrefix(ev.ImageRef, "resolutions/"))
	assert.True(t, strings.HasSuffix(ev.ImageRef, ".png"))
	require.NotNil(t, svc.actor)
	assert.Equal(t, int64(5), *svc.actor)

	saved, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ev.ImageRef)))
	require.NoError(t, err)
	assert.Equal(t, image, saved)

	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, ev.ImageRef, data["resolution_image"])
}

func TestResolveIncidentRemovesImageOnFailure(t *testing.T) {
	dir := t.TempDir()
	svc := &fakeEngine{err: fmt.Errorf("%w: incident 11 is already resolved", service.ErrConflict)}
	r := newIncidentRouter(svc, dir, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, evidenceRequest(t, "/api/v1/incidents/11/resolve", "replaced the fuser unit", "proof.jpg", []byte("jpeg")))
	require.Equal(t, http.StatusConflict, w.Code)

	require.NotEmpty(t, svc.evidence.ImageRef)
	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(svc.evidence.ImageRef)))
	assert.True(t, os.IsNotExist(err))
}

func TestResolveIncidentRejectsBadEvidence(t *testing.T) {
	tests := []struct {
		name     string
		comment  string
		filename string
		image    []byte
	}{
		{name: "missing image", comment: "replaced the fuser unit"},
		{name: "short comment", comment: "  done     ", filename: "proof.png", image: []byte("png")},
		{name: "unsupported type", comment: "replaced the fuser unit", filename: "proof.pdf", image: []byte("pdf")},
		{name: "oversized image", comment: "replaced the fuser unit", filename: "proof.png", image: bytes.Repeat([]byte("x"), 5<<20+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			svc := &fakeEngine{}
			r := newIncidentRouter(svc, dir, nil)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, evidenceRequest(t, "/api/v1/incidents/2/resolve", tt.comment, tt.filename, tt.image))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, svc.evidence.ImageRef, "service must not be called")

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}
