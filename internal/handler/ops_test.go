package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slatrack/backend/internal/model"
	"github.com/slatrack/backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMetricsFilter(t *testing.T) {
	svc := &fakeEngine{}
	h := NewMetricHandler(svc)
	r := gin.New()
	r.GET("/api/v1/metrics", h.ListMetrics)

	w := doJSON(t, r, http.MethodGet, "/api/v1/metrics?item_id=3&year=2024&month=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.metricFilter.ItemID)
	assert.Equal(t, int64(3), *svc.metricFilter.ItemID)
	assert.Equal(t, 2024, svc.metricFilter.Year)
	assert.Equal(t, 2, svc.metricFilter.Month)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/api/v1/metrics?month=13", "").Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/api/v1/metrics?year=abc", "").Code)
}

func TestGenerateAndRecalculateMetric(t *testing.T) {
	svc := &fakeEngine{}
	h := NewMetricHandler(svc)
	r := gin.New()
	r.POST("/api/v1/metrics", h.GenerateMetric)
	r.POST("/api/v1/metrics/:id/recalculate", h.RecalculateMetric)

	w := doJSON(t, r, http.MethodPost, "/api/v1/metrics", `{"item_id":1,"month":2,"year":2024}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, model.GenerateMetricRequest{ItemID: 1, Month: 2, Year: 2024}, svc.generate)
	assert.Equal(t, "metric generated", decode(t, w)["message"])

	w = doJSON(t, r, http.MethodPost, "/api/v1/metrics/5/recalculate", "")
	require.Equal(t, http.StatusOK, w.Code)
	metric := decode(t, w)["data"].(map[string]any)["metric"].(map[string]any)
	assert.Equal(t, float64(5), metric["id"])

	exists := gin.New()
	exists.POST("/api/v1/metrics", NewMetricHandler(&fakeEngine{err: fmt.Errorf("%w: metric exists", service.ErrConflict)}).GenerateMetric)
	assert.Equal(t, http.StatusConflict, doJSON(t, exists, http.MethodPost, "/api/v1/metrics", `{"item_id":1,"month":2,"year":2024}`).Code)
}

func TestComplianceReportDefaultsToCurrentMonth(t *testing.T) {
	svc := &fakeReports{}
	r := gin.New()
	r.GET("/api/v1/reports/compliance", NewReportHandler(svc, time.UTC).ComplianceReport)

	now := time.Now().UTC()
	w := doJSON(t, r, http.MethodGet, "/api/v1/reports/compliance", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, now.Year(), svc.year)
	assert.Equal(t, int(now.Month()), svc.month)

	w = doJSON(t, r, http.MethodGet, "/api/v1/reports/compliance?year=2023&month=11", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2023, svc.year)
	assert.Equal(t, 11, svc.month)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/api/v1/reports/compliance?month=-1", "").Code)
}

func TestRunBatch(t *testing.T) {
	svc := &fakeEngine{}
	r := gin.New()
	r.POST("/api/v1/scheduler/run", NewSchedulerHandler(svc).RunBatch)

	w := doJSON(t, r, http.MethodPost, "/api/v1/scheduler/run", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.force)
	assert.Equal(t, false, decode(t, w)["data"].(map[string]any)["ran"])

	w = doJSON(t, r, http.MethodPost, "/api/v1/scheduler/run?force=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.force)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, true, data["ran"])
	assert.Equal(t, float64(2), data["month"])

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/api/v1/scheduler/run?force=often", "").Code)

	failing := gin.New()
	failing.POST("/api/v1/scheduler/run", NewSchedulerHandler(&fakeEngine{err: errBoom}).RunBatch)
	assert.Equal(t, http.StatusInternalServerError, doJSON(t, failing, http.MethodPost, "/api/v1/scheduler/run?force=1", "").Code)
}

type fakeAuth struct {
	roleUser int64
	role     model.Role
	register model.RegisterRequest
}

func (f *fakeAuth) Register(_ context.Context, req model.RegisterRequest) (string, string, int64, error) {
	f.register = req
	return "access", "refresh", 900, nil
}

func (f *fakeAuth) Login(_ context.Context, loginID, password string) (string, string, int64, error) {
	if loginID != "ana" || password != "secret-pass" {
		return "", "", 0, service.ErrUnauthorized
	}
	return "access", "refresh", 900, nil
}

func (f *fakeAuth) Refresh(_ context.Context, token string) (string, string, int64, error) {
	if token != "refresh" {
		return "", "", 0, service.ErrUnauthorized
	}
	return "access2", "refresh2", 900, nil
}

func (f *fakeAuth) Logout(context.Context, string) error { return nil }

func (f *fakeAuth) ListUsers(context.Context) ([]model.User, error) {
	return []model.User{{ID: 1, LoginID: "ana", Role: model.RoleITLead}}, nil
}

func (f *fakeAuth) UpdateRole(_ context.Context, userID int64, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role", service.ErrInvalidInput)
	}
	f.roleUser, f.role = userID, role
	return nil
}

func (f *fakeAuth) AllowSignup() bool { return true }

func (f *fakeAuth) CookieConfig() service.CookieConfig {
	return service.CookieConfig{Name: "slatrack_refresh", Path: "/", SameSite: http.SameSiteLaxMode, MaxAge: 3600}
}

func TestAuthHandler(t *testing.T) {
	svc := &fakeAuth{}
	h := NewAuthHandler(svc)
	r := gin.New()
	r.Use(withUser(&model.AuthUser{ID: 1, LoginID: "ana", Role: model.RoleITLead}))
	r.POST("/api/v1/auth/register", h.Register)
	r.POST("/api/v1/auth/login", h.Login)
	r.POST("/api/v1/auth/refresh", h.Refresh)
	r.GET("/api/v1/auth/me", h.Me)
	r.GET("/api/v1/users", h.ListUsers)
	r.PUT("/api/v1/users/:id/role", h.UpdateRole)

	t.Run("register sets refresh cookie", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", `{"id":"bob","password":"secret-pass","email":"bob@example.com"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "bob@example.com", svc.register.Email)
		assert.Contains(t, w.Header().Get("Set-Cookie"), "slatrack_refresh=refresh")
		assert.Equal(t, "access", decode(t, w)["accessToken"])
	})

	t.Run("bad credentials", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", `{"id":"ana","password":"wrong-pass"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("refresh reads cookie", func(t *testing.T) {
		req := newCookieRequest(http.MethodPost, "/api/v1/auth/refresh", "slatrack_refresh", "refresh")
		w := serve(r, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "access2", decode(t, w)["accessToken"])
		assert.Contains(t, w.Header().Get("Set-Cookie"), "slatrack_refresh=refresh2")
	})

	t.Run("me carries role", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/v1/auth/me", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "it_lead", decode(t, w)["role"])
	})

	t.Run("list users", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/v1/users", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode(t, w)["data"], 1)
	})

	t.Run("update role", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPut, "/api/v1/users/7/role", `{"role":"manager"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(7), svc.roleUser)
		assert.Equal(t, model.RoleManager, svc.role)

		w = doJSON(t, r, http.MethodPut, "/api/v1/users/7/role", `{"role":"owner"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
