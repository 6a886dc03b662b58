package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/slatrack/backend/internal/model"
	"github.com/slatrack/backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokens map[string]*model.AuthUser

func (s stubTokens) ParseAccessToken(token string) (*model.AuthUser, error) {
	if user, ok := s[token]; ok {
		return user, nil
	}
	return nil, service.ErrUnauthorized
}

func TestAuthMiddleware(t *testing.T) {
	tokens := stubTokens{"good": {ID: 4, LoginID: "ana", Role: model.RoleTechnician}}

	r := gin.New()
	r.Use(AuthMiddleware(tokens))
	r.GET("/me", func(c *gin.Context) {
		user := GetAuthUser(c)
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "role": user.Role})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer   ", want: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	body := decode(t, w)
	assert.Equal(t, float64(4), body["id"])
	assert.Equal(t, "technician", body["role"])
}

func TestRequireRoles(t *testing.T) {
	tests := []struct {
		name string
		user *model.AuthUser
		want int
	}{
		{name: "anonymous", user: nil, want: http.StatusUnauthorized},
		{name: "technician", user: &model.AuthUser{ID: 1, Role: model.RoleTechnician}, want: http.StatusForbidden},
		{name: "it lead", user: &model.AuthUser{ID: 2, Role: model.RoleITLead}, want: http.StatusOK},
		{name: "manager", user: &model.AuthUser{ID: 3, Role: model.RoleManager}, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(withUser(tt.user))
			r.POST("/run", RequireRoles(model.RoleITLead, model.RoleManager), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			w := doJSON(t, r, http.MethodPost, "/run", "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://ops.example.com", " "}, true))
	r.GET("/ping", Ping)

	t.Run("allowed origin preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
		req.Header.Set("Origin", "https://ops.example.com")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad field", service.ErrInvalidInput), http.StatusBadRequest},
		{errNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", fmt.Errorf("%w: already resolved", service.ErrConflict)), http.StatusConflict},
		{service.ErrUnauthorized, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{errBoom, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.want), func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) { writeServiceError(c, tt.err) })
			w := doJSON(t, r, http.MethodGet, "/x", "")
			require.Equal(t, tt.want, w.Code)

			body := decode(t, w)
			assert.Equal(t, "error", body["status"])
			if tt.want == http.StatusInternalServerError {
				assert.NotContains(t, body["error"], "connection reset")
			} else {
				assert.Equal(t, tt.err.Error(), body["error"])
			}
		})
	}
	assert.True(t, errors.Is(errNotFound, service.ErrNotFound))
}

func TestPathAndQueryParsing(t *testing.T) {
	r := gin.New()
	r.GET("/items/:id", func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		itemID, ok := queryInt64(c, "item_id")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "item_id": itemID})
	})

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/items/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/items/0", "").Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/items/3?item_id=-1", "").Code)

	w := doJSON(t, r, http.MethodGet, "/items/3", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(3), body["id"])
	assert.Nil(t, body["item_id"])
}
