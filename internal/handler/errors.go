package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/slatrack/backend/internal/service"
)

// writeServiceError maps service sentinel errors to HTTP statuses. Anything
// unexpected is logged and answered with a generic 500.
func writeServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status, message = http.StatusBadRequest, "invalid input"
	case errors.Is(err, service.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrConflict):
		status, message = http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrForbidden):
		status, message = http.StatusForbidden, "forbidden"
	}

	if status == http.StatusInternalServerError {
		slog.Error("[HTTP] request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"status": "error", "message": message, "error": message})
		return
	}
	c.JSON(status, gin.H{"status": "error", "message": message, "error": err.Error()})
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request", "error": detail})
}

// pathID parses a positive int64 path parameter and answers 400 otherwise.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt64 parses an optional positive int64 query parameter.
func queryInt64(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return nil, false
	}
	return &v, true
}

// queryInt parses an optional int query parameter; missing means 0.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

// actorID returns the authenticated user id, if any.
func actorID(c *gin.Context) *int64 {
	user := GetAuthUser(c)
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}
