package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/parkpulse/internal/crowd"
	"github.com/tphakala/parkpulse/internal/datastore/repository"
	"github.com/tphakala/parkpulse/internal/errors"
)

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	body := map[string]any{
		"status":         "healthy",
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	if s.dbPing != nil {
		if err := s.dbPing(c.Request().Context()); err != nil {
			serverLogger.Warn("Health check database ping failed", "error", err)
			body["status"] = "unhealthy"
			body["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	}
	return c.JSON(status, body)
}

func (s *Server) getCrowdLevel(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid park id"})
	}

	ctx := c.Request().Context()
	if _, err := s.parks.GetPark(ctx, id); err != nil {
		if errors.Is(err, repository.ErrParkNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "park not found"})
		}
		serverLogger.Error("Failed to look up park", "park_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "park lookup failed"})
	}

	return c.JSON(http.StatusOK, s.engine.ComputeWithTimeout(ctx, id, s.crowdTimeout))
}

// getCrowdLevels computes many parks at once: /api/v1/crowd-levels?ids=1,2,3
func (s *Server) getCrowdLevels(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("ids"))
	if raw == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "ids is required"})
	}

	parts := strings.Split(raw, ",")
	if len(parts) > maxBatchParks {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "too many park ids"})
	}

	refs := make([]crowd.ParkRef, 0, len(parts))
	seen := make(map[uint]struct{}, len(parts))
	for _, p := range parts {
		id, err := parseID(p)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid park id " + strconv.Quote(p)})
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, crowd.ParkRef{ID: id})
	}

	results := s.engine.ComputeBatch(c.Request().Context(), refs)
	out := make([]crowd.Result, 0, len(refs))
	for _, ref := range refs {
		out = append(out, results[ref.ID])
	}
	return c.JSON(http.StatusOK, out)
}

func parseID(s string) (uint, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, errors.NewStd("invalid id")
	}
	return uint(v), nil
}
