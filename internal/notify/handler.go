package notify

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eventman/backend/pkg/response"
)

// Handler handles notification log HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a notification logs handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

const (
	defaultRecentLimit = 100
	maxRecentLimit     = 500
)

// recentLimit parses the ?limit= query value, clamping it to maxRecentLimit.
func recentLimit(raw string) (int, bool) {
	if raw == "" {
		return defaultRecentLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > maxRecentLimit {
		n = maxRecentLimit
	}
	return n, true
}

// ListRecent handles GET /api/notifications. Admin visibility into what was
// delivered to requesters. Optional ?limit= caps the result.
func (h *Handler) ListRecent(c *gin.Context) {
	limit, ok := recentLimit(c.Query("limit"))
	if !ok {
		response.BadRequest(c, "invalid limit")
		return
	}
	list, err := h.repo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		response.Internal(c, "failed to load notifications")
		return
	}
	response.OK(c, list)
}
