// Package users exposes administrative user management: listing, profile
// lookup, the direct role edit path, and account removal.
package users

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventman/backend/internal/auth"
	"github.com/eventman/backend/internal/models"
	"github.com/eventman/backend/pkg/response"
)

// Store is the slice of user persistence the management endpoints need.
type Store interface {
	List(ctx context.Context) ([]models.UserPublic, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	UpdateRole(ctx context.Context, id int64, role models.Role) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

// UpdateRoleRequest is the body for PUT /api/users/:id/role.
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Handler handles user management HTTP endpoints.
type Handler struct {
	repo   Store
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(repo Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /api/users.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/users/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.Internal(c, "failed to load user")
		return
	}
	response.OK(c, user.ToPublic())
}

// UpdateRole handles PUT /api/users/:id/role. This is the direct
// administrative edit path; regular users go through the role request
// workflow instead.
func (h *Handler) UpdateRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		response.BadRequest(c, "invalid role")
		return
	}

	user, err := h.repo.UpdateRole(c.Request.Context(), id, role)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		h.logger.Error("update role failed", zap.Error(err), zap.Int64("user_id", id))
		response.Internal(c, "failed to update role")
		return
	}
	response.OK(c, user.ToPublic())
}

// Delete handles DELETE /api/users/:id. Users with role request history
// cannot be removed; their requests are the audit trail.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		if errors.Is(err, auth.ErrUserReferenced) {
			response.Conflict(c, "user has role request history and cannot be deleted")
			return
		}
		response.Internal(c, "failed to delete user")
		return
	}
	response.NoContent(c)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid user id")
		return 0, false
	}
	return id, true
}
