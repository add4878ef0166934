package rolerequests

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventman/backend/internal/middleware"
	"github.com/eventman/backend/internal/models"
	"github.com/eventman/backend/internal/notify"
	"github.com/eventman/backend/pkg/response"
)

// SubmitRequest is the body for POST /api/role-requests.
type SubmitRequest struct {
	RequestedRole string `json:"requested_role" binding:"required"`
	Reason        string `json:"reason"`
}

// ReviewRequest is the body for approve/reject endpoints.
type ReviewRequest struct {
	AdminNotes string `json:"admin_notes"`
}

// DecisionResponse is returned by approve: the decided request plus the
// updated user.
type DecisionResponse struct {
	Request *models.RoleChangeRequest `json:"request"`
	User    *models.UserPublic        `json:"updated_user,omitempty"`
}

// Handler handles role request HTTP endpoints.
type Handler struct {
	svc      *Service
	notifier *notify.Notifier
	logger   *zap.Logger
}

// NewHandler creates a role requests handler. notifier may be nil when the
// notification queue is not configured.
func NewHandler(svc *Service, notifier *notify.Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, notifier: notifier, logger: logger}
}

// Submit handles POST /api/role-requests. The requester is the authenticated
// user; the requested role must be one of the closed enumeration.
func (h *Handler) Submit(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	role, ok := models.ParseRole(req.RequestedRole)
	if !ok {
		response.BadRequest(c, "invalid requested role")
		return
	}

	created, err := h.svc.Submit(c.Request.Context(), userID, role, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, created)
}

// Approve handles PUT /api/role-requests/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	requestID, ok := parseID(c)
	if !ok {
		return
	}
	adminID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	var body ReviewRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	req, user, err := h.svc.Approve(c.Request.Context(), requestID, adminID, body.AdminNotes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.notifyDecision(c, req)

	pub := user.ToPublic()
	response.OK(c, DecisionResponse{Request: req, User: &pub})
}

// Reject handles PUT /api/role-requests/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	requestID, ok := parseID(c)
	if !ok {
		return
	}
	adminID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	var body ReviewRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	req, err := h.svc.Reject(c.Request.Context(), requestID, adminID, body.AdminNotes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.notifyDecision(c, req)
	response.OK(c, DecisionResponse{Request: req})
}

// List handles GET /api/role-requests. An optional ?status= filter narrows
// the result.
func (h *Handler) List(c *gin.Context) {
	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseRequestStatus(raw)
		if !ok {
			response.BadRequest(c, "invalid status filter")
			return
		}
		list, err := h.svc.ListByStatus(c.Request.Context(), status)
		if err != nil {
			h.writeError(c, err)
			return
		}
		response.OK(c, list)
		return
	}
	list, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, list)
}

// ListPending handles GET /api/role-requests/pending.
func (h *Handler) ListPending(c *gin.Context) {
	list, err := h.svc.ListPending(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, list)
}

// ListMine handles GET /api/role-requests/mine. Returns the authenticated
// user's own requests.
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	list, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, list)
}

// ListByUser handles GET /api/role-requests/user/:id (admin queue view).
func (h *Handler) ListByUser(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		return
	}
	list, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, list)
}

// Delete handles DELETE /api/role-requests/:id. Cleanup works on any status.
func (h *Handler) Delete(c *gin.Context) {
	requestID, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), requestID); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) notifyDecision(c *gin.Context, req *models.RoleChangeRequest) {
	if h.notifier == nil {
		return
	}
	// A notification failure never fails the decision.
	if err := h.notifier.EnqueueDecision(c.Request.Context(), req); err != nil {
		h.logger.Warn("enqueue decision notification failed",
			zap.Error(err), zap.Int64("request_id", req.ID))
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(c, "user not found")
	case errors.Is(err, ErrAdminNotFound):
		response.NotFound(c, "admin not found")
	case errors.Is(err, ErrRequestNotFound):
		response.NotFound(c, "role request not found")
	case errors.Is(err, ErrDuplicatePending):
		response.Conflict(c, "you already have a pending request for this role")
	case errors.Is(err, ErrNotPending):
		response.Conflict(c, "request is not in pending status")
	default:
		h.logger.Error("role request operation failed", zap.Error(err))
		response.Internal(c, "operation failed")
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
