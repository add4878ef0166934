// Package rolerequests implements the role escalation workflow: users ask
// for a higher role, an administrator approves or rejects exactly once.
package rolerequests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eventman/backend/internal/auth"
	"github.com/eventman/backend/internal/models"
)

var (
	// ErrUserNotFound means the requesting user id did not resolve.
	ErrUserNotFound = errors.New("user not found")
	// ErrAdminNotFound means the reviewing admin id did not resolve.
	ErrAdminNotFound = errors.New("admin not found")
	// ErrRequestNotFound means no role request matched the id.
	ErrRequestNotFound = errors.New("role request not found")
	// ErrDuplicatePending means the user already has a pending request for
	// the same role.
	ErrDuplicatePending = errors.New("a pending request for this role already exists")
	// ErrNotPending means the request was already approved or rejected.
	ErrNotPending = errors.New("request is not in pending status")
)

// UserStore is the slice of the user store the workflow needs for identity
// lookups. The approval role write-through lives in RequestStore so it can
// share a transaction with the decision.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// RequestStore persists role change requests. Create must enforce the
// one-pending-per-(user, role) invariant atomically and report violations as
// ErrDuplicatePending. Approve must stamp the decision and write the
// requested role onto the user as one unit: if either write fails, neither
// sticks and the request stays PENDING. MarkReviewed must check PENDING
// status and write the decision as a single atomic unit. Both report
// ErrNotPending when the request was already decided.
type RequestStore interface {
	Create(ctx context.Context, req *models.RoleChangeRequest) error
	GetByID(ctx context.Context, id int64) (*models.RoleChangeRequest, error)
	Approve(ctx context.Context, id int64, reviewer *models.User, notes string, reviewedAt time.Time) (*models.RoleChangeRequest, *models.User, error)
	MarkReviewed(ctx context.Context, id int64, status models.RequestStatus, reviewerID int64, reviewerName, notes string, reviewedAt time.Time) (*models.RoleChangeRequest, error)
	ListAll(ctx context.Context) ([]*models.RoleChangeRequest, error)
	ListPending(ctx context.Context) ([]*models.RoleChangeRequest, error)
	ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.RoleChangeRequest, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.RoleChangeRequest, error)
	Delete(ctx context.Context, id int64) error
}

// Service runs the escalation state machine over the two stores.
type Service struct {
	requests RequestStore
	users    UserStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a role request service.
func NewService(requests RequestStore, users UserStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{requests: requests, users: users, logger: logger, now: time.Now}
}

// Submit creates a PENDING request for the user, snapshotting their current
// role, email and name.
func (s *Service) Submit(ctx context.Context, userID int64, requestedRole models.Role, reason string) (*models.RoleChangeRequest, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	req := &models.RoleChangeRequest{
		UserID:        user.ID,
		UserEmail:     user.Email,
		UserName:      user.Name,
		RequestedRole: requestedRole,
		CurrentRole:   user.Role,
		Status:        models.StatusPending,
		Reason:        reason,
		RequestedAt:   s.now(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("role request submitted",
		zap.Int64("request_id", req.ID),
		zap.Int64("user_id", user.ID),
		zap.String("requested_role", string(requestedRole)),
	)
	return req, nil
}

// Approve decides a PENDING request in the requester's favor: the request is
// stamped APPROVED and the requested role is written through to the user.
// The status check and both writes are one atomic unit in the store, so of
// two concurrent approvals exactly one succeeds and the other gets
// ErrNotPending, and a failed role write leaves the request PENDING and
// retryable.
func (s *Service) Approve(ctx context.Context, requestID, adminID int64, notes string) (*models.RoleChangeRequest, *models.User, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.Status != models.StatusPending {
		return nil, nil, ErrNotPending
	}

	admin, err := s.users.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, nil, ErrAdminNotFound
		}
		return nil, nil, fmt.Errorf("load admin: %w", err)
	}

	req, user, err := s.requests.Approve(ctx, requestID, admin, notes, s.now())
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("role request approved",
		zap.Int64("request_id", req.ID),
		zap.Int64("user_id", user.ID),
		zap.Int64("admin_id", admin.ID),
		zap.String("new_role", string(user.Role)),
	)
	return req, user, nil
}

// Reject decides a PENDING request against the requester. Only the request is
// mutated; the user's role is never touched.
func (s *Service) Reject(ctx context.Context, requestID, adminID int64, notes string) (*models.RoleChangeRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusPending {
		return nil, ErrNotPending
	}

	admin, err := s.users.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("load admin: %w", err)
	}

	req, err = s.requests.MarkReviewed(ctx, requestID, models.StatusRejected, admin.ID, admin.Name, notes, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("role request rejected",
		zap.Int64("request_id", req.ID),
		zap.Int64("admin_id", admin.ID),
	)
	return req, nil
}

// Get returns a single request by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.RoleChangeRequest, error) {
	return s.requests.GetByID(ctx, id)
}

// ListAll returns every request, most recent first.
func (s *Service) ListAll(ctx context.Context) ([]*models.RoleChangeRequest, error) {
	return s.requests.ListAll(ctx)
}

// ListPending returns the administrative review queue, most recent first.
func (s *Service) ListPending(ctx context.Context) ([]*models.RoleChangeRequest, error) {
	return s.requests.ListPending(ctx)
}

// ListByStatus returns requests in the given status, most recent first.
func (s *Service) ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.RoleChangeRequest, error) {
	return s.requests.ListByStatus(ctx, status)
}

// ListByUser returns a user's requests, most recent first.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*models.RoleChangeRequest, error) {
	return s.requests.ListByUser(ctx, userID)
}

// Delete removes a request regardless of status. Administrative cleanup, not
// part of the state machine.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.requests.Delete(ctx, id)
}
