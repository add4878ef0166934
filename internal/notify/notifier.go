// Package notify delivers role decision notifications to requesters: the
// HTTP layer enqueues, the worker sends mail and records the outcome.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eventman/backend/internal/models"
	"github.com/eventman/backend/pkg/queue"
)

// Notifier enqueues decision notification jobs.
type Notifier struct {
	queue  *queue.Queue
	logger *zap.Logger
}

// NewNotifier creates a notifier over the job queue.
func NewNotifier(q *queue.Queue, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{queue: q, logger: logger}
}

// EnqueueDecision queues an email to the requester about a decided request.
// Undecided requests are ignored.
func (n *Notifier) EnqueueDecision(ctx context.Context, req *models.RoleChangeRequest) error {
	if req.Status == models.StatusPending {
		return nil
	}
	subject, body := DecisionMessage(req)
	return n.queue.EnqueueDecisionEmail(ctx, queue.DecisionEmailPayload{
		RequestID:      req.ID,
		RecipientEmail: req.UserEmail,
		Subject:        subject,
		Body:           body,
	})
}

// DecisionMessage builds the subject and plain-text body for a decided
// request.
func DecisionMessage(req *models.RoleChangeRequest) (subject, body string) {
	switch req.Status {
	case models.StatusApproved:
		subject = fmt.Sprintf("Role Request Approved - %s", req.RequestedRole)
		body = fmt.Sprintf(
			"Hello %s,\n\n"+
				"Your request for the %s role has been approved. Your account now has %s privileges.\n\n",
			req.UserName, req.RequestedRole, req.RequestedRole)
	default:
		subject = fmt.Sprintf("Role Request Rejected - %s", req.RequestedRole)
		body = fmt.Sprintf(
			"Hello %s,\n\n"+
				"Your request for the %s role has been rejected. Your role remains %s.\n\n",
			req.UserName, req.RequestedRole, req.CurrentRole)
	}
	if req.AdminNotes != "" {
		body += "Reviewer notes: " + req.AdminNotes + "\n\n"
	}
	body += "Best regards,\nEvent Management System Team"
	return subject, body
}
