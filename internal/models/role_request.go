package models

import (
	"strings"
	"time"
)

// RequestStatus is the review state of a role change request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

// ParseRequestStatus converts a status string, case-insensitively.
func ParseRequestStatus(s string) (RequestStatus, bool) {
	switch RequestStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, true
	case StatusApproved:
		return StatusApproved, true
	case StatusRejected:
		return StatusRejected, true
	}
	return "", false
}

// RoleChangeRequest is a user-submitted, admin-reviewed proposal to change
// the user's role. Requester email/name and reviewer name are snapshotted on
// the record so it stays readable if the user rows change later.
type RoleChangeRequest struct {
	ID             int64         `json:"id"`
	UserID         int64         `json:"user_id"`
	UserEmail      string        `json:"user_email"`
	UserName       string        `json:"user_name"`
	RequestedRole  Role          `json:"requested_role"`
	CurrentRole    Role          `json:"current_role"`
	Status         RequestStatus `json:"status"`
	Reason         string        `json:"reason"`
	AdminNotes     string        `json:"admin_notes,omitempty"`
	RequestedAt    time.Time     `json:"requested_at"`
	ReviewedAt     *time.Time    `json:"reviewed_at,omitempty"`
	ReviewedBy     *int64        `json:"reviewed_by,omitempty"`
	ReviewedByName string        `json:"reviewed_by_name,omitempty"`
}
