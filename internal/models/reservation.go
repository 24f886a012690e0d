package models

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusCanceled Status = "CANCELED"
	StatusUsed     Status = "USED"
)

// OccupyingStatuses hold their time window; no two occupying reservations for
// the same room and date may overlap.
var OccupyingStatuses = []Status{StatusPending, StatusApproved, StatusUsed}

// ApprovedStatuses are the statuses a pending reservation is checked against
// when an administrator approves it.
var ApprovedStatuses = []Status{StatusApproved, StatusUsed}

// IsValid reports whether s is one of the five known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCanceled, StatusUsed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCanceled || s == StatusUsed
}

func (s Status) String() string { return string(s) }

// Reservation is a booking of one room for a half-open hour window [StartHour, EndHour)
// on one calendar day. Reservations are never deleted; cancellation and rejection
// are status changes.
type Reservation struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	RoomID       int64      `json:"room_id"`
	Date         string     `json:"date"` // "YYYY-MM-DD"
	StartHour    int        `json:"start_hour"`
	EndHour      int        `json:"end_hour"`
	Topic        string     `json:"topic"`
	Status       Status     `json:"status"`
	RejectReason string     `json:"reject_reason,omitempty"`
	ApproveTime  *time.Time `json:"approve_time,omitempty"`
	DecidedBy    int64      `json:"decided_by,omitempty"`
	CanceledBy   int64      `json:"canceled_by,omitempty"`
	CanceledAt   *time.Time `json:"canceled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TimeRange renders the window the way it is shown to users, e.g. "9:00 - 11:00".
func (r *Reservation) TimeRange() string {
	return fmt.Sprintf("%d:00 - %d:00", r.StartHour, r.EndHour)
}

// Clone returns a copy that shares no pointers with r.
func (r *Reservation) Clone() *Reservation {
	c := *r
	if r.ApproveTime != nil {
		t := *r.ApproveTime
		c.ApproveTime = &t
	}
	if r.CanceledAt != nil {
		t := *r.CanceledAt
		c.CanceledAt = &t
	}
	return &c
}

// ReservationView is the owner-facing projection returned by list-my-reservations.
type ReservationView struct {
	ID           int64      `json:"id"`
	RoomID       int64      `json:"room_id"`
	Room         string     `json:"room"`
	Date         string     `json:"date"`
	StartHour    int        `json:"start_hour"`
	EndHour      int        `json:"end_hour"`
	Time         string     `json:"time"`
	Topic        string     `json:"topic"`
	Status       Status     `json:"status"`
	ApproveTime  *time.Time `json:"approve_time"`
	RejectReason string     `json:"reject_reason"`
}

// AuditEntry records a single lifecycle transition.
type AuditEntry struct {
	ID            int64     `json:"id"`
	ReservationID int64     `json:"reservation_id"`
	ActorID       int64     `json:"actor_id"`
	ActorRole     Role      `json:"actor_role"`
	Action        string    `json:"action"`
	FromStatus    Status    `json:"from_status,omitempty"`
	ToStatus      Status    `json:"to_status"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"at"`
}
