package store

import (
	"context"
	"errors"

	"github.com/coordinate-system/meeting-system/internal/models"
)

// ErrNotFound is returned (wrapped) when a room, reservation or user does not exist.
var ErrNotFound = errors.New("not found")

// RoomFilter selects catalog rooms. Zero values do not filter.
type RoomFilter struct {
	MinCapacity   int
	OnlyAvailable bool
}

// ReservationFilter selects reservations. Zero values do not filter.
type ReservationFilter struct {
	UserID int64
	RoomID int64
	Date   string
	Status models.Status
}

// OverlapQuery finds reservations on RoomID and Date whose [start, end) window
// intersects [Start, End) and whose status is in Statuses. ExcludeID, when
// non-zero, leaves that reservation out so an edit can check against everything else.
type OverlapQuery struct {
	RoomID    int64
	Date      string
	Start     int
	End       int
	Statuses  []models.Status
	ExcludeID int64
}

// Reader is the read side shared by the store and by an open atomic unit.
// ListRooms orders by room id; ListReservations orders by date, then start
// hour, then id, all descending; FindOverlapping orders by id.
type Reader interface {
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]*models.Room, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]*models.Reservation, error)
	FindOverlapping(ctx context.Context, q OverlapQuery) ([]*models.Reservation, error)
}

// Tx is one atomic unit. Locks taken through it are held until the unit ends.
type Tx interface {
	Reader

	// LockRoom takes an exclusive lock on the room row. Every write that can
	// create an overlap for the room takes it first, which serializes them.
	LockRoom(ctx context.Context, id int64) (*models.Room, error)
	LockReservation(ctx context.Context, id int64) (*models.Reservation, error)
	CreateReservation(ctx context.Context, r *models.Reservation) error
	UpdateReservation(ctx context.Context, r *models.Reservation) error
	AppendAudit(ctx context.Context, e *models.AuditEntry) error
}

// Store defines the interface for database operations.
type Store interface {
	Reader

	// Atomic runs fn in a serializable unit. The unit commits when fn returns
	// nil and rolls back otherwise; fn's error is returned unchanged.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	// Room catalog seeding
	SaveRoom(ctx context.Context, room *models.Room) error

	ListAudit(ctx context.Context, reservationID int64) ([]*models.AuditEntry, error)

	// User directory backing
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error
	CountUsers(ctx context.Context) (int, error)

	Close() error
}

func overlaps(r *models.Reservation, q OverlapQuery) bool {
	if r.RoomID != q.RoomID || r.Date != q.Date {
		return false
	}
	if q.ExcludeID != 0 && r.ID == q.ExcludeID {
		return false
	}
	if !statusIn(r.Status, q.Statuses) {
		return false
	}
	return r.StartHour < q.End && q.Start < r.EndHour
}

func statusIn(s models.Status, set []models.Status) bool {
	for _, st := range set {
		if st == s {
			return true
		}
	}
	return false
}

func statusStrings(set []models.Status) []string {
	out := make([]string, len(set))
	for i, s := range set {
		out[i] = string(s)
	}
	return out
}
