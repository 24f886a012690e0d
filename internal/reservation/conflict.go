package reservation

import (
	"context"

	"github.com/coordinate-system/meeting-system/internal/models"
	"github.com/coordinate-system/meeting-system/internal/store"
)

// Overlaps reports whether [s1, e1) and [s2, e2) share at least one hour.
// Touching windows such as [9,12) and [12,15) do not overlap.
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// Detector answers whether a window on a room is already held. It reads
// through whatever Reader it is given, so inside an atomic unit it sees the
// unit's snapshot and outside it sees committed data.
type Detector struct {
	statuses []models.Status
}

// NewDetector checks against the given statuses. Nil means the occupying set.
func NewDetector(statuses []models.Status) *Detector {
	if statuses == nil {
		statuses = models.OccupyingStatuses
	}
	return &Detector{statuses: statuses}
}

// HasConflict reports whether any reservation for roomID on date in one of
// the detector's statuses overlaps [start, end). excludeID, when non-zero,
// is ignored so a reservation can be checked against everything else.
func (d *Detector) HasConflict(ctx context.Context, r store.Reader, roomID int64, date string, start, end int, excludeID int64) (bool, error) {
	found, err := r.FindOverlapping(ctx, store.OverlapQuery{
		RoomID:    roomID,
		Date:      date,
		Start:     start,
		End:       end,
		Statuses:  d.statuses,
		ExcludeID: excludeID,
	})
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}
