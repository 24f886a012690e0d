package reservation

import (
	"context"

	"github.com/coordinate-system/meeting-system/internal/models"
	"github.com/coordinate-system/meeting-system/internal/store"
)

// FilterAvailableRooms lists the available rooms holding at least minCapacity
// people whose window [start, end) on date is free, in catalog (room id)
// order. The answer is advisory: it reads committed data without locks and a
// later create may still lose the room to a concurrent caller.
func FilterAvailableRooms(ctx context.Context, r store.Reader, d *Detector, date string, start, end, minCapacity int) ([]models.RoomSummary, error) {
	rooms, err := r.ListRooms(ctx, store.RoomFilter{MinCapacity: minCapacity, OnlyAvailable: true})
	if err != nil {
		return nil, err
	}

	out := make([]models.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		busy, err := d.HasConflict(ctx, r, room.ID, date, start, end, 0)
		if err != nil {
			return nil, err
		}
		if !busy {
			out = append(out, room.Summary())
		}
	}
	return out, nil
}
