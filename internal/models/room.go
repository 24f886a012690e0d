package models

// Room is a bookable meeting room from the catalog.
type Room struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	RoomNo    string  `json:"room_no,omitempty"`
	Capacity  int     `json:"capacity"`
	Area      float64 `json:"area,omitempty"`
	Usage     string  `json:"usage"`
	Photo     string  `json:"photo,omitempty"`
	Available bool    `json:"is_available"`
}

// DisplayName returns "Name (RoomNo)" when a room number is set.
func (r *Room) DisplayName() string {
	if r.RoomNo != "" {
		return r.Name + " (" + r.RoomNo + ")"
	}
	return r.Name
}

// Summary projects the room into the shape returned by availability checks.
func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:       r.ID,
		Name:     r.Name,
		Capacity: r.Capacity,
		Usage:    r.Usage,
		Photo:    r.Photo,
	}
}

// RoomSummary is one candidate room returned by an availability check.
type RoomSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Usage    string `json:"usage"`
	Photo    string `json:"photo"`
}

type RoomListResponse struct {
	TotalRooms int    `json:"total_rooms"`
	Rooms      []Room `json:"rooms"`
}
