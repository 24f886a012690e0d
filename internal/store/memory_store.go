package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coordinate-system/meeting-system/internal/models"
)

// MemoryStore keeps everything in process. Atomic holds the store lock for
// the whole unit and works on a copy that replaces the live state on commit.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	rooms        map[int64]*models.Room
	reservations map[int64]*models.Reservation
	audit        []*models.AuditEntry
	users        map[int64]*models.User
	nextRes      int64
	nextAudit    int64
	nextUser     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		rooms:        make(map[int64]*models.Room),
		reservations: make(map[int64]*models.Reservation),
		users:        make(map[int64]*models.User),
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		rooms:        make(map[int64]*models.Room, len(s.rooms)),
		reservations: make(map[int64]*models.Reservation, len(s.reservations)),
		audit:        append([]*models.AuditEntry(nil), s.audit...),
		users:        s.users,
		nextRes:      s.nextRes,
		nextAudit:    s.nextAudit,
		nextUser:     s.nextUser,
	}
	for id, r := range s.rooms {
		c.rooms[id] = r
	}
	for id, r := range s.reservations {
		c.reservations[id] = r
	}
	return c
}

func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(&memTx{memReader{state: work}}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) reader() memReader {
	return memReader{state: s.state}
}

func (s *MemoryStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetRoom(ctx, id)
}

func (s *MemoryStore) ListRooms(ctx context.Context, filter RoomFilter) ([]*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListRooms(ctx, filter)
}

func (s *MemoryStore) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetReservation(ctx, id)
}

func (s *MemoryStore) ListReservations(ctx context.Context, filter ReservationFilter) ([]*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListReservations(ctx, filter)
}

func (s *MemoryStore) FindOverlapping(ctx context.Context, q OverlapQuery) ([]*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().FindOverlapping(ctx, q)
}

func (s *MemoryStore) SaveRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *room
	s.state.rooms[room.ID] = &c
	return nil
}

func (s *MemoryStore) ListAudit(_ context.Context, reservationID int64) ([]*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AuditEntry
	for _, e := range s.state.audit {
		if e.ReservationID == reservationID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.state.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (s *MemoryStore) SaveUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.state.users {
		if existing.Username == u.Username {
			u.ID = id
			c := *u
			s.state.users[id] = &c
			return nil
		}
	}
	s.state.nextUser++
	u.ID = s.state.nextUser
	c := *u
	s.state.users[u.ID] = &c
	return nil
}

func (s *MemoryStore) CountUsers(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.users), nil
}

func (s *MemoryStore) Close() error { return nil }

type memTx struct {
	memReader
}

func (t *memTx) LockRoom(ctx context.Context, id int64) (*models.Room, error) {
	return t.GetRoom(ctx, id)
}

func (t *memTx) LockReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return t.GetReservation(ctx, id)
}

func (t *memTx) CreateReservation(_ context.Context, r *models.Reservation) error {
	if _, ok := t.state.rooms[r.RoomID]; !ok {
		return fmt.Errorf("room %d: %w", r.RoomID, ErrNotFound)
	}
	t.state.nextRes++
	r.ID = t.state.nextRes
	t.state.reservations[r.ID] = r.Clone()
	return nil
}

func (t *memTx) UpdateReservation(_ context.Context, r *models.Reservation) error {
	if _, ok := t.state.reservations[r.ID]; !ok {
		return fmt.Errorf("reservation %d: %w", r.ID, ErrNotFound)
	}
	t.state.reservations[r.ID] = r.Clone()
	return nil
}

func (t *memTx) AppendAudit(_ context.Context, e *models.AuditEntry) error {
	t.state.nextAudit++
	e.ID = t.state.nextAudit
	c := *e
	t.state.audit = append(t.state.audit, &c)
	return nil
}

type memReader struct {
	state *memState
}

func (r memReader) GetRoom(_ context.Context, id int64) (*models.Room, error) {
	room, ok := r.state.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %d: %w", id, ErrNotFound)
	}
	c := *room
	return &c, nil
}

func (r memReader) ListRooms(_ context.Context, filter RoomFilter) ([]*models.Room, error) {
	var out []*models.Room
	for _, room := range r.state.rooms {
		if room.Capacity < filter.MinCapacity {
			continue
		}
		if filter.OnlyAvailable && !room.Available {
			continue
		}
		c := *room
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memReader) GetReservation(_ context.Context, id int64) (*models.Reservation, error) {
	res, ok := r.state.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	return res.Clone(), nil
}

func (r memReader) ListReservations(_ context.Context, filter ReservationFilter) ([]*models.Reservation, error) {
	var out []*models.Reservation
	for _, res := range r.state.reservations {
		if filter.UserID != 0 && res.UserID != filter.UserID {
			continue
		}
		if filter.RoomID != 0 && res.RoomID != filter.RoomID {
			continue
		}
		if filter.Date != "" && res.Date != filter.Date {
			continue
		}
		if filter.Status != "" && res.Status != filter.Status {
			continue
		}
		out = append(out, res.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.StartHour != b.StartHour {
			return a.StartHour > b.StartHour
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (r memReader) FindOverlapping(_ context.Context, q OverlapQuery) ([]*models.Reservation, error) {
	var out []*models.Reservation
	for _, res := range r.state.reservations {
		if overlaps(res, q) {
			out = append(out, res.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
