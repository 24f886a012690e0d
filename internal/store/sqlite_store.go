package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coordinate-system/meeting-system/internal/models"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	sqliteReader
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dbPath, err := resolveDBPath(path)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return nil, err
	}

	return &SQLiteStore{sqliteReader: sqliteReader{q: db}, db: db}, nil
}

func resolveDBPath(path string) (string, error) {
	abs := filepath.Clean(path)
	if strings.HasSuffix(abs, ".db") {
		if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
			return "", err
		}
		return abs, nil
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return "", err
	}
	return filepath.Join(abs, "reservations.db"), nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			room_no TEXT NOT NULL DEFAULT '',
			capacity INTEGER NOT NULL CHECK (capacity > 0),
			area REAL NOT NULL DEFAULT 0,
			usage TEXT NOT NULL DEFAULT '',
			photo TEXT NOT NULL DEFAULT '',
			is_available INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			room_id INTEGER NOT NULL REFERENCES rooms(id),
			date TEXT NOT NULL,
			start_hour INTEGER NOT NULL,
			end_hour INTEGER NOT NULL,
			topic TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			reject_reason TEXT NOT NULL DEFAULT '',
			approve_time TEXT,
			decided_by INTEGER NOT NULL DEFAULT 0,
			canceled_by INTEGER NOT NULL DEFAULT 0,
			canceled_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_reservations_room_date ON reservations(room_id, date, status);",
		"CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations(user_id);",
		`CREATE TABLE IF NOT EXISTS reservation_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reservation_id INTEGER NOT NULL,
			actor_id INTEGER NOT NULL,
			actor_role TEXT NOT NULL,
			action TEXT NOT NULL,
			from_status TEXT NOT NULL DEFAULT '',
			to_status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			at TEXT NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_audit_reservation ON reservation_audit(reservation_id);",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Atomic pins one connection and opens the unit with BEGIN IMMEDIATE, which
// takes the database write lock up front. A concurrent unit waits (up to
// busy_timeout) instead of reading a snapshot it can no longer write from.
// A connection whose ROLLBACK failed may still hold the transaction, so it
// is closed instead of going back to the pool.
func (s *SQLiteStore) Atomic(ctx context.Context, fn func(tx Tx) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	var discard bool
	defer func() {
		if discard {
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		_ = conn.Close()
	}()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	rollback := func() error {
		_, rerr := conn.ExecContext(context.Background(), "ROLLBACK")
		if rerr != nil {
			discard = true
		}
		return rerr
	}
	defer func() {
		if p := recover(); p != nil {
			_ = rollback()
			panic(p)
		}
	}()

	if err := fn(&sqliteTx{sqliteReader: sqliteReader{q: conn}}); err != nil {
		if rerr := rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		_ = rollback()
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveRoom(ctx context.Context, room *models.Room) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO rooms (id, name, room_no, capacity, area, usage, photo, is_available)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, room_no=excluded.room_no, capacity=excluded.capacity,
			area=excluded.area, usage=excluded.usage, photo=excluded.photo, is_available=excluded.is_available`,
		room.ID, room.Name, room.RoomNo, room.Capacity, room.Area, room.Usage, room.Photo, room.Available)
	if err != nil {
		return fmt.Errorf("save room %d: %w", room.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListAudit(ctx context.Context, reservationID int64) ([]*models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, reservation_id, actor_id, actor_role, action, from_status, to_status, reason, at
		FROM reservation_audit WHERE reservation_id = ? ORDER BY id`, reservationID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []*models.AuditEntry
	for rows.Next() {
		var (
			e        models.AuditEntry
			role     string
			from, to string
			at       string
		)
		if err := rows.Scan(&e.ID, &e.ReservationID, &e.ActorID, &role, &e.Action, &from, &to, &e.Reason, &at); err != nil {
			return nil, err
		}
		e.ActorRole = models.Role(role)
		e.FromStatus = models.Status(from)
		e.ToStatus = models.Status(to)
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT id, username, password_hash, role FROM users WHERE id = ?`, id), fmt.Sprintf("user %d", id))
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT id, username, password_hash, role FROM users WHERE username = ?`, username), fmt.Sprintf("user %q", username))
}

func (s *SQLiteStore) scanUser(row *sql.Row, what string) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// SaveUser inserts or updates by username and sets u.ID.
func (s *SQLiteStore) SaveUser(ctx context.Context, u *models.User) error {
	err := s.db.QueryRowContext(ctx, `INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET password_hash=excluded.password_hash, role=excluded.role
		RETURNING id`, u.Username, u.PasswordHash, string(u.Role)).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("save user %q: %w", u.Username, err)
	}
	return nil
}

func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

type sqliteTx struct {
	sqliteReader
}

// LockRoom needs no row lock: BEGIN IMMEDIATE already holds the write lock.
func (t *sqliteTx) LockRoom(ctx context.Context, id int64) (*models.Room, error) {
	return t.GetRoom(ctx, id)
}

func (t *sqliteTx) LockReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return t.GetReservation(ctx, id)
}

func (t *sqliteTx) CreateReservation(ctx context.Context, r *models.Reservation) error {
	res, err := t.q.ExecContext(ctx, `INSERT INTO reservations
		(user_id, room_id, date, start_hour, end_hour, topic, status, reject_reason, approve_time, decided_by, canceled_by, canceled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.RoomID, r.Date, r.StartHour, r.EndHour, r.Topic, string(r.Status), r.RejectReason,
		formatTimePtr(r.ApproveTime), r.DecidedBy, r.CanceledBy, formatTimePtr(r.CanceledAt),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

func (t *sqliteTx) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	res, err := t.q.ExecContext(ctx, `UPDATE reservations SET
		room_id = ?, date = ?, start_hour = ?, end_hour = ?, topic = ?, status = ?, reject_reason = ?,
		approve_time = ?, decided_by = ?, canceled_by = ?, canceled_at = ?, updated_at = ?
		WHERE id = ?`,
		r.RoomID, r.Date, r.StartHour, r.EndHour, r.Topic, string(r.Status), r.RejectReason,
		formatTimePtr(r.ApproveTime), r.DecidedBy, r.CanceledBy, formatTimePtr(r.CanceledAt),
		formatTime(r.UpdatedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update reservation %d: %w", r.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("reservation %d: %w", r.ID, ErrNotFound)
	}
	return nil
}

func (t *sqliteTx) AppendAudit(ctx context.Context, e *models.AuditEntry) error {
	res, err := t.q.ExecContext(ctx, `INSERT INTO reservation_audit
		(reservation_id, actor_id, actor_role, action, from_status, to_status, reason, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ReservationID, e.ActorID, string(e.ActorRole), e.Action, string(e.FromStatus), string(e.ToStatus), e.Reason, formatTime(e.At))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

type sqliteReader struct {
	q querier
}

const roomColumns = `id, name, room_no, capacity, area, usage, photo, is_available`

const reservationColumns = `id, user_id, room_id, date, start_hour, end_hour, topic, status, reject_reason,
	approve_time, decided_by, canceled_by, canceled_at, created_at, updated_at`

func (r sqliteReader) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room, err := scanRoom(r.q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %d: %w", id, ErrNotFound)
	}
	return room, err
}

func (r sqliteReader) ListRooms(ctx context.Context, filter RoomFilter) ([]*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE capacity >= ?`
	args := []any{filter.MinCapacity}
	if filter.OnlyAvailable {
		query += ` AND is_available = 1`
	}
	query += ` ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var rooms []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (r sqliteReader) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	res, err := scanReservation(r.q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	return res, err
}

func (r sqliteReader) ListReservations(ctx context.Context, filter ReservationFilter) ([]*models.Reservation, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.RoomID != 0 {
		conds = append(conds, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.Date != "" {
		conds = append(conds, "date = ?")
		args = append(args, filter.Date)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date DESC, start_hour DESC, id DESC`
	return r.queryReservations(ctx, query, args...)
}

func (r sqliteReader) FindOverlapping(ctx context.Context, q OverlapQuery) ([]*models.Reservation, error) {
	if len(q.Statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(q.Statuses)), ",")
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE room_id = ? AND date = ? AND start_hour < ? AND end_hour > ? AND id != ?
		AND status IN (` + placeholders + `) ORDER BY id`
	args := []any{q.RoomID, q.Date, q.End, q.Start, q.ExcludeID}
	for _, s := range statusStrings(q.Statuses) {
		args = append(args, s)
	}
	return r.queryReservations(ctx, query, args...)
}

func (r sqliteReader) queryReservations(ctx context.Context, query string, args ...any) ([]*models.Reservation, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(sc scanner) (*models.Room, error) {
	var room models.Room
	if err := sc.Scan(&room.ID, &room.Name, &room.RoomNo, &room.Capacity, &room.Area, &room.Usage, &room.Photo, &room.Available); err != nil {
		return nil, err
	}
	return &room, nil
}

func scanReservation(sc scanner) (*models.Reservation, error) {
	var (
		res                  models.Reservation
		status               string
		approveAt, canceled  sql.NullString
		createdAt, updatedAt string
	)
	if err := sc.Scan(&res.ID, &res.UserID, &res.RoomID, &res.Date, &res.StartHour, &res.EndHour, &res.Topic,
		&status, &res.RejectReason, &approveAt, &res.DecidedBy, &res.CanceledBy, &canceled, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	res.Status = models.Status(status)

	var err error
	if res.ApproveTime, err = parseNullTime(approveAt); err != nil {
		return nil, err
	}
	if res.CanceledAt, err = parseNullTime(canceled); err != nil {
		return nil, err
	}
	if res.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if res.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &res, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
