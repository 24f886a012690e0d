package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coordinate-system/meeting-system/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type roomRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false"`
	Name        string `gorm:"type:varchar(100);not null"`
	RoomNo      string `gorm:"type:varchar(50);not null;default:''"`
	Capacity    int    `gorm:"not null"`
	Area        float64
	Usage       string `gorm:"type:varchar(255);not null;default:''"`
	Photo       string `gorm:"type:varchar(500);not null;default:''"`
	IsAvailable bool   `gorm:"not null;default:true"`
}

func (roomRow) TableName() string { return "rooms" }

type userRow struct {
	ID           int64  `gorm:"primaryKey"`
	Username     string `gorm:"type:varchar(100);uniqueIndex;not null"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	Role         string `gorm:"type:varchar(20);not null"`
}

func (userRow) TableName() string { return "users" }

type reservationRow struct {
	ID           int64  `gorm:"primaryKey"`
	UserID       int64  `gorm:"index;not null"`
	RoomID       int64  `gorm:"index:idx_reservations_room_date,priority:1;not null"`
	Date         string `gorm:"type:varchar(10);index:idx_reservations_room_date,priority:2;not null"`
	StartHour    int    `gorm:"not null"`
	EndHour      int    `gorm:"not null"`
	Topic        string `gorm:"type:varchar(255);not null;default:''"`
	Status       string `gorm:"type:varchar(20);index:idx_reservations_room_date,priority:3;not null"`
	RejectReason string `gorm:"type:text;not null;default:''"`
	ApproveTime  *time.Time
	DecidedBy    int64 `gorm:"not null;default:0"`
	CanceledBy   int64 `gorm:"not null;default:0"`
	CanceledAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (reservationRow) TableName() string { return "reservations" }

type auditRow struct {
	ID            int64  `gorm:"primaryKey"`
	ReservationID int64  `gorm:"index;not null"`
	ActorID       int64  `gorm:"not null"`
	ActorRole     string `gorm:"type:varchar(20);not null"`
	Action        string `gorm:"type:varchar(50);not null"`
	FromStatus    string `gorm:"type:varchar(20);not null;default:''"`
	ToStatus      string `gorm:"type:varchar(20);not null"`
	Reason        string `gorm:"type:text;not null;default:''"`
	At            time.Time
}

func (auditRow) TableName() string { return "reservation_audit" }

// PostgresStore persists through gorm. Writes that may create an overlap lock
// the room row FOR UPDATE, so they run one at a time per room even under
// READ COMMITTED.
type PostgresStore struct {
	pgReader
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.AutoMigrate(&roomRow{}, &userRow{}, &reservationRow{}, &auditRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{pgReader{db: db}}, nil
}

func (s *PostgresStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgTx{pgReader{db: tx}})
	})
}

func (s *PostgresStore) SaveRoom(ctx context.Context, room *models.Room) error {
	row := toRoomRow(room)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save room %d: %w", room.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListAudit(ctx context.Context, reservationID int64) ([]*models.AuditEntry, error) {
	var rows []auditRow
	if err := s.db.WithContext(ctx).Where("reservation_id = ?", reservationID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, &models.AuditEntry{
			ID:            row.ID,
			ReservationID: row.ReservationID,
			ActorID:       row.ActorID,
			ActorRole:     models.Role(row.ActorRole),
			Action:        row.Action,
			FromStatus:    models.Status(row.FromStatus),
			ToStatus:      models.Status(row.ToStatus),
			Reason:        row.Reason,
			At:            row.At,
		})
	}
	return out, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("user %d", id))
	}
	return fromUserRow(row), nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&row).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("user %q", username))
	}
	return fromUserRow(row), nil
}

func (s *PostgresStore) SaveUser(ctx context.Context, u *models.User) error {
	row := userRow{Username: u.Username, PasswordHash: u.PasswordHash, Role: string(u.Role)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "role"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save user %q: %w", u.Username, err)
	}
	if row.ID == 0 {
		existing, err := s.GetUserByUsername(ctx, u.Username)
		if err != nil {
			return err
		}
		row.ID = existing.ID
	}
	u.ID = row.ID
	return nil
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&userRow{}).Count(&n).Error
	return int(n), err
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type pgTx struct {
	pgReader
}

func (t *pgTx) LockRoom(ctx context.Context, id int64) (*models.Room, error) {
	var row roomRow
	err := t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, id).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("room %d", id))
	}
	return fromRoomRow(row), nil
}

func (t *pgTx) LockReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	var row reservationRow
	err := t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, id).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("reservation %d", id))
	}
	return fromReservationRow(row), nil
}

func (t *pgTx) CreateReservation(ctx context.Context, r *models.Reservation) error {
	row := toReservationRow(r)
	row.ID = 0
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	r.ID = row.ID
	return nil
}

func (t *pgTx) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	row := toReservationRow(r)
	res := t.db.WithContext(ctx).Model(&reservationRow{ID: r.ID}).Select("*").Omit("id", "created_at").Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("update reservation %d: %w", r.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("reservation %d: %w", r.ID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) AppendAudit(ctx context.Context, e *models.AuditEntry) error {
	row := auditRow{
		ReservationID: e.ReservationID,
		ActorID:       e.ActorID,
		ActorRole:     string(e.ActorRole),
		Action:        e.Action,
		FromStatus:    string(e.FromStatus),
		ToStatus:      string(e.ToStatus),
		Reason:        e.Reason,
		At:            e.At,
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	e.ID = row.ID
	return nil
}

type pgReader struct {
	db *gorm.DB
}

func (r pgReader) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	var row roomRow
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("room %d", id))
	}
	return fromRoomRow(row), nil
}

func (r pgReader) ListRooms(ctx context.Context, filter RoomFilter) ([]*models.Room, error) {
	q := r.db.WithContext(ctx).Where("capacity >= ?", filter.MinCapacity)
	if filter.OnlyAvailable {
		q = q.Where("is_available = ?", true)
	}
	var rows []roomRow
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.Room, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRoomRow(row))
	}
	return out, nil
}

func (r pgReader) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	var row reservationRow
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("reservation %d", id))
	}
	return fromReservationRow(row), nil
}

func (r pgReader) ListReservations(ctx context.Context, filter ReservationFilter) ([]*models.Reservation, error) {
	q := r.db.WithContext(ctx)
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.RoomID != 0 {
		q = q.Where("room_id = ?", filter.RoomID)
	}
	if filter.Date != "" {
		q = q.Where("date = ?", filter.Date)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	var rows []reservationRow
	if err := q.Order("date DESC, start_hour DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromReservationRows(rows), nil
}

func (r pgReader) FindOverlapping(ctx context.Context, q OverlapQuery) ([]*models.Reservation, error) {
	if len(q.Statuses) == 0 {
		return nil, nil
	}
	var rows []reservationRow
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND date = ?", q.RoomID, q.Date).
		Where("start_hour < ? AND end_hour > ?", q.End, q.Start).
		Where("id <> ?", q.ExcludeID).
		Where("status IN ?", statusStrings(q.Statuses)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromReservationRows(rows), nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

func toRoomRow(r *models.Room) roomRow {
	return roomRow{
		ID:          r.ID,
		Name:        r.Name,
		RoomNo:      r.RoomNo,
		Capacity:    r.Capacity,
		Area:        r.Area,
		Usage:       r.Usage,
		Photo:       r.Photo,
		IsAvailable: r.Available,
	}
}

func fromRoomRow(row roomRow) *models.Room {
	return &models.Room{
		ID:        row.ID,
		Name:      row.Name,
		RoomNo:    row.RoomNo,
		Capacity:  row.Capacity,
		Area:      row.Area,
		Usage:     row.Usage,
		Photo:     row.Photo,
		Available: row.IsAvailable,
	}
}

func fromUserRow(row userRow) *models.User {
	return &models.User{ID: row.ID, Username: row.Username, PasswordHash: row.PasswordHash, Role: models.Role(row.Role)}
}

func toReservationRow(r *models.Reservation) reservationRow {
	return reservationRow{
		ID:           r.ID,
		UserID:       r.UserID,
		RoomID:       r.RoomID,
		Date:         r.Date,
		StartHour:    r.StartHour,
		EndHour:      r.EndHour,
		Topic:        r.Topic,
		Status:       string(r.Status),
		RejectReason: r.RejectReason,
		ApproveTime:  r.ApproveTime,
		DecidedBy:    r.DecidedBy,
		CanceledBy:   r.CanceledBy,
		CanceledAt:   r.CanceledAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func fromReservationRow(row reservationRow) *models.Reservation {
	return &models.Reservation{
		ID:           row.ID,
		UserID:       row.UserID,
		RoomID:       row.RoomID,
		Date:         row.Date,
		StartHour:    row.StartHour,
		EndHour:      row.EndHour,
		Topic:        row.Topic,
		Status:       models.Status(row.Status),
		RejectReason: row.RejectReason,
		ApproveTime:  row.ApproveTime,
		DecidedBy:    row.DecidedBy,
		CanceledBy:   row.CanceledBy,
		CanceledAt:   row.CanceledAt,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func fromReservationRows(rows []reservationRow) []*models.Reservation {
	out := make([]*models.Reservation, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromReservationRow(row))
	}
	return out
}
