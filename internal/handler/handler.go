package handler

import (
	"context"
	"strings"

	"github.com/coordinate-system/meeting-system/internal/directory"
	"github.com/coordinate-system/meeting-system/internal/logger"
	"github.com/coordinate-system/meeting-system/internal/models"
	"github.com/coordinate-system/meeting-system/internal/reservation"
	"github.com/coordinate-system/meeting-system/internal/store"
	"github.com/gin-gonic/gin"
)

// Reservations is the lifecycle engine as seen by the transport.
type Reservations interface {
	CheckAvailability(ctx context.Context, caller models.Identity, q reservation.AvailabilityQuery) ([]models.RoomSummary, error)
	Create(ctx context.Context, caller models.Identity, req reservation.CreateRequest) (*models.Reservation, error)
	AdminCreate(ctx context.Context, caller models.Identity, req reservation.AdminCreateRequest) (*models.Reservation, error)
	Approve(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error)
	Reject(ctx context.Context, caller models.Identity, id int64, reason string) (*models.Reservation, error)
	Cancel(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error)
	ConfirmUse(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error)
	Reschedule(ctx context.Context, caller models.Identity, id int64, req reservation.RescheduleRequest) (*models.Reservation, error)
	ListMine(ctx context.Context, caller models.Identity) ([]models.ReservationView, error)
	ListAll(ctx context.Context, caller models.Identity, f reservation.ListFilter) ([]*models.Reservation, error)
	Audit(ctx context.Context, caller models.Identity, id int64) ([]*models.AuditEntry, error)
}

type Sessions interface {
	Login(ctx context.Context, username, password string) (directory.Token, models.Identity, error)
	Logout(ctx context.Context, raw string) error
	ValidateToken(ctx context.Context, raw string) (models.Identity, error)
}

type Rooms interface {
	ListRooms(ctx context.Context, filter store.RoomFilter) ([]*models.Room, error)
}

type Handler struct {
	reservations Reservations
	sessions     Sessions
	rooms        Rooms
	mediaBase    string
	log          *logger.Logger
}

func New(reservations Reservations, sessions Sessions, rooms Rooms, mediaBaseURL string, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		reservations: reservations,
		sessions:     sessions,
		rooms:        rooms,
		mediaBase:    strings.TrimRight(mediaBaseURL, "/"),
		log:          log,
	}
}

// Login handles POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	tok, id, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "ok", gin.H{
		"access":     tok.Access,
		"expires_at": tok.ExpiresAt,
		"user":       id,
	})
}

// Logout handles POST /api/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "logged out", nil)
}

// ListRooms handles GET /api/rooms
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListRooms(c.Request.Context(), store.RoomFilter{})
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]models.Room, 0, len(rooms))
	for _, r := range rooms {
		room := *r
		room.Photo = h.photoURL(c, room.Photo)
		out = append(out, room)
	}
	respondOK(c, "ok", models.RoomListResponse{TotalRooms: len(out), Rooms: out})
}

// CheckAvailability handles POST /api/reservations/check
func (h *Handler) CheckAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	caller, _ := identity(c)
	rooms, err := h.reservations.CheckAvailability(c.Request.Context(), caller, req.query())
	if err != nil {
		h.respondError(c, err)
		return
	}
	for i := range rooms {
		rooms[i].Photo = h.photoURL(c, rooms[i].Photo)
	}
	respondOK(c, "ok", rooms)
}

// CreateReservation handles POST /api/reservations/create
func (h *Handler) CreateReservation(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	caller, _ := identity(c)
	res, err := h.reservations.Create(c.Request.Context(), caller, req.toDomain())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "reservation submitted, awaiting approval", createdResponse{ID: res.ID, Status: res.Status})
}

// MyReservations handles GET|POST /api/reservations/my
func (h *Handler) MyReservations(c *gin.Context) {
	caller, _ := identity(c)
	views, err := h.reservations.ListMine(c.Request.Context(), caller)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "ok", views)
}

// Cancel handles POST /api/reservations/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, "reservation canceled", h.reservations.Cancel)
}

// ConfirmUse handles POST /api/reservations/:id/confirm
func (h *Handler) ConfirmUse(c *gin.Context) {
	h.transition(c, "usage confirmed", h.reservations.ConfirmUse)
}

// Approve handles POST /api/admin/reservations/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	h.transition(c, "reservation approved", h.reservations.Approve)
}

// Reject handles POST /api/admin/reservations/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	h.transition(c, "reservation rejected", func(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error) {
		return h.reservations.Reject(ctx, caller, id, req.Reason)
	})
}

// Reschedule handles POST /api/admin/reservations/:id/reschedule
func (h *Handler) Reschedule(c *gin.Context) {
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	h.transition(c, "reservation rescheduled", func(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error) {
		return h.reservations.Reschedule(ctx, caller, id, req.toDomain())
	})
}

func (h *Handler) transition(c *gin.Context, msg string, op func(context.Context, models.Identity, int64) (*models.Reservation, error)) {
	var p idParam
	if err := c.ShouldBindUri(&p); err != nil {
		bindError(c, err)
		return
	}
	caller, _ := identity(c)
	res, err := op(c.Request.Context(), caller, p.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, msg, res)
}

// AdminCreate handles POST /api/admin/reservations
func (h *Handler) AdminCreate(c *gin.Context) {
	var req adminCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	caller, _ := identity(c)
	res, err := h.reservations.AdminCreate(c.Request.Context(), caller, req.toDomain())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "reservation created", createdResponse{ID: res.ID, Status: res.Status})
}

// ListAll handles GET /api/admin/reservations
func (h *Handler) ListAll(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	caller, _ := identity(c)
	list, err := h.reservations.ListAll(c.Request.Context(), caller, reservation.ListFilter{
		RoomID: q.RoomID,
		Date:   q.Date,
		Status: models.Status(q.Status),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if list == nil {
		list = []*models.Reservation{}
	}
	respondOK(c, "ok", list)
}

// Audit handles GET /api/admin/reservations/:id/audit
func (h *Handler) Audit(c *gin.Context) {
	var p idParam
	if err := c.ShouldBindUri(&p); err != nil {
		bindError(c, err)
		return
	}
	caller, _ := identity(c)
	entries, err := h.reservations.Audit(c.Request.Context(), caller, p.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if entries == nil {
		entries = []*models.AuditEntry{}
	}
	respondOK(c, "ok", entries)
}

// photoURL turns a stored photo reference into an absolute URL. Without a
// configured media base the request's own host is used.
func (h *Handler) photoURL(c *gin.Context, photo string) string {
	if photo == "" || strings.HasPrefix(photo, "http://") || strings.HasPrefix(photo, "https://") {
		return photo
	}
	base := h.mediaBase
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host + "/media"
	}
	return base + "/" + strings.TrimLeft(photo, "/")
}
