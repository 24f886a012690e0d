package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coordinate-system/meeting-system/internal/logger"
	"github.com/coordinate-system/meeting-system/internal/models"
	"github.com/coordinate-system/meeting-system/internal/policy"
	"github.com/coordinate-system/meeting-system/internal/store"
)

// DefaultUsageTolerance is how far from the scheduled start a reservation may
// be confirmed as used.
const DefaultUsageTolerance = time.Hour

type Options struct {
	UsageTolerance time.Duration
	// ApproveRechecksPending makes approval also refuse when another PENDING
	// reservation overlaps, not only APPROVED or USED ones.
	ApproveRechecksPending bool
}

// Engine owns the reservation lifecycle. It keeps no state of its own
// between calls; every operation is one atomic unit against the store.
type Engine struct {
	store     store.Store
	calendar  *policy.Calendar
	log       *logger.Logger
	occupying *Detector
	approval  *Detector
	tolerance time.Duration
}

func NewEngine(st store.Store, cal *policy.Calendar, log *logger.Logger, opts Options) *Engine {
	if cal == nil {
		cal = policy.NewCalendar(nil, nil)
	}
	if log == nil {
		log = logger.Discard()
	}
	if opts.UsageTolerance <= 0 {
		opts.UsageTolerance = DefaultUsageTolerance
	}
	approval := NewDetector(models.ApprovedStatuses)
	if opts.ApproveRechecksPending {
		approval = NewDetector(models.OccupyingStatuses)
	}
	return &Engine{
		store:     st,
		calendar:  cal,
		log:       log,
		occupying: NewDetector(models.OccupyingStatuses),
		approval:  approval,
		tolerance: opts.UsageTolerance,
	}
}

// Calendar exposes the engine's clock and zone to the transport layer.
func (e *Engine) Calendar() *policy.Calendar {
	return e.calendar
}

type AvailabilityQuery struct {
	Date      string
	StartHour int
	EndHour   int
	PartySize int
}

type CreateRequest struct {
	RoomID    int64
	Date      string
	StartHour int
	EndHour   int
	Topic     string
	PartySize int
}

// AdminCreateRequest files a reservation on behalf of OwnerID. PartySize is
// optional for administrators; zero skips the capacity check.
type AdminCreateRequest struct {
	CreateRequest
	OwnerID      int64
	Status       models.Status
	RejectReason string
}

type RescheduleRequest struct {
	RoomID    int64
	Date      string
	StartHour int
	EndHour   int
}

type ListFilter struct {
	RoomID int64
	Date   string
	Status models.Status
}

// CheckAvailability validates the window and returns the rooms that look free.
func (e *Engine) CheckAvailability(ctx context.Context, caller models.Identity, q AvailabilityQuery) ([]models.RoomSummary, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if q.PartySize <= 0 {
		return nil, validationf("party size must be greater than 0")
	}
	if err := e.calendar.ValidateWindow(q.Date, q.StartHour, q.EndHour); err != nil {
		return nil, windowError(err)
	}

	rooms, err := FilterAvailableRooms(ctx, e.store, e.occupying, q.Date, q.StartHour, q.EndHour, q.PartySize)
	if err != nil {
		return nil, e.fail("check_availability", caller, 0, err)
	}
	e.log.Info("availability checked",
		logger.User(caller.UserID), logger.Date(q.Date), logger.Window(q.StartHour, q.EndHour), logger.Count(len(rooms)))
	return rooms, nil
}

// Create files a PENDING reservation owned by the caller. The conflict check
// and the insert run in one atomic unit, so of two racing callers exactly one
// wins and the other gets a Conflict.
func (e *Engine) Create(ctx context.Context, caller models.Identity, req CreateRequest) (*models.Reservation, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	if req.PartySize <= 0 {
		return nil, validationf("party size must be greater than 0")
	}
	if err := e.calendar.ValidateWindow(req.Date, req.StartHour, req.EndHour); err != nil {
		return nil, windowError(err)
	}

	res := e.newReservation(caller.UserID, req, models.StatusPending)
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		room, err := tx.LockRoom(ctx, req.RoomID)
		if err != nil {
			return roomLookupError(req.RoomID, err)
		}
		if !room.Available {
			return newError(KindNotFound, "room does not exist or is unavailable", nil)
		}
		if req.PartySize > room.Capacity {
			return validationf("room capacity %d is less than party size %d", room.Capacity, req.PartySize)
		}
		return e.insert(ctx, tx, caller, res)
	})
	if err != nil {
		return nil, e.fail(ActionCreate, caller, 0, err)
	}
	e.succeed(ActionCreate, caller, res)
	return res, nil
}

// AdminCreate files a reservation for any user, starting PENDING or APPROVED.
// Administrators may book rooms whose availability flag is off and hours that
// have already started today, but never an earlier day.
func (e *Engine) AdminCreate(ctx context.Context, caller models.Identity, req AdminCreateRequest) (*models.Reservation, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if req.OwnerID <= 0 {
		return nil, validationf("owner is required")
	}
	if req.Status == "" {
		req.Status = models.StatusPending
	}
	if err := creatable(req.Status, caller); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.RejectReason) != "" {
		return nil, validationf("reject reason is not allowed when creating a reservation")
	}
	if err := validateCreate(req.CreateRequest); err != nil {
		return nil, err
	}
	if req.PartySize < 0 {
		return nil, validationf("party size cannot be negative")
	}
	if err := policy.ValidateHours(req.StartHour, req.EndHour); err != nil {
		return nil, windowError(err)
	}
	if err := e.requireNotPast(req.Date); err != nil {
		return nil, err
	}

	if _, err := e.store.GetUser(ctx, req.OwnerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, fmt.Sprintf("user %d does not exist", req.OwnerID), nil)
		}
		return nil, e.fail(ActionCreate, caller, 0, err)
	}

	res := e.newReservation(req.OwnerID, req.CreateRequest, req.Status)
	if req.Status == models.StatusApproved {
		now := e.calendar.Now()
		res.ApproveTime = &now
		res.DecidedBy = caller.UserID
	}
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		room, err := tx.LockRoom(ctx, req.RoomID)
		if err != nil {
			return roomLookupError(req.RoomID, err)
		}
		if req.PartySize > 0 && req.PartySize > room.Capacity {
			return validationf("room capacity %d is less than party size %d", room.Capacity, req.PartySize)
		}
		return e.insert(ctx, tx, caller, res)
	})
	if err != nil {
		return nil, e.fail(ActionCreate, caller, 0, err)
	}
	e.succeed(ActionCreate, caller, res)
	return res, nil
}

func (e *Engine) newReservation(owner int64, req CreateRequest, status models.Status) *models.Reservation {
	now := e.calendar.Now()
	return &models.Reservation{
		UserID:    owner,
		RoomID:    req.RoomID,
		Date:      req.Date,
		StartHour: req.StartHour,
		EndHour:   req.EndHour,
		Topic:     strings.TrimSpace(req.Topic),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// insert must run after the room lock is held.
func (e *Engine) insert(ctx context.Context, tx store.Tx, caller models.Identity, res *models.Reservation) error {
	busy, err := e.occupying.HasConflict(ctx, tx, res.RoomID, res.Date, res.StartHour, res.EndHour, 0)
	if err != nil {
		return err
	}
	if busy {
		return newError(KindConflict, "time slot already taken", nil)
	}
	if err := tx.CreateReservation(ctx, res); err != nil {
		return err
	}
	return tx.AppendAudit(ctx, &models.AuditEntry{
		ReservationID: res.ID,
		ActorID:       caller.UserID,
		ActorRole:     caller.Role,
		Action:        ActionCreate,
		ToStatus:      res.Status,
		At:            res.CreatedAt,
	})
}

// Approve moves a PENDING reservation to APPROVED unless its date has passed
// or an approved reservation already holds an overlapping window. On failure
// the reservation stays PENDING.
func (e *Engine) Approve(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error) {
	return e.transition(ctx, caller, id, ActionApprove, "", func(tx store.Tx, res *models.Reservation, now time.Time) error {
		if err := e.requireNotPast(res.Date); err != nil {
			return err
		}
		if _, err := tx.LockRoom(ctx, res.RoomID); err != nil {
			return roomLookupError(res.RoomID, err)
		}
		busy, err := e.approval.HasConflict(ctx, tx, res.RoomID, res.Date, res.StartHour, res.EndHour, res.ID)
		if err != nil {
			return err
		}
		if busy {
			return newError(KindConflict, "an approved reservation already holds this time slot", nil)
		}
		res.ApproveTime = &now
		res.DecidedBy = caller.UserID
		return nil
	})
}

// Reject moves a PENDING reservation to REJECTED. The reason is mandatory and
// the decision time is recorded in ApproveTime.
func (e *Engine) Reject(ctx context.Context, caller models.Identity, id int64, reason string) (*models.Reservation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		return nil, validationf("reject reason is required")
	}
	return e.transition(ctx, caller, id, ActionReject, reason, func(_ store.Tx, res *models.Reservation, now time.Time) error {
		res.RejectReason = reason
		res.ApproveTime = &now
		res.DecidedBy = caller.UserID
		return nil
	})
}

// Cancel is allowed to the owner and to administrators, from PENDING or
// APPROVED. Who canceled is kept on the reservation and in its audit trail.
func (e *Engine) Cancel(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error) {
	return e.transition(ctx, caller, id, ActionCancel, "", func(_ store.Tx, res *models.Reservation, now time.Time) error {
		res.CanceledBy = caller.UserID
		res.CanceledAt = &now
		return nil
	})
}

// ConfirmUse marks an APPROVED reservation USED when called within the usage
// tolerance of its scheduled start.
func (e *Engine) ConfirmUse(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error) {
	return e.transition(ctx, caller, id, ActionConfirmUse, "", func(_ store.Tx, res *models.Reservation, now time.Time) error {
		start, err := e.calendar.ScheduledStart(res.Date, res.StartHour)
		if err != nil {
			return err
		}
		if !policy.WithinTolerance(now, start, e.tolerance) {
			return newError(KindOutOfWindow,
				fmt.Sprintf("usage can only be confirmed within %s of %s", e.tolerance, start.Format("2006-01-02 15:04")), nil)
		}
		return nil
	})
}

// Reschedule moves a PENDING or APPROVED reservation to another room, date
// or window, checking the new slot against everything except itself.
func (e *Engine) Reschedule(ctx context.Context, caller models.Identity, id int64, req RescheduleRequest) (*models.Reservation, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if req.RoomID <= 0 {
		return nil, validationf("room is required")
	}
	if err := policy.ValidateHours(req.StartHour, req.EndHour); err != nil {
		return nil, windowError(err)
	}
	if err := e.requireNotPast(req.Date); err != nil {
		return nil, err
	}

	var previous string
	res, err := e.transition(ctx, caller, id, ActionReschedule, "", func(tx store.Tx, res *models.Reservation, _ time.Time) error {
		if _, err := tx.LockRoom(ctx, req.RoomID); err != nil {
			return roomLookupError(req.RoomID, err)
		}
		busy, err := e.occupying.HasConflict(ctx, tx, req.RoomID, req.Date, req.StartHour, req.EndHour, res.ID)
		if err != nil {
			return err
		}
		if busy {
			return newError(KindConflict, "time slot already taken", nil)
		}
		previous = fmt.Sprintf("room %d on %s %s", res.RoomID, res.Date, res.TimeRange())
		res.RoomID = req.RoomID
		res.Date = req.Date
		res.StartHour = req.StartHour
		res.EndHour = req.EndHour
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug("reservation moved", logger.Reservation(res.ID), logger.F("FROM", previous))
	return res, nil
}

// transition is the single place a reservation's status changes. The
// reservation is locked, then the caller's authority and the lifecycle table
// are checked in that order, then apply runs its own preconditions and edits
// res before it is written back with an audit entry.
func (e *Engine) transition(ctx context.Context, caller models.Identity, id int64, action, reason string,
	apply func(tx store.Tx, res *models.Reservation, now time.Time) error) (*models.Reservation, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var out *models.Reservation
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		res, err := tx.LockReservation(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return newError(KindNotFound, fmt.Sprintf("reservation %d does not exist", id), nil)
			}
			return err
		}
		if err := authorize(action, caller, res); err != nil {
			return err
		}
		to, err := step(action, res)
		if err != nil {
			return err
		}

		now := e.calendar.Now()
		from := res.Status
		if err := apply(tx, res, now); err != nil {
			return err
		}
		res.Status = to
		res.UpdatedAt = now
		if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, &models.AuditEntry{
			ReservationID: res.ID,
			ActorID:       caller.UserID,
			ActorRole:     caller.Role,
			Action:        action,
			FromStatus:    from,
			ToStatus:      to,
			Reason:        reason,
			At:            now,
		}); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, e.fail(action, caller, id, err)
	}
	e.succeed(action, caller, out)
	return out, nil
}

// ListMine returns the caller's reservations, newest date and hour first.
func (e *Engine) ListMine(ctx context.Context, caller models.Identity) ([]models.ReservationView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	list, err := e.store.ListReservations(ctx, store.ReservationFilter{UserID: caller.UserID})
	if err != nil {
		return nil, e.fail("list_mine", caller, 0, err)
	}
	rooms, err := e.store.ListRooms(ctx, store.RoomFilter{})
	if err != nil {
		return nil, e.fail("list_mine", caller, 0, err)
	}
	names := make(map[int64]string, len(rooms))
	for _, r := range rooms {
		names[r.ID] = r.DisplayName()
	}

	views := make([]models.ReservationView, 0, len(list))
	for _, r := range list {
		views = append(views, models.ReservationView{
			ID:           r.ID,
			RoomID:       r.RoomID,
			Room:         names[r.RoomID],
			Date:         r.Date,
			StartHour:    r.StartHour,
			EndHour:      r.EndHour,
			Time:         r.TimeRange(),
			Topic:        r.Topic,
			Status:       r.Status,
			ApproveTime:  r.ApproveTime,
			RejectReason: r.RejectReason,
		})
	}
	return views, nil
}

// ListAll is the administrator's view of every reservation.
func (e *Engine) ListAll(ctx context.Context, caller models.Identity, f ListFilter) ([]*models.Reservation, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.IsValid() {
		return nil, validationf("unknown status %q", f.Status)
	}
	if f.Date != "" {
		if _, err := policy.ParseDate(f.Date, e.calendar.Location()); err != nil {
			return nil, windowError(err)
		}
	}
	list, err := e.store.ListReservations(ctx, store.ReservationFilter{RoomID: f.RoomID, Date: f.Date, Status: f.Status})
	if err != nil {
		return nil, e.fail("list_all", caller, 0, err)
	}
	return list, nil
}

// Audit returns the transitions recorded for a reservation, oldest first.
func (e *Engine) Audit(ctx context.Context, caller models.Identity, id int64) ([]*models.AuditEntry, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if _, err := e.store.GetReservation(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, fmt.Sprintf("reservation %d does not exist", id), nil)
		}
		return nil, e.fail("audit", caller, id, err)
	}
	entries, err := e.store.ListAudit(ctx, id)
	if err != nil {
		return nil, e.fail("audit", caller, id, err)
	}
	return entries, nil
}

func (e *Engine) requireNotPast(date string) error {
	ok, err := policy.NotBefore(date, e.calendar.Today())
	if err != nil {
		return windowError(err)
	}
	if !ok {
		return validationf("reservation date has already passed")
	}
	return nil
}

func (e *Engine) succeed(action string, caller models.Identity, res *models.Reservation) {
	e.log.Info("reservation "+action,
		logger.Action(action),
		logger.Reservation(res.ID),
		logger.Room(res.RoomID),
		logger.Date(res.Date),
		logger.Window(res.StartHour, res.EndHour),
		logger.Status(res.Status.String()),
		logger.User(caller.UserID),
		logger.Role(string(caller.Role)))
}

// fail classifies err and logs it. Domain errors pass through; anything else
// becomes Internal with the cause kept for the log only.
func (e *Engine) fail(action string, caller models.Identity, id int64, err error) error {
	var de *Error
	if !errors.As(err, &de) {
		de = newError(KindInternal, "internal error", err)
	}
	fields := []logger.Field{
		logger.Action(action),
		logger.User(caller.UserID),
		logger.Code(de.Kind.Code()),
	}
	if id != 0 {
		fields = append(fields, logger.Reservation(id))
	}
	if de.Kind == KindInternal {
		e.log.Error("reservation operation failed", append(fields, logger.Error(err))...)
	} else {
		e.log.Warn("reservation operation refused", append(fields, logger.Reason(de.Error()))...)
	}
	return de
}

func requireCaller(caller models.Identity) error {
	if caller.UserID == 0 {
		return newError(KindUnauthorized, "authentication required", nil)
	}
	return nil
}

func requireAdmin(caller models.Identity) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !caller.IsAdmin() {
		return newError(KindForbidden, "administrator privileges required", nil)
	}
	return nil
}

func validateCreate(req CreateRequest) error {
	if req.RoomID <= 0 {
		return validationf("room is required")
	}
	if strings.TrimSpace(req.Date) == "" {
		return validationf("date is required")
	}
	if strings.TrimSpace(req.Topic) == "" {
		return validationf("topic is required")
	}
	return nil
}

func roomLookupError(id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return newError(KindNotFound, fmt.Sprintf("room %d does not exist", id), nil)
	}
	return err
}

// windowError turns a calendar policy failure into a Validation error.
func windowError(err error) error {
	return &Error{Kind: KindValidation, Err: err}
}
