package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coordinate-system/meeting-system/internal/directory"
	"github.com/coordinate-system/meeting-system/internal/logger"
	"github.com/coordinate-system/meeting-system/internal/models"
	"github.com/coordinate-system/meeting-system/internal/reservation"
)

// Reservations is the subset of the engine reachable over the queue.
type Reservations interface {
	CheckAvailability(ctx context.Context, caller models.Identity, q reservation.AvailabilityQuery) ([]models.RoomSummary, error)
	Create(ctx context.Context, caller models.Identity, req reservation.CreateRequest) (*models.Reservation, error)
	ListMine(ctx context.Context, caller models.Identity) ([]models.ReservationView, error)
	Cancel(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error)
	ConfirmUse(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error)
	Approve(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error)
	Reject(ctx context.Context, caller models.Identity, id int64, reason string) (*models.Reservation, error)
}

type TokenValidator interface {
	ValidateToken(ctx context.Context, raw string) (models.Identity, error)
}

type Dispatcher struct {
	reservations Reservations
	tokens       TokenValidator
	log          *logger.Logger
}

func NewDispatcher(reservations Reservations, tokens TokenValidator, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Discard()
	}
	return &Dispatcher{reservations: reservations, tokens: tokens, log: log}
}

// Dispatch decodes one message body, runs the command and returns the reply.
// It never fails; every problem is expressed as a non-zero reply code.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) Reply {
	var cmd Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return Reply{Code: http.StatusBadRequest, Msg: "invalid command format"}
	}
	if cmd.Token == "" {
		return Reply{Code: http.StatusUnauthorized, Msg: "authorization required"}
	}
	caller, err := d.tokens.ValidateToken(ctx, cmd.Token)
	if err != nil {
		return d.errorReply(cmd.Type, err)
	}

	data, msg, err := d.run(ctx, caller, cmd)
	if err != nil {
		return d.errorReply(cmd.Type, err)
	}
	return Reply{Code: 0, Msg: msg, Data: data}
}

func (d *Dispatcher) run(ctx context.Context, caller models.Identity, cmd Command) (any, string, error) {
	switch cmd.Type {
	case CommandCheckAvailability:
		var p CheckAvailabilityPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, "", err
		}
		rooms, err := d.reservations.CheckAvailability(ctx, caller, reservation.AvailabilityQuery{
			Date: p.Date, StartHour: p.StartHour, EndHour: p.EndHour, PartySize: p.People,
		})
		return rooms, "ok", err

	case CommandCreateReservation:
		var p CreateReservationPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, "", err
		}
		res, err := d.reservations.Create(ctx, caller, reservation.CreateRequest{
			RoomID: p.RoomID, Date: p.Date, StartHour: p.StartHour, EndHour: p.EndHour, Topic: p.Topic, PartySize: p.People,
		})
		return res, "reservation submitted, awaiting approval", err

	case CommandListMyReservations:
		views, err := d.reservations.ListMine(ctx, caller)
		return views, "ok", err

	case CommandCancelReservation:
		return d.byID(ctx, caller, cmd.Payload, "reservation canceled", d.reservations.Cancel)
	case CommandConfirmUse:
		return d.byID(ctx, caller, cmd.Payload, "usage confirmed", d.reservations.ConfirmUse)
	case CommandApproveReservation:
		return d.byID(ctx, caller, cmd.Payload, "reservation approved", d.reservations.Approve)

	case CommandRejectReservation:
		var p RejectPayload
		if err := decode(cmd.Payload, &p); err != nil {
			return nil, "", err
		}
		res, err := d.reservations.Reject(ctx, caller, p.ReservationID, p.Reason)
		return res, "reservation rejected", err

	default:
		return nil, "", &reservation.Error{Kind: reservation.KindValidation, Msg: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}

func (d *Dispatcher) byID(ctx context.Context, caller models.Identity, raw json.RawMessage, msg string,
	op func(context.Context, models.Identity, int64) (*models.Reservation, error)) (any, string, error) {
	var p ReservationPayload
	if err := decode(raw, &p); err != nil {
		return nil, "", err
	}
	if p.ReservationID <= 0 {
		return nil, "", &reservation.Error{Kind: reservation.KindValidation, Msg: "reservation_id is required"}
	}
	res, err := op(ctx, caller, p.ReservationID)
	return res, msg, err
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return &reservation.Error{Kind: reservation.KindValidation, Msg: "payload is required"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &reservation.Error{Kind: reservation.KindValidation, Msg: "invalid payload"}
	}
	return nil
}

func (d *Dispatcher) errorReply(cmd CommandType, err error) Reply {
	if errors.Is(err, directory.ErrInvalidToken) || errors.Is(err, directory.ErrTokenRevoked) {
		return Reply{Code: http.StatusUnauthorized, Msg: err.Error()}
	}
	kind := reservation.KindOf(err)
	if kind == reservation.KindInternal {
		d.log.Error("command failed", logger.Command(string(cmd)), logger.Error(err))
	}
	return Reply{Code: kind.Code(), Msg: reservation.Message(err)}
}
