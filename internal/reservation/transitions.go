package reservation

import (
	"fmt"

	"github.com/coordinate-system/meeting-system/internal/models"
)

// Actor says whose authority a transition needs.
type Actor int

const (
	ActorAdmin Actor = 1 << iota
	ActorOwner

	ActorOwnerOrAdmin = ActorOwner | ActorAdmin
)

// Transition is one edge of the lifecycle.
type Transition struct {
	Action string
	From   models.Status
	To     models.Status
	Who    Actor
}

const (
	ActionCreate     = "create"
	ActionApprove    = "approve"
	ActionReject     = "reject"
	ActionCancel     = "cancel"
	ActionConfirmUse = "confirm_use"
	ActionReschedule = "reschedule"
)

// transitions is the whole state machine. Every status change made by the
// engine is looked up here first; anything missing is illegal.
var transitions = []Transition{
	{ActionApprove, models.StatusPending, models.StatusApproved, ActorAdmin},
	{ActionReject, models.StatusPending, models.StatusRejected, ActorAdmin},
	{ActionCancel, models.StatusPending, models.StatusCanceled, ActorOwnerOrAdmin},
	{ActionCancel, models.StatusApproved, models.StatusCanceled, ActorOwnerOrAdmin},
	{ActionConfirmUse, models.StatusApproved, models.StatusUsed, ActorOwnerOrAdmin},
	// Rescheduling keeps the status; it only moves the window.
	{ActionReschedule, models.StatusPending, models.StatusPending, ActorAdmin},
	{ActionReschedule, models.StatusApproved, models.StatusApproved, ActorAdmin},
}

// lookup finds the edge for action out of from.
func lookup(action string, from models.Status) (Transition, bool) {
	for _, t := range transitions {
		if t.Action == action && t.From == from {
			return t, true
		}
	}
	return Transition{}, false
}

// authorize reports whether caller may perform an edge on res. Who may act
// depends only on the action, not on the current status.
func authorize(action string, caller models.Identity, res *models.Reservation) error {
	var who Actor
	for _, t := range transitions {
		if t.Action == action {
			who = t.Who
			break
		}
	}
	if who&ActorAdmin != 0 && caller.IsAdmin() {
		return nil
	}
	if who&ActorOwner != 0 && caller.UserID == res.UserID {
		return nil
	}
	if who == ActorAdmin {
		return newError(KindForbidden, "administrator privileges required", nil)
	}
	return newError(KindForbidden, "only the owner or an administrator may do this", nil)
}

// step checks that action is legal out of res's current status and returns
// the target status.
func step(action string, res *models.Reservation) (models.Status, error) {
	if res.Status.Terminal() {
		return "", newError(KindIllegalTransition,
			fmt.Sprintf("reservation is already %s", res.Status), nil)
	}
	t, ok := lookup(action, res.Status)
	if !ok {
		return "", newError(KindIllegalTransition,
			fmt.Sprintf("cannot %s a %s reservation", action, res.Status), nil)
	}
	return t.To, nil
}

// creatable checks the status a new reservation starts in.
func creatable(status models.Status, caller models.Identity) error {
	switch status {
	case models.StatusPending:
		return nil
	case models.StatusApproved:
		if !caller.IsAdmin() {
			return newError(KindForbidden, "only an administrator may create an approved reservation", nil)
		}
		return nil
	default:
		return validationf("a reservation cannot be created as %s", status)
	}
}
