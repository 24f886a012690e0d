package reservation

import (
	"testing"

	"github.com/coordinate-system/meeting-system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, tr := range transitions {
		assert.False(t, tr.From.Terminal(), "%s leaves terminal status %s", tr.Action, tr.From)
		assert.True(t, tr.To.IsValid())
	}
	for _, s := range []models.Status{models.StatusRejected, models.StatusCanceled, models.StatusUsed} {
		for _, action := range []string{ActionApprove, ActionReject, ActionCancel, ActionConfirmUse, ActionReschedule} {
			_, ok := lookup(action, s)
			assert.False(t, ok, "%s out of %s", action, s)
		}
	}
}

func TestStep(t *testing.T) {
	tests := []struct {
		action string
		from   models.Status
		to     models.Status
		legal  bool
	}{
		{ActionApprove, models.StatusPending, models.StatusApproved, true},
		{ActionReject, models.StatusPending, models.StatusRejected, true},
		{ActionCancel, models.StatusPending, models.StatusCanceled, true},
		{ActionCancel, models.StatusApproved, models.StatusCanceled, true},
		{ActionConfirmUse, models.StatusApproved, models.StatusUsed, true},
		{ActionConfirmUse, models.StatusPending, "", false},
		{ActionApprove, models.StatusApproved, "", false},
		{ActionReject, models.StatusApproved, "", false},
		{ActionCancel, models.StatusCanceled, "", false},
		{ActionCancel, models.StatusUsed, "", false},
		{ActionReschedule, models.StatusRejected, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.action+" from "+string(tt.from), func(t *testing.T) {
			to, err := step(tt.action, &models.Reservation{Status: tt.from})
			if !tt.legal {
				assert.ErrorIs(t, err, ErrIllegalTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestStep_TerminalStatusMessage(t *testing.T) {
	for _, s := range []models.Status{models.StatusRejected, models.StatusCanceled, models.StatusUsed} {
		_, err := step(ActionCancel, &models.Reservation{Status: s})
		require.ErrorIs(t, err, ErrIllegalTransition)
		assert.Equal(t, "reservation is already "+string(s), Message(err))
	}

	_, err := step(ActionConfirmUse, &models.Reservation{Status: models.StatusPending})
	assert.Equal(t, "cannot confirm_use a PENDING reservation", Message(err))
}

func TestAuthorize(t *testing.T) {
	res := &models.Reservation{UserID: 2}
	owner := models.Identity{UserID: 2, Role: models.RoleUser}
	stranger := models.Identity{UserID: 3, Role: models.RoleUser}
	admin := models.Identity{UserID: 1, Role: models.RoleAdmin}

	assert.NoError(t, authorize(ActionCancel, owner, res))
	assert.NoError(t, authorize(ActionCancel, admin, res))
	assert.ErrorIs(t, authorize(ActionCancel, stranger, res), ErrForbidden)

	assert.NoError(t, authorize(ActionConfirmUse, owner, res))
	assert.ErrorIs(t, authorize(ActionConfirmUse, stranger, res), ErrForbidden)

	assert.NoError(t, authorize(ActionApprove, admin, res))
	assert.ErrorIs(t, authorize(ActionApprove, owner, res), ErrForbidden)
	assert.ErrorIs(t, authorize(ActionReject, owner, res), ErrForbidden)
	assert.ErrorIs(t, authorize(ActionReschedule, owner, res), ErrForbidden)
}

func TestCreatable(t *testing.T) {
	user := models.Identity{UserID: 2, Role: models.RoleUser}
	admin := models.Identity{UserID: 1, Role: models.RoleAdmin}

	assert.NoError(t, creatable(models.StatusPending, user))
	assert.NoError(t, creatable(models.StatusApproved, admin))
	assert.ErrorIs(t, creatable(models.StatusApproved, user), ErrForbidden)
	for _, s := range []models.Status{models.StatusRejected, models.StatusCanceled, models.StatusUsed, "BOGUS"} {
		assert.ErrorIs(t, creatable(s, admin), ErrValidation, s)
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name           string
		s1, e1, s2, e2 int
		want           bool
	}{
		{"touching end", 9, 12, 12, 15, false},
		{"touching start", 12, 15, 9, 12, false},
		{"partial", 9, 11, 10, 12, true},
		{"contains", 8, 16, 10, 11, true},
		{"contained", 10, 11, 8, 16, true},
		{"identical", 9, 10, 9, 10, true},
		{"disjoint", 1, 2, 5, 6, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.s1, tt.e1, tt.s2, tt.e2))
			assert.Equal(t, tt.want, Overlaps(tt.s2, tt.e2, tt.s1, tt.e1))
		})
	}
}
