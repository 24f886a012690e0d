package reservation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := newError(KindConflict, "room 5 is taken", nil)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrValidation)

	wrapped := fmt.Errorf("create: %w", err)
	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, KindConflict, KindOf(wrapped))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := newError(KindInternal, "internal error", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error: disk full", err.Error())
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestKindCodes(t *testing.T) {
	tests := []struct {
		kind Kind
		code int
		name string
	}{
		{KindValidation, 400, "validation"},
		{KindUnauthorized, 401, "unauthorized"},
		{KindForbidden, 403, "forbidden"},
		{KindNotFound, 404, "not_found"},
		{KindConflict, 409, "conflict"},
		{KindOutOfWindow, 412, "out_of_window"},
		{KindIllegalTransition, 422, "illegal_transition"},
		{KindInternal, 500, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.kind.Code())
			assert.Equal(t, tt.name, tt.kind.String())
		})
	}
}

func TestMessageHidesInternalDetail(t *testing.T) {
	assert.Equal(t, "internal error", Message(newError(KindInternal, "internal error", errors.New("dsn=secret"))))
	assert.Equal(t, "internal error", Message(errors.New("raw")))
	assert.Equal(t, "time slot already taken", Message(ErrConflict))
	assert.Equal(t, "bad date", Message(&Error{Kind: KindValidation, Err: errors.New("bad date")}))
}
