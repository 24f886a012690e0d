package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coordinate-system/meeting-system/internal/directory"
	"github.com/coordinate-system/meeting-system/internal/logger"
	"github.com/coordinate-system/meeting-system/internal/reservation"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// CodeOK is the envelope code of every successful response.
const CodeOK = 0

// Envelope is the shape of every response body.
type Envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

func respondOK(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, Envelope{Code: CodeOK, Msg: msg, Data: data})
}

func respondCode(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, Envelope{Code: code, Msg: msg})
}

// respondError converts any error into the envelope. Internal failures are
// logged with their cause and answered with an opaque message.
func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, directory.ErrInvalidCredentials) ||
		errors.Is(err, directory.ErrInvalidToken) ||
		errors.Is(err, directory.ErrTokenRevoked) {
		respondCode(c, http.StatusUnauthorized, err.Error())
		return
	}

	kind := reservation.KindOf(err)
	if kind == reservation.KindInternal {
		h.log.Error("request failed",
			logger.RequestID(requestID(c)),
			logger.Path(c.FullPath()),
			logger.Error(err))
	}
	respondCode(c, kind.Code(), reservation.Message(err))
}

// bindError answers a request whose body or parameters failed to bind.
func bindError(c *gin.Context, err error) {
	respondCode(c, http.StatusBadRequest, describeBindError(err))
}

func describeBindError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "malformed request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeField(fe))
	}
	return strings.Join(msgs, "; ")
}

func describeField(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be formatted as YYYY-MM-DD", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
