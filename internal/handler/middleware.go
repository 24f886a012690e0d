package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/coordinate-system/meeting-system/internal/logger"
	"github.com/coordinate-system/meeting-system/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxRequestID = "request_id"
	ctxIdentity  = "identity"
	ctxToken     = "token"

	headerRequestID = "X-Request-ID"
)

// RequestID tags every request with an id, reusing a sane inbound one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// AccessLog writes one line per request.
func AccessLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.RequestID(requestID(c)),
			logger.F("METHOD", c.Request.Method),
			logger.Path(c.Request.URL.Path),
			logger.Code(c.Writer.Status()),
			logger.LatencyMS(time.Since(start).Milliseconds()),
		}
		if id, ok := identity(c); ok {
			fields = append(fields, logger.User(id.UserID))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

// Auth requires a valid Bearer token and stores the caller's identity.
func (h *Handler) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			respondCode(c, http.StatusUnauthorized, "authorization required")
			return
		}
		id, err := h.sessions.ValidateToken(c.Request.Context(), token)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Set(ctxIdentity, id)
		c.Set(ctxToken, token)
		c.Next()
	}
}

// AdminOnly must run after Auth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok || !id.IsAdmin() {
			respondCode(c, http.StatusForbidden, "administrator privileges required")
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func identity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}

func requestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}
