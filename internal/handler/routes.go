package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires every route. allowedOrigins empty means any origin.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(h.log))

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", func(c *gin.Context) { respondOK(c, "ok", nil) })

	api := r.Group("/api")
	{
		api.POST("/auth/login", h.Login)
		api.GET("/rooms", h.ListRooms)

		protected := api.Group("/")
		protected.Use(h.Auth())
		{
			protected.POST("/auth/logout", h.Logout)

			protected.POST("/reservations/check", h.CheckAvailability)
			protected.POST("/reservations/create", h.CreateReservation)
			protected.GET("/reservations/my", h.MyReservations)
			protected.POST("/reservations/my", h.MyReservations)
			protected.POST("/reservations/:id/cancel", h.Cancel)
			protected.POST("/reservations/:id/confirm", h.ConfirmUse)

			admin := protected.Group("/admin")
			admin.Use(AdminOnly())
			{
				admin.GET("/reservations", h.ListAll)
				admin.POST("/reservations", h.AdminCreate)
				admin.POST("/reservations/:id/approve", h.Approve)
				admin.POST("/reservations/:id/reject", h.Reject)
				admin.POST("/reservations/:id/reschedule", h.Reschedule)
				admin.GET("/reservations/:id/audit", h.Audit)
			}
		}
	}
	return r
}
