package handler

import (
	"reflect"
	"strings"
	"sync"

	"github.com/coordinate-system/meeting-system/internal/models"
	"github.com/coordinate-system/meeting-system/internal/reservation"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type loginRequest struct {
	Username string `json:"username" binding:"required,max=150"`
	Password string `json:"password" binding:"required"`
}

// Hours are pointers so that 0 passes "required".
type availabilityRequest struct {
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	StartHour *int   `json:"start_hour" binding:"required,min=0,max=24"`
	EndHour   *int   `json:"end_hour" binding:"required,min=0,max=24"`
	People    int    `json:"people" binding:"required,gt=0"`
}

func (r availabilityRequest) query() reservation.AvailabilityQuery {
	return reservation.AvailabilityQuery{Date: r.Date, StartHour: *r.StartHour, EndHour: *r.EndHour, PartySize: r.People}
}

type createRequest struct {
	RoomID    int64  `json:"room_id" binding:"required,gt=0"`
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	StartHour *int   `json:"start_hour" binding:"required,min=0,max=24"`
	EndHour   *int   `json:"end_hour" binding:"required,min=0,max=24"`
	Topic     string `json:"topic" binding:"required,max=255"`
	People    int    `json:"people" binding:"required,gt=0"`
}

func (r createRequest) toDomain() reservation.CreateRequest {
	return reservation.CreateRequest{
		RoomID:    r.RoomID,
		Date:      r.Date,
		StartHour: *r.StartHour,
		EndHour:   *r.EndHour,
		Topic:     r.Topic,
		PartySize: r.People,
	}
}

type adminCreateRequest struct {
	OwnerID      int64  `json:"owner_id" binding:"required,gt=0"`
	RoomID       int64  `json:"room_id" binding:"required,gt=0"`
	Date         string `json:"date" binding:"required,datetime=2006-01-02"`
	StartHour    *int   `json:"start_hour" binding:"required,min=0,max=24"`
	EndHour      *int   `json:"end_hour" binding:"required,min=0,max=24"`
	Topic        string `json:"topic" binding:"required,max=255"`
	People       int    `json:"people" binding:"min=0"`
	Status       string `json:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED CANCELED USED"`
	RejectReason string `json:"reject_reason"`
}

func (r adminCreateRequest) toDomain() reservation.AdminCreateRequest {
	return reservation.AdminCreateRequest{
		CreateRequest: reservation.CreateRequest{
			RoomID:    r.RoomID,
			Date:      r.Date,
			StartHour: *r.StartHour,
			EndHour:   *r.EndHour,
			Topic:     r.Topic,
			PartySize: r.People,
		},
		OwnerID:      r.OwnerID,
		Status:       models.Status(r.Status),
		RejectReason: r.RejectReason,
	}
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

type rescheduleRequest struct {
	RoomID    int64  `json:"room_id" binding:"required,gt=0"`
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	StartHour *int   `json:"start_hour" binding:"required,min=0,max=24"`
	EndHour   *int   `json:"end_hour" binding:"required,min=0,max=24"`
}

func (r rescheduleRequest) toDomain() reservation.RescheduleRequest {
	return reservation.RescheduleRequest{RoomID: r.RoomID, Date: r.Date, StartHour: *r.StartHour, EndHour: *r.EndHour}
}

type listQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED CANCELED USED"`
	Date   string `form:"date" binding:"omitempty,datetime=2006-01-02"`
	RoomID int64  `form:"room_id" binding:"omitempty,gt=0"`
}

type idParam struct {
	ID int64 `uri:"id" binding:"required,gt=0"`
}

type createdResponse struct {
	ID     int64         `json:"id"`
	Status models.Status `json:"status"`
}

var registerOnce sync.Once

// useJSONFieldNames makes validation errors name fields as clients send them.
func useJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form", "uri"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	})
}
