// Package mq carries reservation commands over AMQP. Every command names its
// type, the caller's access token and a JSON payload; every reply uses the
// same {code,msg,data} envelope as the HTTP API.
package mq

import "encoding/json"

type CommandType string

const (
	CommandCheckAvailability  CommandType = "CheckAvailability"
	CommandCreateReservation  CommandType = "CreateReservation"
	CommandListMyReservations CommandType = "ListMyReservations"
	CommandCancelReservation  CommandType = "CancelReservation"
	CommandConfirmUse         CommandType = "ConfirmUse"
	CommandApproveReservation CommandType = "ApproveReservation"
	CommandRejectReservation  CommandType = "RejectReservation"
)

type Command struct {
	Type    CommandType     `json:"type"`
	Token   string          `json:"token"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type CheckAvailabilityPayload struct {
	Date      string `json:"date"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
	People    int    `json:"people"`
}

type CreateReservationPayload struct {
	RoomID    int64  `json:"room_id"`
	Date      string `json:"date"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
	Topic     string `json:"topic"`
	People    int    `json:"people"`
}

type ReservationPayload struct {
	ReservationID int64 `json:"reservation_id"`
}

type RejectPayload struct {
	ReservationID int64  `json:"reservation_id"`
	Reason        string `json:"reason"`
}

type Reply struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}
