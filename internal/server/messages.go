package server

import (
	"encoding/json"
	"net/http"
	"time"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Intent *Intent `json:"intent,omitempty"`
	UserId string  `json:"-"`
	client *Client `json:"-"`
}

// Intent names a session operation. Args is decoded by the handler
// registered for Name.
type Intent struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response     `json:"response,omitempty"`
	State        *State        `json:"state,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	UserId       string        `json:"-"`
	SkipClient   *Client       `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// State carries the latest value of one session observable.
type State struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type Notification struct {
	BookingCreated *BookingCreated `json:"booking_created,omitempty"`
}

type BookingCreated struct {
	FarmId   string `json:"farm_id"`
	FarmName string `json:"farm_name"`
	GuestId  string `json:"guest_id"`
}

func (cm *ClientMessage) GetUserId() string {
	if cm.UserId != "" {
		return cm.UserId
	}
	if cm.client != nil && cm.client.session != nil {
		return cm.client.session.UserId()
	}
	return ""
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func StateChanged(name string, value any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		State: &State{
			Name:  name,
			Value: value,
		},
	}
}

func errResponse(id, code int, text string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        text,
		},
	}
}

func ErrNotFound(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "not found")
}

func ErrUnknownIntent(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "unknown intent")
}

func ErrUnauthorized(id int) *ServerMessage {
	return errResponse(id, http.StatusUnauthorized, "unauthorized")
}

func ErrIntentFailed(id int) *ServerMessage {
	return errResponse(id, http.StatusUnprocessableEntity, "intent failed")
}

func ErrInternalError(id int) *ServerMessage {
	return errResponse(id, http.StatusInternalServerError, "internal server error")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errResponse(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
