package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/npezzotti/go-agritour/internal/database"
	"github.com/stretchr/testify/assert"
)

func TestGetUserId(t *testing.T) {
	t.Run("extracts id from UserId", func(t *testing.T) {
		cm := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			UserId:      "user-42",
		}

		assert.Equal(t, "user-42", cm.GetUserId(), "expected UserId to be returned directly")
	})

	t.Run("extracts id from client session", func(t *testing.T) {
		cm := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			client:      &Client{session: newTestSession(t, &database.MockAgriTourRepository{}, "user-42")},
		}

		assert.Equal(t, "user-42", cm.GetUserId(), "expected UserId to be extracted from client session")
	})

	t.Run("empty without client", func(t *testing.T) {
		cm := &ClientMessage{}
		assert.Empty(t, cm.GetUserId())
	})
}

func TestNoErrOk(t *testing.T) {
	data := map[string]any{"testkey": "testvalue"}
	result := NoErrOK(1, data)

	assert.NotNil(t, result.Response, "expected response to be non-nil")
	assert.Equal(t, 1, result.Id, "expected Id to match")
	assert.WithinDuration(t, Now(), result.Timestamp, time.Second, "expected Timestamp to be within 1 second")
	assert.Equal(t, http.StatusOK, result.Response.ResponseCode, "expected ResponseCode to match")
	assert.Equal(t, data, result.Response.Data, "expected Data to match")
}

func TestNoErrAccepted(t *testing.T) {
	result := NoErrAccepted(1)

	assert.NotNil(t, result.Response, "expected response to be non-nil")
	assert.Equal(t, 1, result.Id, "expected Id to match")
	assert.Equal(t, http.StatusAccepted, result.Response.ResponseCode, "expected ResponseCode to match")
	assert.Empty(t, result.Response.Error)
}

func TestStateChanged(t *testing.T) {
	result := StateChanged("farms", []string{"a"})

	assert.Nil(t, result.Response, "expected state frames to carry no response")
	assert.Zero(t, result.Id, "expected state frames to carry no request id")
	assert.Equal(t, "farms", result.State.Name)
	assert.Equal(t, []string{"a"}, result.State.Value)
}

func TestErrorResponses(t *testing.T) {
	tcases := []struct {
		name         string
		fn           func(int) *ServerMessage
		expectedCode int
		expectedErr  string
	}{
		{"not found", ErrNotFound, http.StatusNotFound, "not found"},
		{"unknown intent", ErrUnknownIntent, http.StatusNotFound, "unknown intent"},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"intent failed", ErrIntentFailed, http.StatusUnprocessableEntity, "intent failed"},
		{"internal error", ErrInternalError, http.StatusInternalServerError, "internal server error"},
		{"service unavailable", ErrServiceUnavailable, http.StatusServiceUnavailable, "service unavailable"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			result := tc.fn(7)

			assert.NotNil(t, result.Response, "expected response to be non-nil")
			assert.Equal(t, 7, result.Id, "expected Id to match")
			assert.WithinDuration(t, Now(), result.Timestamp, time.Second, "expected Timestamp to be within 1 second")
			assert.Equal(t, tc.expectedCode, result.Response.ResponseCode, "expected ResponseCode to match")
			assert.Equal(t, tc.expectedErr, result.Response.Error, "expected Error message to match")
		})
	}
}

func TestErrorInvalidMessage(t *testing.T) {
	result := ErrInvalidMessage(0)
	assert.Equal(t, 0, result.Id, "expected Id to be zero")
	assert.Equal(t, http.StatusBadRequest, result.Response.ResponseCode, "expected ResponseCode to match")
	assert.Equal(t, "invalid message format", result.Response.Error, "expected Error message to match")

	resultWithId := ErrInvalidMessage(42)
	assert.Equal(t, 42, resultWithId.Id, "expected Id to match")

	resultNegative := ErrInvalidMessage(-1)
	assert.Equal(t, 0, resultNegative.Id, "expected negative Id to be dropped")
}
