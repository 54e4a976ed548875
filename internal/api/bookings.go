package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/npezzotti/go-agritour/internal/booking"
	"github.com/npezzotti/go-agritour/internal/types"
)

type BookingTabs struct {
	Upcoming []types.Booking `json:"upcoming"`
	Past     []types.Booking `json:"past"`
}

func (s *AgriTourApp) createBooking(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var params booking.CreateParams
	if err := s.decodeRequest(r, &params); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	b, err := s.svc.Bookings.Create(userId, params)
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, booking.ErrInvalidBooking):
			errResp = NewBadRequestError()
		case errors.Is(err, sql.ErrNoRows):
			errResp = NewNotFoundError()
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, b)
}

// myBookings lists the caller's bookings. With ?tab=upcoming or ?tab=past
// it returns only that tab.
func (s *AgriTourApp) myBookings(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	bookings, err := s.svc.Bookings.ListForUser(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upcoming, past := booking.Partition(bookings)
	switch r.URL.Query().Get("tab") {
	case "":
		s.writeJson(w, http.StatusOK, bookings)
	case "upcoming":
		s.writeJson(w, http.StatusOK, upcoming)
	case "past":
		s.writeJson(w, http.StatusOK, past)
	case "all":
		s.writeJson(w, http.StatusOK, BookingTabs{Upcoming: upcoming, Past: past})
	default:
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
	}
}

func (s *AgriTourApp) incomingBookings(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	bookings, err := s.svc.Bookings.ListForOwner(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, bookings)
}

func (s *AgriTourApp) revenue(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	bookings, err := s.svc.Bookings.ListForOwner(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, booking.Revenue(bookings))
}

// ownedBooking loads the booking in the path and checks that the caller is
// its guest or the farm owner. On failure it writes the error response and
// returns false.
func (s *AgriTourApp) ownedBooking(w http.ResponseWriter, r *http.Request) (types.Booking, bool) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return types.Booking{}, false
	}

	b, err := s.svc.Bookings.Get(r.PathValue("id"))
	if err != nil {
		errResp := notFoundOrInternal(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return types.Booking{}, false
	}

	if b.UserId != userId && b.FarmOwnerId != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return types.Booking{}, false
	}

	return b, true
}

func (s *AgriTourApp) getBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := s.ownedBooking(w, r)
	if !ok {
		return
	}

	s.writeJson(w, http.StatusOK, b)
}

func (s *AgriTourApp) cancelBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := s.ownedBooking(w, r)
	if !ok {
		return
	}

	cancelled, err := s.svc.Bookings.Cancel(b.Id)
	if err != nil {
		errResp := notFoundOrInternal(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, cancelled)
}
