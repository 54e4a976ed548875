// Package booking implements the reservation lifecycle:
//
//	Pending -> Confirmed
//	Pending | Confirmed -> Cancelled
//
// Cancelled is terminal. Nothing in the service moves a reservation to
// Confirmed or Completed.
package booking

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/npezzotti/go-agritour/internal/database"
	"github.com/npezzotti/go-agritour/internal/stats"
	"github.com/npezzotti/go-agritour/internal/types"
)

const (
	MetricBookingsCreated   = "BookingsCreated"
	MetricBookingsCancelled = "BookingsCancelled"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidBooking   = errors.New("invalid booking")
)

type Repository interface {
	GetFarmById(farmId string) (database.Farm, error)
	CreateBooking(params database.CreateBookingParams) (database.Booking, error)
	GetBookingById(bookingId string) (database.Booking, error)
	ListBookingsByUser(userId string) ([]database.Booking, error)
	ListBookingsByOwner(ownerId string) ([]database.Booking, error)
	UpdateBookingStatus(bookingId, status string) error
}

type CreateParams struct {
	FarmId        string  `json:"farm_id" validate:"required"`
	Date          string  `json:"date" validate:"required"`
	Time          string  `json:"time" validate:"required"`
	GroupSize     int     `json:"group_size" validate:"gte=1"`
	TotalPrice    float64 `json:"total_price" validate:"gte=0"`
	PaymentMethod string  `json:"payment_method"`
}

type Service struct {
	log      *log.Logger
	db       Repository
	stats    stats.StatsProvider
	validate *validator.Validate
	now      func() time.Time
}

func NewService(logger *log.Logger, db Repository, su stats.StatsProvider) *Service {
	su.RegisterMetric(MetricBookingsCreated)
	su.RegisterMetric(MetricBookingsCancelled)

	return &Service{
		log:      logger,
		db:       db,
		stats:    su,
		validate: validator.New(),
		now:      time.Now,
	}
}

func FromModel(b database.Booking) types.Booking {
	return types.Booking{
		Id:            b.Id,
		FarmId:        b.FarmId,
		FarmName:      b.FarmName,
		UserId:        b.UserId,
		FarmOwnerId:   b.FarmOwnerId,
		Date:          b.Date,
		Time:          b.Time,
		GroupSize:     b.GroupSize,
		TotalPrice:    b.TotalPrice,
		Status:        types.BookingStatus(b.Status),
		PaymentMethod: b.PaymentMethod,
		Timestamp:     b.CreatedMs,
	}
}

func FromModels(bs []database.Booking) []types.Booking {
	out := make([]types.Booking, len(bs))
	for i, b := range bs {
		out[i] = FromModel(b)
	}
	return out
}

// Create books a visit for userId. An empty userId fails with
// ErrNotAuthenticated before anything is written.
func (s *Service) Create(userId string, params CreateParams) (types.Booking, error) {
	if userId == "" {
		return types.Booking{}, ErrNotAuthenticated
	}

	if err := s.validate.Struct(params); err != nil {
		return types.Booking{}, fmt.Errorf("%w: %v", ErrInvalidBooking, err)
	}

	farm, err := s.db.GetFarmById(params.FarmId)
	if err != nil {
		return types.Booking{}, fmt.Errorf("get farm: %w", err)
	}

	total := params.TotalPrice
	if total == 0 {
		total = float64(params.GroupSize) * farm.Price
	}

	dbBooking, err := s.db.CreateBooking(database.CreateBookingParams{
		FarmId:        farm.Id,
		FarmName:      farm.Name,
		UserId:        userId,
		FarmOwnerId:   farm.OwnerId,
		Date:          params.Date,
		Time:          params.Time,
		GroupSize:     params.GroupSize,
		TotalPrice:    total,
		Status:        string(types.StatusPending),
		PaymentMethod: params.PaymentMethod,
		CreatedMs:     s.now().UnixMilli(),
	})
	if err != nil {
		return types.Booking{}, fmt.Errorf("create booking: %w", err)
	}

	s.stats.Incr(MetricBookingsCreated)
	s.log.Printf("user %q booked farm %q", userId, farm.Id)

	return FromModel(dbBooking), nil
}

// Cancel sets the status to Cancelled. Cancelling twice writes the same
// value again.
func (s *Service) Cancel(bookingId string) (types.Booking, error) {
	if err := s.db.UpdateBookingStatus(bookingId, string(types.StatusCancelled)); err != nil {
		return types.Booking{}, fmt.Errorf("cancel booking: %w", err)
	}

	s.stats.Incr(MetricBookingsCancelled)

	return s.Get(bookingId)
}

func (s *Service) Get(bookingId string) (types.Booking, error) {
	b, err := s.db.GetBookingById(bookingId)
	if err != nil {
		return types.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return FromModel(b), nil
}

func (s *Service) ListForUser(userId string) ([]types.Booking, error) {
	bs, err := s.db.ListBookingsByUser(userId)
	if err != nil {
		return nil, fmt.Errorf("list bookings for user: %w", err)
	}
	return FromModels(bs), nil
}

func (s *Service) ListForOwner(ownerId string) ([]types.Booking, error) {
	bs, err := s.db.ListBookingsByOwner(ownerId)
	if err != nil {
		return nil, fmt.Errorf("list bookings for owner: %w", err)
	}
	return FromModels(bs), nil
}

// Revenue sums the price of every booking that was not cancelled. Guests
// and the booking count include cancelled bookings.
func Revenue(bookings []types.Booking) types.Revenue {
	var r types.Revenue
	for _, b := range bookings {
		if b.Status != types.StatusCancelled {
			r.TotalRevenue += b.TotalPrice
		}
		r.TotalGuests += b.GroupSize
	}
	r.BookingCount = len(bookings)
	return r
}

// Partition splits bookings into upcoming (Pending, Confirmed) and past
// (Cancelled, Completed) trips.
func Partition(bookings []types.Booking) (upcoming, past []types.Booking) {
	upcoming = make([]types.Booking, 0)
	past = make([]types.Booking, 0)
	for _, b := range bookings {
		switch b.Status {
		case types.StatusPending, types.StatusConfirmed:
			upcoming = append(upcoming, b)
		case types.StatusCancelled, types.StatusCompleted:
			past = append(past, b)
		}
	}
	return upcoming, past
}
