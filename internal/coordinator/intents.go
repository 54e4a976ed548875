package coordinator

import (
	"context"
	"errors"

	"github.com/npezzotti/go-agritour/internal/booking"
	"github.com/npezzotti/go-agritour/internal/chat"
	"github.com/npezzotti/go-agritour/internal/listing"
	"github.com/npezzotti/go-agritour/internal/observable"
	"github.com/npezzotti/go-agritour/internal/types"
)

// FetchFarms loads the shared catalog. Only the first call in the process
// reaches the repository.
func (s *Session) FetchFarms() {
	s.deps.Catalog.Load()
	s.view.ApplyFilters()
}

func (s *Session) SetTypeFilter(farmType string) {
	s.view.SetTypeFilter(farmType)
}

func (s *Session) SetLocationFilter(location string) {
	s.view.SetLocationFilter(location)
}

func (s *Session) SetPriceRange(lo, hi float64) {
	s.view.SetPriceRange(lo, hi)
}

func (s *Session) SetMinRating(rating float64) {
	s.view.SetMinRating(rating)
}

func (s *Session) GetFarmById(id string) (types.Farm, bool) {
	return s.deps.Catalog.Get(id)
}

// CreateBooking reports whether the booking was saved. Without a signed
// in user nothing is written.
func (s *Session) CreateBooking(params booking.CreateParams) bool {
	_, err := s.deps.Bookings.Create(s.UserId(), params)
	if err != nil {
		s.log.Printf("create booking: %v", err)
		return false
	}
	return true
}

func (s *Session) FetchUserBookings() {
	userId := s.UserId()
	if userId == "" {
		return
	}

	bookings, err := s.deps.Bookings.ListForUser(userId)
	if err != nil {
		s.log.Printf("fetch user bookings: %v", err)
		bookings = []types.Booking{}
	}
	s.MyBookings.Set(bookings)
}

// CancelBooking refreshes the user's bookings when the cancel succeeds.
func (s *Session) CancelBooking(bookingId string) bool {
	if _, err := s.deps.Bookings.Cancel(bookingId); err != nil {
		s.log.Printf("cancel booking %q: %v", bookingId, err)
		return false
	}

	s.FetchUserBookings()
	return true
}

// GetBookingById looks in the already fetched bookings only.
func (s *Session) GetBookingById(bookingId string) (types.Booking, bool) {
	for _, b := range s.MyBookings.Get() {
		if b.Id == bookingId {
			return b, true
		}
	}
	return types.Booking{}, false
}

func (s *Session) LoadSingleBooking(bookingId string) {
	s.CurrentBooking.Set(nil)

	b, err := s.deps.Bookings.Get(bookingId)
	if err != nil {
		s.log.Printf("load booking %q: %v", bookingId, err)
		return
	}
	s.CurrentBooking.Set(&b)
}

func (s *Session) FetchMyFarms() {
	userId := s.UserId()
	if userId == "" {
		return
	}

	dbFarms, err := s.deps.Accounts.ListFarmsByOwner(userId)
	if err != nil {
		s.log.Printf("fetch my farms: %v", err)
		s.MyFarms.Set([]types.Farm{})
		return
	}
	s.MyFarms.Set(listing.FromModels(dbFarms))
}

// AddFarm reports whether the farm was saved. Only farmers may list
// farms, and a failed image upload aborts before anything is written.
func (s *Session) AddFarm(nf listing.NewFarm) bool {
	userId := s.UserId()
	if userId == "" {
		return false
	}

	acc, err := s.deps.Accounts.GetAccountById(userId)
	if err != nil {
		s.log.Printf("add farm: fetch account %q: %v", userId, err)
		return false
	}
	if types.Role(acc.Role) != types.RoleFarmer {
		s.log.Printf("add farm: %q is not a farmer", userId)
		return false
	}

	if _, err := s.deps.Publisher.Publish(s.ctx, userId, nf); err != nil {
		s.log.Printf("add farm: %v", err)
		return false
	}

	s.FetchMyFarms()
	return true
}

func (s *Session) FetchIncomingBookings() {
	userId := s.UserId()
	if userId == "" {
		return
	}

	bookings, err := s.deps.Bookings.ListForOwner(userId)
	if err != nil {
		s.log.Printf("fetch incoming bookings: %v", err)
		bookings = []types.Booking{}
	}
	s.IncomingBookings.Set(bookings)
}

func (s *Session) FetchFarmOwner(ownerId string) {
	s.FarmOwner.Set(nil)

	acc, err := s.deps.Accounts.GetAccountById(ownerId)
	if err != nil {
		s.log.Printf("fetch farm owner %q: %v", ownerId, err)
		return
	}

	u := UserFromAccount(acc)
	s.FarmOwner.Set(&u)
}

// LoadMessages replaces any previous message subscription with one for
// the room shared with peerId.
func (s *Session) LoadMessages(peerId string) {
	userId := s.UserId()
	if userId == "" {
		return
	}

	ctx, gen := s.replaceListener(&s.msgs)

	msgs, err := s.deps.Chats.Messages(ctx, chat.RoomKey(userId, peerId))
	if err != nil {
		s.log.Printf("load messages: %v", err)
		return
	}

	go forwardListener(s, &s.msgs, gen, msgs, s.ChatMessages)
}

// SendMessage ignores blank text.
func (s *Session) SendMessage(text, peerId string) {
	userId := s.UserId()
	if userId == "" {
		return
	}

	if _, err := s.deps.Chats.Send(s.ctx, userId, peerId, text); err != nil {
		if !errors.Is(err, chat.ErrEmptyMessage) {
			s.log.Printf("send message: %v", err)
		}
	}
}

func (s *Session) LoadConversations() {
	userId := s.UserId()
	if userId == "" {
		return
	}

	ctx, gen := s.replaceListener(&s.convos)

	convos, err := s.deps.Chats.Conversations(ctx, userId)
	if err != nil {
		s.log.Printf("load conversations: %v", err)
		return
	}

	go forwardListener(s, &s.convos, gen, convos, s.Conversations)
}

// replaceListener cancels the listener l currently holds and starts a new
// generation of it.
func (s *Session) replaceListener(l *listener) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.stop()

	ctx, cancel := context.WithCancel(s.ctx)
	l.cancel = cancel
	return ctx, l.gen
}

// forwardListener copies snapshots from in to out for as long as gen is
// the listener's current generation. A replaced listener may still hold a
// buffered snapshot; it is dropped rather than written over the new one.
func forwardListener[T any](s *Session, l *listener, gen uint64, in <-chan T, out *observable.Value[T]) {
	for v := range in {
		s.mu.Lock()
		if l.gen != gen {
			s.mu.Unlock()
			continue
		}
		out.Set(v)
		s.mu.Unlock()
	}
}
