// Package coordinator holds the per-session view state of a signed in
// user. Every intent calls the gateway, swallows failures into empty or
// nil state and logs them, then updates the session's observables.
package coordinator

import (
	"context"
	"log"
	"sync"

	"github.com/npezzotti/go-agritour/internal/booking"
	"github.com/npezzotti/go-agritour/internal/chat"
	"github.com/npezzotti/go-agritour/internal/database"
	"github.com/npezzotti/go-agritour/internal/listing"
	"github.com/npezzotti/go-agritour/internal/observable"
	"github.com/npezzotti/go-agritour/internal/types"
)

type Accounts interface {
	GetAccountById(accountId string) (database.Account, error)
	ListFarmsByOwner(ownerId string) ([]database.Farm, error)
}

type Deps struct {
	Log       *log.Logger
	Accounts  Accounts
	Catalog   *listing.Catalog
	Publisher *listing.Publisher
	Bookings  *booking.Service
	Chats     *chat.Service
}

// listener is a replaceable chat subscription. gen counts replacements so
// that a superseded forwarder can tell it is stale. Guarded by Session.mu.
type listener struct {
	cancel context.CancelFunc
	gen    uint64
}

// stop cancels the subscription and retires its generation.
func (l *listener) stop() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}

type Session struct {
	log  *log.Logger
	deps Deps

	mu     sync.Mutex
	userId string
	ctx    context.Context
	cancel context.CancelFunc
	msgs   listener
	convos listener

	view *listing.View

	CurrentUser      *observable.Value[*types.User]
	MyBookings       *observable.Value[[]types.Booking]
	CurrentBooking   *observable.Value[*types.Booking]
	MyFarms          *observable.Value[[]types.Farm]
	IncomingBookings *observable.Value[[]types.Booking]
	FarmOwner        *observable.Value[*types.User]
	ChatMessages     *observable.Value[[]types.ChatMessage]
	Conversations    *observable.Value[[]types.Conversation]
}

func NewSession(parent context.Context, deps Deps, userId string) *Session {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		log:              deps.Log,
		deps:             deps,
		userId:           userId,
		ctx:              ctx,
		cancel:           cancel,
		view:             listing.NewView(deps.Catalog),
		CurrentUser:      observable.New[*types.User](nil),
		MyBookings:       observable.New([]types.Booking{}),
		CurrentBooking:   observable.New[*types.Booking](nil),
		MyFarms:          observable.New([]types.Farm{}),
		IncomingBookings: observable.New([]types.Booking{}),
		FarmOwner:        observable.New[*types.User](nil),
		ChatMessages:     observable.New([]types.ChatMessage{}),
		Conversations:    observable.New([]types.Conversation{}),
	}

	go s.view.Watch(ctx)

	return s
}

// Start runs the intents a freshly opened session issues on its own.
func (s *Session) Start() {
	s.FetchFarms()
	s.FetchCurrentUser()
}

// Close detaches every listener the session holds.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) UserId() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userId
}

func (s *Session) Context() context.Context {
	return s.ctx
}

// Farms is the filtered farm list.
func (s *Session) Farms() *observable.Value[[]types.Farm] {
	return s.view.Visible()
}

func (s *Session) Filter() listing.Filter {
	return s.view.Filter()
}

func (s *Session) SignOut() {
	s.mu.Lock()
	s.userId = ""
	s.msgs.stop()
	s.convos.stop()
	s.mu.Unlock()

	s.CurrentUser.Set(nil)
	s.MyBookings.Set([]types.Booking{})
}

func (s *Session) FetchCurrentUser() {
	userId := s.UserId()
	if userId == "" {
		return
	}

	acc, err := s.deps.Accounts.GetAccountById(userId)
	if err != nil {
		s.log.Printf("fetch current user %q: %v", userId, err)
		return
	}

	u := UserFromAccount(acc)
	s.CurrentUser.Set(&u)

	if u.Role == types.RoleVisitor {
		s.FetchUserBookings()
	}
}

func UserFromAccount(acc database.Account) types.User {
	return types.User{
		Id:              acc.Id,
		Name:            acc.Name,
		EmailAddress:    acc.EmailAddress,
		Role:            types.Role(acc.Role),
		ProfileImageUrl: acc.ProfileImageUrl,
		CreatedAt:       acc.CreatedAt,
		UpdatedAt:       acc.UpdatedAt,
	}
}
