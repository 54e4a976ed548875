package server

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/npezzotti/go-agritour/internal/blob"
	"github.com/npezzotti/go-agritour/internal/booking"
	"github.com/npezzotti/go-agritour/internal/listing"
)

var validate = validator.New()

type intentHandler struct {
	// requiresUser rejects the intent with 401 once the session has no
	// signed in user.
	requiresUser bool
	run          func(c *Client, msg *ClientMessage) *ServerMessage
}

type typeArgs struct {
	Type string `json:"type"`
}

type locationArgs struct {
	Location string `json:"location"`
}

type priceRangeArgs struct {
	Min float64 `json:"min" validate:"gte=0"`
	Max float64 `json:"max" validate:"gtefield=Min"`
}

type ratingArgs struct {
	Rating float64 `json:"rating" validate:"gte=0,lte=5"`
}

type idArgs struct {
	Id string `json:"id" validate:"required"`
}

type peerArgs struct {
	PeerId string `json:"peer_id" validate:"required"`
}

type sendArgs struct {
	PeerId string `json:"peer_id" validate:"required"`
	Text   string `json:"text"`
}

type addFarmArgs struct {
	listing.NewFarm
	Image []byte `json:"image"`
}

var intents = map[string]intentHandler{
	"fetch_farms":         {run: fetchFarms},
	"set_type_filter":     {run: setTypeFilter},
	"set_location_filter": {run: setLocationFilter},
	"set_price_range":     {run: setPriceRange},
	"set_min_rating":      {run: setMinRating},
	"get_farm":            {run: getFarm},
	"fetch_farm_owner":    {run: fetchFarmOwner},
	"load_booking":        {run: loadBooking},

	"fetch_current_user":      {requiresUser: true, run: fetchCurrentUser},
	"create_booking":          {requiresUser: true, run: createBooking},
	"fetch_bookings":          {requiresUser: true, run: fetchBookings},
	"get_booking":             {requiresUser: true, run: getBooking},
	"cancel_booking":          {requiresUser: true, run: cancelBooking},
	"fetch_my_farms":          {requiresUser: true, run: fetchMyFarms},
	"add_farm":                {requiresUser: true, run: addFarm},
	"fetch_incoming_bookings": {requiresUser: true, run: fetchIncomingBookings},
	"load_messages":           {requiresUser: true, run: loadMessages},
	"send_message":            {requiresUser: true, run: sendMessage},
	"load_conversations":      {requiresUser: true, run: loadConversations},
	"sign_out":                {requiresUser: true, run: signOut},
}

func (c *Client) dispatch(msg *ClientMessage) *ServerMessage {
	h, ok := intents[msg.Intent.Name]
	if !ok {
		return ErrUnknownIntent(msg.Id)
	}

	if h.requiresUser && msg.GetUserId() == "" {
		return ErrUnauthorized(msg.Id)
	}

	return h.run(c, msg)
}

// decodeArgs fills v from the intent args and validates it. Missing args
// decode as an empty object.
func decodeArgs(msg *ClientMessage, v any) error {
	if len(msg.Intent.Args) > 0 {
		if err := json.Unmarshal(msg.Intent.Args, v); err != nil {
			return fmt.Errorf("decode args: %w", err)
		}
	}

	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validate args: %w", err)
	}
	return nil
}

func fetchFarms(c *Client, msg *ClientMessage) *ServerMessage {
	c.session.FetchFarms()
	return NoErrAccepted(msg.Id)
}

func setTypeFilter(c *Client, msg *ClientMessage) *ServerMessage {
	var args typeArgs
	if err := decodeArgs(msg, &args); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	c.session.SetTypeFilter(args.Type)
	return NoErrOK(msg.Id, c.session.Filter())
}

func setLocationFilter(c *Client, msg *ClientMessage) *ServerMessage {
	var args locationArgs
	if err := decodeArgs(msg, &args); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	c.session.SetLocationFilter(args.Location)
	return NoErrOK(msg.Id, c.session.Filter())
}

func setPriceRange(c *Client, msg *ClientMessage) *ServerMessage {
	var args priceRangeArgs
	if err := decodeArgs(msg, &args); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	c.session.SetPriceRange(args.Min, args.Max)
	return NoErrOK(msg.Id, c.session.Filter())
}

func setMinRating(c *Client, msg *ClientMessage) *ServerMessage {
	var args ratingArgs
	if err := decodeArgs(msg, &args); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	c.session.SetMinRating(args.Rating)
	return NoErrOK(msg.Id, c.session.Filter())
}

func getFarm(c *Client, msg *ClientMessage) *ServerMessage {
	var args idArgs
	if err := decodeArgs(msg, &args); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	farm, ok := c.session.GetFarmById(args.Id)
	if !ok {
		return ErrNotFound(msg.Id)
	}
	return NoErrOK(msg.Id, farm)
}

func fetchFarmOwner(c *Client, msg *ClientMessage) *ServerMessage {
	var args idArgs
	if err := decodeArgs(msg, &args); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	c.session.FetchFarmOwner(args.Id)
	return NoErrAccepted(msg.Id)
}

func loadBooking(c *Client, msg *ClientMessage) *ServerMessage {
	var args idArgs
	if err := decodeArgs(msg, &args); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	c.session.LoadSingleBooking(args.Id)
	return NoErrAccepted(msg.Id)
}

func fetchCurrentUser(c *Client, msg *ClientMessage) *ServerMessage {
	c.session.FetchCurrentUser()
	return NoErrAccepted(msg.Id)
}

func createBooking(c *Client, msg *ClientMessage) *ServerMessage {
	var params booking.CreateParams
	if err := decodeArgs(msg, &params); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	if !c.session.CreateBooking(params) {
		return ErrIntentFailed(msg.Id)
	}

	c.notifyOwner(params.FarmId)
	return NoErrAccepted(msg.Id)
}

// notifyOwner tells every connection of the farm's owner that a booking
// came in.
func (c *Client) notifyOwner(farmId string) {
	farm, ok := c.session.GetFarmById(farmId)
	if !ok || farm.OwnerId == "" || c.hub == nil {
		return
	}

	c.hub.Broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			BookingCreated: &BookingCreated{
				FarmId:   farm.Id,
				FarmName: farm.Name,
				GuestId:  c.userId(),
			},
		},
		UserId:     farm.OwnerId,
		SkipClient: c,
	})
}

func fetchBookings(c *Client, msg *ClientMessage) *ServerMessage {
	c.session.FetchUserBookings()
	return NoErrAccepted(msg.Id)
}

func getBooking(c *Client, msg *ClientMessage) *ServerMessage {
	var args idArgs
	if err := decodeArgs(msg, &args); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	b, ok := c.session.GetBookingById(args.Id)
	if !ok {
		return ErrNotFound(msg.Id)
	}
	return NoErrOK(msg.Id, b)
}

// cancelBooking only cancels bookings the session already fetched for its
// user.
func cancelBooking(c *Client, msg *ClientMessage) *ServerMessage {
	var args idArgs
	if err := decodeArgs(msg, &args); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	if _, ok := c.session.GetBookingById(args.Id); !ok {
		return ErrNotFound(msg.Id)
	}

	if !c.session.CancelBooking(args.Id) {
		return ErrIntentFailed(msg.Id)
	}
	return NoErrAccepted(msg.Id)
}

func fetchMyFarms(c *Client, msg *ClientMessage) *ServerMessage {
	c.session.FetchMyFarms()
	return NoErrAccepted(msg.Id)
}

func addFarm(c *Client, msg *ClientMessage) *ServerMessage {
	var args addFarmArgs
	if err := decodeArgs(msg, &args); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	if len(args.Image) > blob.MaxUploadSize {
		return ErrInvalidMessage(msg.Id)
	}

	nf := args.NewFarm
	nf.Image = args.Image
	if !c.session.AddFarm(nf) {
		return ErrIntentFailed(msg.Id)
	}
	return NoErrAccepted(msg.Id)
}

func fetchIncomingBookings(c *Client, msg *ClientMessage) *ServerMessage {
	c.session.FetchIncomingBookings()
	return NoErrAccepted(msg.Id)
}

func loadMessages(c *Client, msg *ClientMessage) *ServerMessage {
	var args peerArgs
	if err := decodeArgs(msg, &args); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	c.session.LoadMessages(args.PeerId)
	return NoErrAccepted(msg.Id)
}

func sendMessage(c *Client, msg *ClientMessage) *ServerMessage {
	var args sendArgs
	if err := decodeArgs(msg, &args); err != nil {
		return ErrInvalidMessage(msg.Id)
	}

	c.session.SendMessage(args.Text, args.PeerId)
	return NoErrAccepted(msg.Id)
}

func loadConversations(c *Client, msg *ClientMessage) *ServerMessage {
	c.session.LoadConversations()
	return NoErrAccepted(msg.Id)
}

func signOut(c *Client, msg *ClientMessage) *ServerMessage {
	c.session.SignOut()
	if c.hub != nil {
		c.hub.SignOut(c)
	}
	return NoErrAccepted(msg.Id)
}
