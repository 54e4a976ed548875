package types

import (
	"time"
)

type Role string

const (
	RoleFarmer  Role = "farmer"
	RoleVisitor Role = "visitor"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "Pending"
	StatusConfirmed BookingStatus = "Confirmed"
	StatusCancelled BookingStatus = "Cancelled"
	// StatusCompleted is displayed by clients but never assigned by the service.
	StatusCompleted BookingStatus = "Completed"
)

const DefaultFarmType = "Mixed"

type User struct {
	Id              string    `json:"uid"`
	Name            string    `json:"name"`
	EmailAddress    string    `json:"email,omitempty"`
	Role            Role      `json:"role"`
	ProfileImageUrl string    `json:"profile_image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

type Farm struct {
	Id          string  `json:"id"`
	OwnerId     string  `json:"owner_id"`
	Name        string  `json:"name"`
	Location    string  `json:"location"`
	ImageUrl    string  `json:"image_url"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
}

type Booking struct {
	Id            string        `json:"id"`
	FarmId        string        `json:"farm_id"`
	FarmName      string        `json:"farm_name"`
	UserId        string        `json:"user_id"`
	FarmOwnerId   string        `json:"farm_owner_id"`
	Date          string        `json:"date"`
	Time          string        `json:"time"`
	GroupSize     int           `json:"group_size"`
	TotalPrice    float64       `json:"total_price"`
	Status        BookingStatus `json:"status"`
	PaymentMethod string        `json:"payment_method"`
	// Timestamp is the creation time in unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

type ChatMessage struct {
	Id       string `json:"id"`
	SenderId string `json:"sender_id"`
	Text     string `json:"text"`
	// Timestamp is the send time in unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

type Conversation struct {
	PeerId      string `json:"peer_id"`
	PeerName    string `json:"peer_name"`
	LastMessage string `json:"last_message"`
	RoomId      string `json:"room_id"`
	Timestamp   int64  `json:"timestamp"`
}

type FarmOptions struct {
	Types     []string `json:"types"`
	Locations []string `json:"locations"`
	MaxPrice  float64  `json:"max_price"`
}

type Revenue struct {
	TotalRevenue float64 `json:"total_revenue"`
	TotalGuests  int     `json:"total_guests"`
	BookingCount int     `json:"booking_count"`
}
