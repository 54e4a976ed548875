package database

import "time"

type Account struct {
	Id              string    `db:"id"`
	Name            string    `db:"name"`
	EmailAddress    string    `db:"email"`
	PasswordHash    string    `db:"password_hash"`
	Role            string    `db:"role"`
	ProfileImageUrl string    `db:"profile_image_url"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type Farm struct {
	Id          string    `db:"id"`
	OwnerId     string    `db:"owner_id"`
	Name        string    `db:"name"`
	Location    string    `db:"location"`
	ImageUrl    string    `db:"image_url"`
	Price       float64   `db:"price"`
	Rating      float64   `db:"rating"`
	Type        string    `db:"type"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

type Booking struct {
	Id            string  `db:"id"`
	FarmId        string  `db:"farm_id"`
	FarmName      string  `db:"farm_name"`
	UserId        string  `db:"user_id"`
	FarmOwnerId   string  `db:"farm_owner_id"`
	Date          string  `db:"date"`
	Time          string  `db:"time"`
	GroupSize     int     `db:"group_size"`
	TotalPrice    float64 `db:"total_price"`
	Status        string  `db:"status"`
	PaymentMethod string  `db:"payment_method"`
	CreatedMs     int64   `db:"created_ms"`
}

type PasswordReset struct {
	Token     string    `db:"token"`
	AccountId string    `db:"account_id"`
	ExpiresAt time.Time `db:"expires_at"`
	Used      bool      `db:"used"`
}

type CreateAccountParams struct {
	Name         string
	EmailAddress string
	PasswordHash string
	Role         string
}

type UpdateAccountParams struct {
	AccountId    string
	Name         string
	EmailAddress string
}

type CreateFarmParams struct {
	OwnerId     string
	Name        string
	Location    string
	ImageUrl    string
	Price       float64
	Type        string
	Description string
}

type CreateBookingParams struct {
	FarmId        string
	FarmName      string
	UserId        string
	FarmOwnerId   string
	Date          string
	Time          string
	GroupSize     int
	TotalPrice    float64
	Status        string
	PaymentMethod string
	CreatedMs     int64
}

type CreatePasswordResetParams struct {
	Token     string
	AccountId string
	ExpiresAt time.Time
}
