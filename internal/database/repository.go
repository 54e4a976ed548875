package database

import "time"

type AgriTourRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Account, error)
	UpdateAccount(params UpdateAccountParams) (Account, error)
	UpdateAccountImage(accountId, imageUrl string) error
	UpdatePasswordHash(accountId, passwordHash string) error
	GetAccountById(accountId string) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	CreatePasswordReset(params CreatePasswordResetParams) error
	ConsumePasswordReset(token string, now time.Time) (string, error)
	ListFarms() ([]Farm, error)
	ListFarmsByOwner(ownerId string) ([]Farm, error)
	GetFarmById(farmId string) (Farm, error)
	CreateFarm(params CreateFarmParams) (Farm, error)
	CreateBooking(params CreateBookingParams) (Booking, error)
	GetBookingById(bookingId string) (Booking, error)
	ListBookingsByUser(userId string) ([]Booking, error)
	ListBookingsByOwner(ownerId string) ([]Booking, error)
	UpdateBookingStatus(bookingId, status string) error
}
