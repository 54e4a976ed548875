package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockAgriTourRepository struct {
	mock.Mock
}

func (m *MockAgriTourRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockAgriTourRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockAgriTourRepository) UpdateAccount(params UpdateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockAgriTourRepository) UpdateAccountImage(accountId, imageUrl string) error {
	args := m.Called(accountId, imageUrl)
	return args.Error(0)
}
func (m *MockAgriTourRepository) UpdatePasswordHash(accountId, passwordHash string) error {
	args := m.Called(accountId, passwordHash)
	return args.Error(0)
}
func (m *MockAgriTourRepository) GetAccountById(accountId string) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockAgriTourRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockAgriTourRepository) CreatePasswordReset(params CreatePasswordResetParams) error {
	args := m.Called(params)
	return args.Error(0)
}
func (m *MockAgriTourRepository) ConsumePasswordReset(token string, now time.Time) (string, error) {
	args := m.Called(token, now)
	return args.String(0), args.Error(1)
}
func (m *MockAgriTourRepository) ListFarms() ([]Farm, error) {
	args := m.Called()
	return args.Get(0).([]Farm), args.Error(1)
}
func (m *MockAgriTourRepository) ListFarmsByOwner(ownerId string) ([]Farm, error) {
	args := m.Called(ownerId)
	return args.Get(0).([]Farm), args.Error(1)
}
func (m *MockAgriTourRepository) GetFarmById(farmId string) (Farm, error) {
	args := m.Called(farmId)
	return args.Get(0).(Farm), args.Error(1)
}
func (m *MockAgriTourRepository) CreateFarm(params CreateFarmParams) (Farm, error) {
	args := m.Called(params)
	return args.Get(0).(Farm), args.Error(1)
}
func (m *MockAgriTourRepository) CreateBooking(params CreateBookingParams) (Booking, error) {
	args := m.Called(params)
	return args.Get(0).(Booking), args.Error(1)
}
func (m *MockAgriTourRepository) GetBookingById(bookingId string) (Booking, error) {
	args := m.Called(bookingId)
	return args.Get(0).(Booking), args.Error(1)
}
func (m *MockAgriTourRepository) ListBookingsByUser(userId string) ([]Booking, error) {
	args := m.Called(userId)
	return args.Get(0).([]Booking), args.Error(1)
}
func (m *MockAgriTourRepository) ListBookingsByOwner(ownerId string) ([]Booking, error) {
	args := m.Called(ownerId)
	return args.Get(0).([]Booking), args.Error(1)
}
func (m *MockAgriTourRepository) UpdateBookingStatus(bookingId, status string) error {
	args := m.Called(bookingId, status)
	return args.Error(0)
}
