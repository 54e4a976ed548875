package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	accountColumns = "id, name, email, password_hash, role, profile_image_url, created_at, updated_at"
	farmColumns    = "id, owner_id, name, location, image_url, price, rating, type, description, created_at"
	bookingColumns = "id, farm_id, farm_name, user_id, farm_owner_id, date, time, group_size, total_price, status, payment_method, created_ms"
)

var ErrInvalidResetToken = errors.New("invalid or expired reset token")

func (db *SqlAgriTourRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	now := time.Now().UTC()
	a := Account{
		Id:           uuid.NewString(),
		Name:         params.Name,
		EmailAddress: params.EmailAddress,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := db.conn.NamedExec(
		"INSERT INTO accounts ("+accountColumns+") "+
			"VALUES (:id, :name, :email, :password_hash, :role, :profile_image_url, :created_at, :updated_at)",
		a,
	)
	if err != nil {
		return Account{}, err
	}

	return a, nil
}

func (db *SqlAgriTourRepository) UpdateAccount(params UpdateAccountParams) (Account, error) {
	res, err := db.conn.Exec(
		db.conn.Rebind("UPDATE accounts SET name = ?, email = ?, updated_at = ? WHERE id = ?"),
		params.Name,
		params.EmailAddress,
		time.Now().UTC(),
		params.AccountId,
	)
	if err != nil {
		return Account{}, err
	}

	if err := requireRow(res); err != nil {
		return Account{}, err
	}

	return db.GetAccountById(params.AccountId)
}

func (db *SqlAgriTourRepository) UpdateAccountImage(accountId, imageUrl string) error {
	res, err := db.conn.Exec(
		db.conn.Rebind("UPDATE accounts SET profile_image_url = ?, updated_at = ? WHERE id = ?"),
		imageUrl,
		time.Now().UTC(),
		accountId,
	)
	if err != nil {
		return err
	}

	return requireRow(res)
}

func (db *SqlAgriTourRepository) UpdatePasswordHash(accountId, passwordHash string) error {
	res, err := db.conn.Exec(
		db.conn.Rebind("UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?"),
		passwordHash,
		time.Now().UTC(),
		accountId,
	)
	if err != nil {
		return err
	}

	return requireRow(res)
}

func (db *SqlAgriTourRepository) GetAccountById(accountId string) (Account, error) {
	var a Account
	err := db.conn.Get(
		&a,
		db.conn.Rebind("SELECT "+accountColumns+" FROM accounts WHERE id = ? LIMIT 1"),
		accountId,
	)

	return a, err
}

func (db *SqlAgriTourRepository) GetAccountByEmail(email string) (Account, error) {
	var a Account
	err := db.conn.Get(
		&a,
		db.conn.Rebind("SELECT "+accountColumns+" FROM accounts WHERE email = ? LIMIT 1"),
		email,
	)

	return a, err
}

func (db *SqlAgriTourRepository) CreatePasswordReset(params CreatePasswordResetParams) error {
	_, err := db.conn.Exec(
		db.conn.Rebind("INSERT INTO password_resets (token, account_id, expires_at, used) VALUES (?, ?, ?, ?)"),
		params.Token,
		params.AccountId,
		params.ExpiresAt.UTC(),
		false,
	)

	return err
}

// ConsumePasswordReset marks the token used and returns the account it was
// issued for.
func (db *SqlAgriTourRepository) ConsumePasswordReset(token string, now time.Time) (string, error) {
	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var pr PasswordReset
	err = tx.Get(
		&pr,
		tx.Rebind("SELECT token, account_id, expires_at, used FROM password_resets WHERE token = ? LIMIT 1"),
		token,
	)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrInvalidResetToken
		return "", err
	}
	if err != nil {
		return "", err
	}

	if pr.Used || !pr.ExpiresAt.After(now) {
		err = ErrInvalidResetToken
		return "", err
	}

	_, err = tx.Exec(tx.Rebind("UPDATE password_resets SET used = ? WHERE token = ?"), true, token)
	if err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}

	return pr.AccountId, nil
}

func (db *SqlAgriTourRepository) ListFarms() ([]Farm, error) {
	farms := make([]Farm, 0)
	err := db.conn.Select(&farms, "SELECT "+farmColumns+" FROM farms ORDER BY created_at ASC")

	return farms, err
}

func (db *SqlAgriTourRepository) ListFarmsByOwner(ownerId string) ([]Farm, error) {
	farms := make([]Farm, 0)
	err := db.conn.Select(
		&farms,
		db.conn.Rebind("SELECT "+farmColumns+" FROM farms WHERE owner_id = ? ORDER BY created_at ASC"),
		ownerId,
	)

	return farms, err
}

func (db *SqlAgriTourRepository) GetFarmById(farmId string) (Farm, error) {
	var f Farm
	err := db.conn.Get(
		&f,
		db.conn.Rebind("SELECT "+farmColumns+" FROM farms WHERE id = ? LIMIT 1"),
		farmId,
	)

	return f, err
}

func (db *SqlAgriTourRepository) CreateFarm(params CreateFarmParams) (Farm, error) {
	f := Farm{
		Id:          uuid.NewString(),
		OwnerId:     params.OwnerId,
		Name:        params.Name,
		Location:    params.Location,
		ImageUrl:    params.ImageUrl,
		Price:       params.Price,
		Rating:      0,
		Type:        params.Type,
		Description: params.Description,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := db.conn.NamedExec(
		"INSERT INTO farms ("+farmColumns+") "+
			"VALUES (:id, :owner_id, :name, :location, :image_url, :price, :rating, :type, :description, :created_at)",
		f,
	)
	if err != nil {
		return Farm{}, err
	}

	return f, nil
}

func (db *SqlAgriTourRepository) CreateBooking(params CreateBookingParams) (Booking, error) {
	b := Booking{
		Id:            uuid.NewString(),
		FarmId:        params.FarmId,
		FarmName:      params.FarmName,
		UserId:        params.UserId,
		FarmOwnerId:   params.FarmOwnerId,
		Date:          params.Date,
		Time:          params.Time,
		GroupSize:     params.GroupSize,
		TotalPrice:    params.TotalPrice,
		Status:        params.Status,
		PaymentMethod: params.PaymentMethod,
		CreatedMs:     params.CreatedMs,
	}

	_, err := db.conn.NamedExec(
		"INSERT INTO bookings ("+bookingColumns+") "+
			"VALUES (:id, :farm_id, :farm_name, :user_id, :farm_owner_id, :date, :time, :group_size, "+
			":total_price, :status, :payment_method, :created_ms)",
		b,
	)
	if err != nil {
		return Booking{}, err
	}

	return b, nil
}

func (db *SqlAgriTourRepository) GetBookingById(bookingId string) (Booking, error) {
	var b Booking
	err := db.conn.Get(
		&b,
		db.conn.Rebind("SELECT "+bookingColumns+" FROM bookings WHERE id = ? LIMIT 1"),
		bookingId,
	)

	return b, err
}

func (db *SqlAgriTourRepository) ListBookingsByUser(userId string) ([]Booking, error) {
	bookings := make([]Booking, 0)
	err := db.conn.Select(
		&bookings,
		db.conn.Rebind("SELECT "+bookingColumns+" FROM bookings WHERE user_id = ? ORDER BY created_ms DESC"),
		userId,
	)

	return bookings, err
}

func (db *SqlAgriTourRepository) ListBookingsByOwner(ownerId string) ([]Booking, error) {
	bookings := make([]Booking, 0)
	err := db.conn.Select(
		&bookings,
		db.conn.Rebind("SELECT "+bookingColumns+" FROM bookings WHERE farm_owner_id = ? ORDER BY created_ms DESC"),
		ownerId,
	)

	return bookings, err
}

func (db *SqlAgriTourRepository) UpdateBookingStatus(bookingId, status string) error {
	res, err := db.conn.Exec(
		db.conn.Rebind("UPDATE bookings SET status = ? WHERE id = ?"),
		status,
		bookingId,
	)
	if err != nil {
		return err
	}

	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}
