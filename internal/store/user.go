package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/citizone/authserver/types"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// UserRepository persists users in Postgres. No other component touches
// storage directly.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, first_name, last_name, age, gender, email, phone,
	password_hash, phone_otp_hash, phone_otp_expiry, role, is_blocked,
	registered_at, last_login`

func (r *UserRepository) GetByID(ctx context.Context, id int64) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, phone))
}

// Create inserts a new user. RegisteredAt is assigned here and never updated
// afterwards.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	user.RegisteredAt = time.Now()

	const query = `
		INSERT INTO users (first_name, last_name, age, gender, email, phone,
			password_hash, phone_otp_hash, phone_otp_expiry, role, is_blocked,
			registered_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		user.FirstName,
		user.LastName,
		nullInt(user.Age),
		nullString(user.Gender),
		nullString(user.Email),
		nullString(user.Phone),
		user.PasswordHash,
		user.PhoneOTPHash,
		nullTime(user.PhoneOTPExpiry),
		user.Role,
		user.IsBlocked,
		user.RegisteredAt,
		nullTime(user.LastLogin),
	).Scan(&user.ID)
	if err != nil {
		return types.User{}, mapWriteError(err)
	}
	return user, nil
}

// Update rewrites every mutable field of the user. RegisteredAt is
// deliberately excluded.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	const query = `
		UPDATE users
		SET first_name = $1,
			last_name = $2,
			age = $3,
			gender = $4,
			email = $5,
			phone = $6,
			password_hash = $7,
			phone_otp_hash = $8,
			phone_otp_expiry = $9,
			role = $10,
			is_blocked = $11,
			last_login = $12
		WHERE id = $13`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.FirstName,
		user.LastName,
		nullInt(user.Age),
		nullString(user.Gender),
		nullString(user.Email),
		nullString(user.Phone),
		user.PasswordHash,
		user.PhoneOTPHash,
		nullTime(user.PhoneOTPExpiry),
		user.Role,
		user.IsBlocked,
		nullTime(user.LastLogin),
		user.ID,
	)
	if err != nil {
		return types.User{}, mapWriteError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func scanUser(row *sql.Row) (types.User, error) {
	var (
		user      types.User
		age       sql.NullInt64
		gender    sql.NullString
		email     sql.NullString
		phone     sql.NullString
		otpExpiry sql.NullTime
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&age,
		&gender,
		&email,
		&phone,
		&user.PasswordHash,
		&user.PhoneOTPHash,
		&otpExpiry,
		&user.Role,
		&user.IsBlocked,
		&user.RegisteredAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.Age = int(age.Int64)
	user.Gender = gender.String
	user.Email = email.String
	user.Phone = phone.String
	if otpExpiry.Valid {
		t := otpExpiry.Time
		user.PhoneOTPExpiry = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}

func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrConflict
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
