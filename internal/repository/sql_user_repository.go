package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taobei/auth/internal/models"
	"github.com/taobei/auth/internal/validate"
)

const (
	selectUserQuery = `
		SELECT id, phone_number, password_hash, created_at
		FROM users
		WHERE phone_number = ?`

	insertUserQuery = `
		INSERT INTO users (phone_number, password_hash, created_at)
		VALUES (?, ?, ?)
		RETURNING id`
)

type SQLUserRepository struct {
	store *SQLStore
	now   func() time.Time
}

func NewSQLUserRepository(store *SQLStore) *SQLUserRepository {
	return &SQLUserRepository{
		store: store,
		now:   time.Now,
	}
}

// FindByPhone returns nil, nil when no user is registered for phoneNumber.
func (r *SQLUserRepository) FindByPhone(ctx context.Context, phoneNumber string) (*models.User, error) {
	if !validate.PhoneNumber(phoneNumber) {
		return nil, validate.ErrInvalidPhone
	}

	var (
		user         models.User
		passwordHash sql.NullString
		createdAt    int64
	)
	err := r.store.db.QueryRowContext(ctx, r.store.dialect.rebind(selectUserQuery), phoneNumber).
		Scan(&user.ID, &user.PhoneNumber, &passwordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.store.logger.WithError(err).Error("Failed to get user")
		return nil, internalErr("failed to get user", err)
	}

	user.PasswordHash = passwordHash.String
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}

// Create registers phoneNumber. An empty passwordHash is stored as NULL.
func (r *SQLUserRepository) Create(ctx context.Context, phoneNumber, passwordHash string) (*models.User, error) {
	if !validate.PhoneNumber(phoneNumber) {
		return nil, validate.ErrInvalidPhone
	}

	existing, err := r.FindByPhone(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	user := &models.User{
		PhoneNumber:  phoneNumber,
		PasswordHash: passwordHash,
		CreatedAt:    r.now().UTC().Truncate(time.Millisecond),
	}
	hash := sql.NullString{String: passwordHash, Valid: passwordHash != ""}

	err = r.store.db.QueryRowContext(ctx, r.store.dialect.rebind(insertUserQuery),
		phoneNumber, hash, toMillis(user.CreatedAt)).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		r.store.logger.WithError(err).Error("Failed to create user")
		return nil, internalErr("failed to create user", err)
	}

	return user, nil
}
