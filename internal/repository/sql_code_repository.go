package repository

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taobei/auth/internal/models"
	"github.com/taobei/auth/internal/validate"
)

const (
	upsertCodeQuery = `
		INSERT INTO verification_codes (phone_number, code, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (phone_number) DO UPDATE SET
			code = excluded.code,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`

	selectCodeQuery = `
		SELECT id, phone_number, code, expires_at, created_at
		FROM verification_codes
		WHERE phone_number = ?`

	deleteExpiredCodeQuery = `DELETE FROM verification_codes WHERE id = ? AND expires_at = ?`
	consumeCodeQuery       = `DELETE FROM verification_codes WHERE id = ? AND code = ?`
)

type SQLCodeRepository struct {
	store *SQLStore
	ttl   time.Duration
	now   func() time.Time
}

func NewSQLCodeRepository(store *SQLStore, ttl time.Duration) *SQLCodeRepository {
	return &SQLCodeRepository{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Save stores code as the only live code for phoneNumber. A zero expiresAt
// means now plus the configured TTL. The effective expiry is returned.
func (r *SQLCodeRepository) Save(ctx context.Context, phoneNumber, code string, expiresAt time.Time) (time.Time, error) {
	if !validate.PhoneNumber(phoneNumber) {
		return time.Time{}, validate.ErrInvalidPhone
	}
	if !validate.Code(code) {
		return time.Time{}, validate.ErrInvalidCode
	}

	now := r.now()
	if expiresAt.IsZero() {
		expiresAt = now.Add(r.ttl)
	}

	_, err := r.store.db.ExecContext(ctx, r.store.dialect.rebind(upsertCodeQuery),
		phoneNumber, code, toMillis(expiresAt), toMillis(now))
	if err != nil {
		r.store.logger.WithError(err).Error("Failed to store verification code")
		return time.Time{}, internalErr("failed to store verification code", err)
	}

	return expiresAt, nil
}

// Verify consumes the live code for phoneNumber if it matches code and has
// not expired. A wrong value leaves the record in place; a matching but
// expired record is deleted.
func (r *SQLCodeRepository) Verify(ctx context.Context, phoneNumber, code string) error {
	if !validate.PhoneNumber(phoneNumber) {
		return validate.ErrInvalidPhone
	}

	record, err := r.get(ctx, phoneNumber)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrCodeNotFound
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		return ErrWrongCode
	}

	if record.IsExpired(r.now()) {
		if _, err := r.store.db.ExecContext(ctx, r.store.dialect.rebind(deleteExpiredCodeQuery),
			record.ID, toMillis(record.ExpiresAt)); err != nil {
			r.store.logger.WithError(err).Warn("Failed to delete expired verification code")
		}
		return ErrCodeExpired
	}

	res, err := r.store.db.ExecContext(ctx, r.store.dialect.rebind(consumeCodeQuery), record.ID, record.Code)
	if err != nil {
		r.store.logger.WithError(err).Error("Failed to consume verification code")
		return internalErr("failed to consume verification code", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internalErr("failed to consume verification code", err)
	}
	if n == 0 {
		// Consumed or replaced since it was read.
		return ErrCodeNotFound
	}

	return nil
}

func (r *SQLCodeRepository) get(ctx context.Context, phoneNumber string) (*models.VerificationCode, error) {
	var (
		record    models.VerificationCode
		expiresAt int64
		createdAt int64
	)
	err := r.store.db.QueryRowContext(ctx, r.store.dialect.rebind(selectCodeQuery), phoneNumber).
		Scan(&record.ID, &record.PhoneNumber, &record.Code, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.store.logger.WithFields(logrus.Fields{"phone": phoneNumber}).WithError(err).Error("Failed to read verification code")
		return nil, internalErr("failed to read verification code", err)
	}

	record.ExpiresAt = fromMillis(expiresAt)
	record.CreatedAt = fromMillis(createdAt)
	return &record, nil
}
