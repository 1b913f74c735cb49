package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"motelhub/internal/otp"
)

const recordColumns = `id, phone, code_hash, expires_at, attempts, locked_until, consumed_at, created_at`

type Repository struct {
	db sqlx.ExtContext
}

func NewRepository(db sqlx.ExtContext) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, rec *otp.Record) error {
	query := r.db.Rebind(`INSERT INTO otp_records (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Phone, rec.CodeHash, rec.ExpiresAt, rec.Attempts, rec.LockedUntil, rec.ConsumedAt, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create otp record: %w", err)
	}
	return nil
}

// Latest returns the most recent record for the phone, or nil when there is none.
func (r *Repository) Latest(ctx context.Context, phone string) (*otp.Record, error) {
	rec := &otp.Record{}
	query := r.db.Rebind(`SELECT ` + recordColumns + ` FROM otp_records
		WHERE phone = ? ORDER BY created_at DESC, id DESC LIMIT 1`)
	err := sqlx.GetContext(ctx, r.db, rec, query, phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest otp record: %w", err)
	}
	return rec, nil
}

func (r *Repository) CountSince(ctx context.Context, phone string, since time.Time) (int, error) {
	var n int
	query := r.db.Rebind(`SELECT COUNT(*) FROM otp_records WHERE phone = ? AND created_at >= ?`)
	if err := sqlx.GetContext(ctx, r.db, &n, query, phone, since); err != nil {
		return 0, fmt.Errorf("count otp records: %w", err)
	}
	return n, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	query := r.db.Rebind(`DELETE FROM otp_records WHERE id = ?`)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// RecordFailure increments attempts in place and returns the new count. Once the
// count reaches maxAttempts the record gets lockedUntil, unless a lock is already set.
func (r *Repository) RecordFailure(ctx context.Context, id string, maxAttempts int, lockedUntil time.Time) (int, error) {
	var attempts int
	query := r.db.Rebind(`UPDATE otp_records
		SET attempts = attempts + 1,
			locked_until = CASE
				WHEN attempts + 1 >= ? AND locked_until IS NULL THEN ?
				ELSE locked_until
			END
		WHERE id = ?
		RETURNING attempts`)
	if err := sqlx.GetContext(ctx, r.db, &attempts, query, maxAttempts, lockedUntil, id); err != nil {
		return 0, fmt.Errorf("record otp failure: %w", err)
	}
	return attempts, nil
}

// MarkConsumed reports false when the code was consumed first or the record
// got locked in the meantime.
func (r *Repository) MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error) {
	query := r.db.Rebind(`UPDATE otp_records SET consumed_at = ?
		WHERE id = ? AND consumed_at IS NULL AND (locked_until IS NULL OR locked_until <= ?)`)
	res, err := r.db.ExecContext(ctx, query, at, id, at)
	if err != nil {
		return false, fmt.Errorf("consume otp record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
