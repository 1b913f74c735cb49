package otp

import "time"

// Record is one issued verification code. A new row is written per request so
// the table doubles as an audit trail.
type Record struct {
	ID          string     `json:"id" db:"id"`
	Phone       string     `json:"phone" db:"phone"`
	CodeHash    string     `json:"-" db:"code_hash"` // HMAC, сырой код не хранится
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`
	Attempts    int        `json:"attempts" db:"attempts"`
	LockedUntil *time.Time `json:"locked_until,omitempty" db:"locked_until"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty" db:"consumed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

func (r *Record) LockedAt(now time.Time) bool {
	return r.LockedUntil != nil && r.LockedUntil.After(now)
}

func (r *Record) ExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

func (r *Record) Consumed() bool {
	return r.ConsumedAt != nil
}
