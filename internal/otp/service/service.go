package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"motelhub/internal/metrics"
	"motelhub/internal/otp"
	"motelhub/internal/sms"
)

var (
	ErrInvalidPhone   = errors.New("invalid phone number")
	ErrInvalidCode    = errors.New("invalid verification code")
	ErrNoActiveCode   = errors.New("no active verification code")
	ErrRateLimited    = errors.New("too many verification requests")
	ErrCooldown       = errors.New("verification code requested too recently")
	ErrLocked         = errors.New("phone is temporarily locked")
	ErrDispatchFailed = errors.New("failed to send verification code")
	errMissingSecret  = errors.New("otp secret is empty")
)

// ThrottleError wraps ErrRateLimited, ErrCooldown or ErrLocked together with
// the time the caller should wait.
type ThrottleError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string { return e.Err.Error() }

func (e *ThrottleError) Unwrap() error { return e.Err }

func throttled(err error, retryAfter time.Duration) error {
	return &ThrottleError{Err: err, RetryAfter: retryAfter}
}

type Policy struct {
	CodeTTL      time.Duration
	Cooldown     time.Duration
	Window       time.Duration
	MaxPerWindow int
	MaxAttempts  int
	LockDuration time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		CodeTTL:      5 * time.Minute,
		Cooldown:     60 * time.Second,
		Window:       time.Hour,
		MaxPerWindow: 5,
		MaxAttempts:  5,
		LockDuration: 15 * time.Minute,
	}
}

type Options struct {
	Secret        string
	DefaultRegion string
	// ExposeCode returns the raw code in RequestResult. Never enabled in production.
	ExposeCode bool
	Policy     Policy
}

type Repository interface {
	Create(ctx context.Context, rec *otp.Record) error
	Latest(ctx context.Context, phone string) (*otp.Record, error)
	CountSince(ctx context.Context, phone string, since time.Time) (int, error)
	Delete(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, maxAttempts int, lockedUntil time.Time) (int, error)
	MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error)
}

type RequestResult struct {
	Phone     string
	ExpiresIn int
	DebugCode string
}

type VerifyResult struct {
	Phone string
}

type Service struct {
	Repo   Repository
	Sender sms.Sender
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, sender sms.Sender, opts Options, log *zap.Logger) (*Service, error) {
	if opts.Secret == "" {
		return nil, errMissingSecret
	}
	return &Service{
		Repo:   repo,
		Sender: sender,
		opts:   opts,
		log:    log,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}, nil
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) RequestCode(ctx context.Context, rawPhone string) (*RequestResult, error) {
	res, outcome, err := s.requestCode(ctx, rawPhone)
	metrics.OTPRequestsTotal.WithLabelValues(outcome).Inc()
	return res, err
}

func (s *Service) requestCode(ctx context.Context, rawPhone string) (*RequestResult, string, error) {
	policy := s.opts.Policy

	phone, err := NormalizePhone(rawPhone, s.opts.DefaultRegion)
	if err != nil {
		return nil, "invalid_phone", err
	}

	now := s.now()

	recent, err := s.Repo.CountSince(ctx, phone, now.Add(-policy.Window))
	if err != nil {
		return nil, "error", err
	}
	if recent >= policy.MaxPerWindow {
		s.log.Info("otp request rate limited", zap.String("phone", phone), zap.Int("recent", recent))
		return nil, "rate_limited", throttled(ErrRateLimited, policy.Window)
	}

	latest, err := s.Repo.Latest(ctx, phone)
	if err != nil {
		return nil, "error", err
	}
	if latest != nil {
		// при активной блокировке новый код не выдаётся
		if latest.LockedAt(now) {
			return nil, "locked", throttled(ErrLocked, latest.LockedUntil.Sub(now))
		}
		if since := now.Sub(latest.CreatedAt); since < policy.Cooldown {
			return nil, "cooldown", throttled(ErrCooldown, policy.Cooldown-since)
		}
	}

	code, err := generateCode()
	if err != nil {
		return nil, "error", err
	}

	rec := &otp.Record{
		ID:        uuid.NewString(),
		Phone:     phone,
		CodeHash:  hashCode(s.opts.Secret, phone, code),
		ExpiresAt: now.Add(policy.CodeTTL),
		CreatedAt: now,
	}
	if err := s.Repo.Create(ctx, rec); err != nil {
		return nil, "error", err
	}

	message := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(policy.CodeTTL/time.Minute))
	if err := s.Sender.Send(ctx, phone, message); err != nil {
		s.log.Error("sms dispatch failed", zap.String("phone", phone), zap.Error(err))
		if delErr := s.Repo.Delete(context.WithoutCancel(ctx), rec.ID); delErr != nil {
			s.log.Error("failed to remove undelivered otp record", zap.String("id", rec.ID), zap.Error(delErr))
		}
		return nil, "dispatch_failed", fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	s.log.Info("otp issued", zap.String("phone", phone), zap.Time("expires_at", rec.ExpiresAt))

	res := &RequestResult{
		Phone:     phone,
		ExpiresIn: int(policy.CodeTTL / time.Second),
	}
	if s.opts.ExposeCode {
		res.DebugCode = code
	}
	return res, "issued", nil
}

func (s *Service) VerifyCode(ctx context.Context, rawPhone, code string) (*VerifyResult, error) {
	res, outcome, err := s.verifyCode(ctx, rawPhone, code)
	metrics.OTPVerificationsTotal.WithLabelValues(outcome).Inc()
	return res, err
}

func (s *Service) verifyCode(ctx context.Context, rawPhone, code string) (*VerifyResult, string, error) {
	policy := s.opts.Policy

	phone, err := NormalizePhone(rawPhone, s.opts.DefaultRegion)
	if err != nil {
		return nil, "invalid_phone", err
	}
	if !validCodeFormat(code) {
		return nil, "invalid_code", ErrInvalidCode
	}

	now := s.now()

	rec, err := s.Repo.Latest(ctx, phone)
	if err != nil {
		return nil, "error", err
	}
	if rec == nil || rec.Consumed() || rec.ExpiredAt(now) {
		return nil, "no_active_code", ErrNoActiveCode
	}
	if rec.LockedAt(now) {
		return nil, "locked", throttled(ErrLocked, rec.LockedUntil.Sub(now))
	}

	if !codeMatches(s.opts.Secret, phone, code, rec.CodeHash) {
		// счётчик увеличивается в базе, параллельные попытки не теряются
		attempts, err := s.Repo.RecordFailure(ctx, rec.ID, policy.MaxAttempts, now.Add(policy.LockDuration))
		if err != nil {
			return nil, "error", err
		}
		if attempts >= policy.MaxAttempts {
			s.log.Warn("phone locked after failed verifications",
				zap.String("phone", phone),
				zap.Int("attempts", attempts),
			)
			return nil, "locked", throttled(ErrLocked, policy.LockDuration)
		}
		return nil, "mismatch", fmt.Errorf("%w: %d attempts left", ErrInvalidCode, policy.MaxAttempts-attempts)
	}

	ok, err := s.Repo.MarkConsumed(ctx, rec.ID, now)
	if err != nil {
		return nil, "error", err
	}
	if !ok {
		// код уже использован или запись заблокирована параллельным запросом
		return nil, "no_active_code", ErrNoActiveCode
	}

	s.log.Info("phone verified", zap.String("phone", phone))
	return &VerifyResult{Phone: phone}, "verified", nil
}
