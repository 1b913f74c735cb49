package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"motelhub/internal/advertisement"
	"motelhub/internal/advertisement/repository"
	"motelhub/internal/metrics"
)

var (
	ErrNotFound         = errors.New("advertisement not found")
	ErrInvalidPlacement = errors.New("unknown placement")
	ErrInvalidEventType = errors.New("event type must be VIEW or CLICK")
	ErrInvalidStatus    = errors.New("status must be ACTIVE or PAUSED")
	ErrInvalidInput     = errors.New("invalid advertisement")
	ErrCapReached       = errors.New("advertisement has reached its view or click cap")
)

const (
	maxTagLen     = 64
	asyncTrackTTL = 5 * time.Second
)

type TrackResult struct {
	Advertisement *advertisement.Advertisement `json:"advertisement"`
	Counted       bool                         `json:"counted"`
	Paused        bool                         `json:"paused"`
}

type CreateInput struct {
	Title     string
	ImageURL  string
	TargetURL string
	Placement advertisement.Placement
	Status    advertisement.Status
	Priority  int
	StartDate *time.Time
	EndDate   *time.Time
	MaxViews  *int64
	MaxClicks *int64
}

type Service struct {
	DB   *sqlx.DB
	Repo *repository.Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewService(db *sqlx.DB, log *zap.Logger) *Service {
	return &Service{
		DB:   db,
		Repo: repository.NewRepository(db),
		log:  log,
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TrackEvent records one VIEW or CLICK. The event row, the counter update and a
// possible auto-pause are committed together.
func (s *Service) TrackEvent(ctx context.Context, id int64, eventType advertisement.EventType, tags advertisement.Tags) (*TrackResult, error) {
	if !eventType.Valid() {
		return nil, ErrInvalidEventType
	}
	if len(tags.Device) > maxTagLen || len(tags.Source) > maxTagLen || len(tags.Location) > maxTagLen {
		return nil, fmt.Errorf("%w: tags must be at most %d characters", ErrInvalidInput, maxTagLen)
	}

	now := s.now()

	tx, err := s.beginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	txRepo := repository.NewRepository(tx)

	if _, err := txRepo.GetByID(ctx, id); err != nil {
		s.rollback(tx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	ev := &advertisement.AnalyticsEvent{
		ID:              uuid.NewString(),
		AdvertisementID: id,
		EventType:       eventType,
		Device:          optional(tags.Device),
		Source:          optional(tags.Source),
		Location:        optional(tags.Location),
		CreatedAt:       now,
	}
	if err := txRepo.AppendEvent(ctx, ev); err != nil {
		s.rollback(tx)
		return nil, err
	}

	// Счётчик растёт только у ACTIVE объявления ниже лимита
	counted, err := txRepo.IncrementCounter(ctx, id, eventType, now)
	if err != nil {
		s.rollback(tx)
		return nil, err
	}

	ad, err := txRepo.GetByID(ctx, id)
	if err != nil {
		s.rollback(tx)
		return nil, err
	}

	paused := false
	if ad.Status == advertisement.StatusActive && ad.CapReached() {
		paused, err = txRepo.PauseIfActive(ctx, id, now)
		if err != nil {
			s.rollback(tx)
			return nil, err
		}
		if paused {
			ad.Status = advertisement.StatusPaused
			ad.UpdatedAt = now
		}
	}

	if err := s.commit(tx); err != nil {
		return nil, err
	}

	metrics.AdEventsTotal.WithLabelValues(string(eventType), strconv.FormatBool(counted)).Inc()
	if paused {
		metrics.AdAutoPausedTotal.WithLabelValues(string(ad.Placement)).Inc()
		s.log.Info("advertisement auto-paused",
			zap.Int64("ad_id", id),
			zap.String("placement", string(ad.Placement)),
			zap.Int64("view_count", ad.ViewCount),
			zap.Int64("click_count", ad.ClickCount),
		)
	}

	return &TrackResult{Advertisement: ad, Counted: counted, Paused: paused}, nil
}

// TrackAsync tracks an event without holding up the caller. Failures are
// logged and counted only.
func (s *Service) TrackAsync(ctx context.Context, id int64, eventType advertisement.EventType, tags advertisement.Tags) <-chan struct{} {
	done := make(chan struct{})
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(ctx, asyncTrackTTL)
		defer cancel()

		if _, err := s.TrackEvent(ctx, id, eventType, tags); err != nil {
			metrics.AdTrackFailuresTotal.Inc()
			s.log.Warn("advertisement tracking failed",
				zap.Int64("ad_id", id),
				zap.String("event_type", string(eventType)),
				zap.Error(err),
			)
		}
	}()

	return done
}

func (s *Service) ListActive(ctx context.Context, placement advertisement.Placement, now time.Time) ([]advertisement.Advertisement, error) {
	if !placement.Valid() {
		return nil, ErrInvalidPlacement
	}
	return s.Repo.ListActive(ctx, placement, now.UTC())
}

func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*advertisement.Advertisement, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !in.Placement.Valid() {
		return nil, ErrInvalidPlacement
	}
	if in.Status == "" {
		in.Status = advertisement.StatusActive
	}
	if !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, fmt.Errorf("%w: end_date is before start_date", ErrInvalidInput)
	}
	if (in.MaxViews != nil && *in.MaxViews < 0) || (in.MaxClicks != nil && *in.MaxClicks < 0) {
		return nil, fmt.Errorf("%w: caps must not be negative", ErrInvalidInput)
	}

	now := s.now()
	ad := &advertisement.Advertisement{
		Title:     in.Title,
		ImageURL:  in.ImageURL,
		TargetURL: in.TargetURL,
		Placement: in.Placement,
		Status:    in.Status,
		Priority:  in.Priority,
		StartDate: utc(in.StartDate),
		EndDate:   utc(in.EndDate),
		MaxViews:  in.MaxViews,
		MaxClicks: in.MaxClicks,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// нулевой лимит исчерпан сразу
	if ad.Status == advertisement.StatusActive && ad.CapReached() {
		ad.Status = advertisement.StatusPaused
	}

	if err := s.Repo.Create(ctx, ad); err != nil {
		return nil, fmt.Errorf("create advertisement: %w", err)
	}
	return ad, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*advertisement.Advertisement, error) {
	ad, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ad, nil
}

// SetStatus is the operator's manual pause/resume. An ad that already hit a
// cap cannot be resumed; its caps have to be raised first.
func (s *Service) SetStatus(ctx context.Context, id int64, status advertisement.Status) (*advertisement.Advertisement, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	ad, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if status == advertisement.StatusActive && ad.CapReached() {
		return nil, ErrCapReached
	}
	if ad.Status == status {
		return ad, nil
	}

	now := s.now()
	if err := s.Repo.SetStatus(ctx, id, status, now); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	ad.Status = status
	ad.UpdatedAt = now

	s.log.Info("advertisement status changed", zap.Int64("ad_id", id), zap.String("status", string(status)))
	return ad, nil
}

func (s *Service) Stats(ctx context.Context, id int64, since time.Time) (*advertisement.Stats, error) {
	ad, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	counts, err := s.Repo.CountEvents(ctx, id, since.UTC())
	if err != nil {
		return nil, err
	}

	return &advertisement.Stats{
		AdvertisementID: ad.ID,
		Status:          ad.Status,
		ViewCount:       ad.ViewCount,
		ClickCount:      ad.ClickCount,
		Since:           since.UTC(),
		ViewEvents:      counts[advertisement.EventView],
		ClickEvents:     counts[advertisement.EventClick],
		CTR:             clickThroughRate(ad.ClickCount, ad.ViewCount),
	}, nil
}

// clickThroughRate returns clicks/views rounded to four places, "0" without views.
func clickThroughRate(clicks, views int64) string {
	if views == 0 {
		return decimal.Zero.String()
	}
	return decimal.NewFromInt(clicks).DivRound(decimal.NewFromInt(views), 4).String()
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC().Truncate(time.Microsecond)
	return &u
}

// Вспомогательные функции для транзакций
func (s *Service) beginTransaction(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Service) rollback(tx *sqlx.Tx) {
	if tx != nil {
		tx.Rollback()
	}
}

func (s *Service) commit(tx *sqlx.Tx) error {
	if tx != nil {
		return tx.Commit()
	}
	return nil
}
