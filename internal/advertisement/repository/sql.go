package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"motelhub/internal/advertisement"
)

const adColumns = `id, title, image_url, target_url, placement, status, priority, start_date, end_date,
	view_count, click_count, max_views, max_clicks, created_at, updated_at`

// Repository works on top of either *sqlx.DB or *sqlx.Tx. Queries are written
// with '?' placeholders and rebound for the connected driver.
type Repository struct {
	db sqlx.ExtContext
}

func NewRepository(db sqlx.ExtContext) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, ad *advertisement.Advertisement) error {
	query := r.db.Rebind(`
		INSERT INTO advertisements (title, image_url, target_url, placement, status, priority,
			start_date, end_date, view_count, click_count, max_views, max_clicks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?, ?) RETURNING id`)

	return r.db.QueryRowxContext(ctx, query,
		ad.Title, ad.ImageURL, ad.TargetURL, ad.Placement, ad.Status, ad.Priority,
		ad.StartDate, ad.EndDate, ad.MaxViews, ad.MaxClicks, ad.CreatedAt, ad.UpdatedAt,
	).Scan(&ad.ID)
}

// GetByID returns sql.ErrNoRows when the advertisement does not exist.
func (r *Repository) GetByID(ctx context.Context, id int64) (*advertisement.Advertisement, error) {
	ad := &advertisement.Advertisement{}
	query := r.db.Rebind(`SELECT ` + adColumns + ` FROM advertisements WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.db, ad, query, id); err != nil {
		return nil, err
	}
	return ad, nil
}

func (r *Repository) AppendEvent(ctx context.Context, ev *advertisement.AnalyticsEvent) error {
	query := r.db.Rebind(`
		INSERT INTO ad_analytics_events (id, advertisement_id, event_type, device, source, location, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.AdvertisementID, ev.EventType, ev.Device, ev.Source, ev.Location, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// IncrementCounter bumps the view or click counter of an ACTIVE advertisement
// that is still below its cap. It reports false when nothing changed.
func (r *Repository) IncrementCounter(ctx context.Context, id int64, eventType advertisement.EventType, now time.Time) (bool, error) {
	column, limit := "view_count", "max_views"
	if eventType == advertisement.EventClick {
		column, limit = "click_count", "max_clicks"
	}

	query := r.db.Rebind(`UPDATE advertisements SET ` + column + ` = ` + column + ` + 1, updated_at = ?
		WHERE id = ? AND status = ? AND (` + limit + ` IS NULL OR ` + column + ` < ` + limit + `)`)
	res, err := r.db.ExecContext(ctx, query, now, id, advertisement.StatusActive)
	if err != nil {
		return false, fmt.Errorf("increment %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PauseIfActive moves an ACTIVE advertisement to PAUSED and reports whether it did.
func (r *Repository) PauseIfActive(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := r.db.Rebind(`UPDATE advertisements SET status = ?, updated_at = ? WHERE id = ? AND status = ?`)
	res, err := r.db.ExecContext(ctx, query, advertisement.StatusPaused, now, id, advertisement.StatusActive)
	if err != nil {
		return false, fmt.Errorf("pause advertisement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) SetStatus(ctx context.Context, id int64, status advertisement.Status, now time.Time) error {
	query := r.db.Rebind(`UPDATE advertisements SET status = ?, updated_at = ? WHERE id = ?`)
	_, err := r.db.ExecContext(ctx, query, status, now, id)
	return err
}

// ListActive applies the display window and the cap check in SQL, so an ad
// whose pause has not landed yet is still filtered out.
func (r *Repository) ListActive(ctx context.Context, placement advertisement.Placement, now time.Time) ([]advertisement.Advertisement, error) {
	query := r.db.Rebind(`SELECT ` + adColumns + ` FROM advertisements
		WHERE placement = ?
		  AND status = ?
		  AND (start_date IS NULL OR start_date <= ?)
		  AND (end_date IS NULL OR end_date >= ?)
		  AND (max_views IS NULL OR view_count < max_views)
		  AND (max_clicks IS NULL OR click_count < max_clicks)
		ORDER BY priority DESC, created_at DESC, id DESC`)

	ads := []advertisement.Advertisement{}
	if err := sqlx.SelectContext(ctx, r.db, &ads, query, placement, advertisement.StatusActive, now, now); err != nil {
		return nil, fmt.Errorf("list active advertisements: %w", err)
	}
	return ads, nil
}

// CountEvents counts logged events per type for one advertisement since a point in time.
func (r *Repository) CountEvents(ctx context.Context, id int64, since time.Time) (map[advertisement.EventType]int64, error) {
	query := r.db.Rebind(`SELECT event_type, COUNT(*) FROM ad_analytics_events
		WHERE advertisement_id = ? AND created_at >= ?
		GROUP BY event_type`)

	rows, err := r.db.QueryxContext(ctx, query, id, since)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := map[advertisement.EventType]int64{}
	for rows.Next() {
		var (
			eventType advertisement.EventType
			n         int64
		)
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, err
		}
		counts[eventType] = n
	}
	return counts, rows.Err()
}
