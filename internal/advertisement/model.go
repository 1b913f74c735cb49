package advertisement

import (
	"time"
)

type Placement string

const (
	PlacementHomePopup     Placement = "HOME_POPUP"
	PlacementHomeBanner    Placement = "HOME_BANNER"
	PlacementListingInline Placement = "LISTING_INLINE"
	PlacementDetailSidebar Placement = "DETAIL_SIDEBAR"
)

var placements = map[Placement]struct{}{
	PlacementHomePopup:     {},
	PlacementHomeBanner:    {},
	PlacementListingInline: {},
	PlacementDetailSidebar: {},
}

func (p Placement) Valid() bool {
	_, ok := placements[p]
	return ok
}

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusPaused Status = "PAUSED"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusPaused
}

type EventType string

const (
	EventView  EventType = "VIEW"
	EventClick EventType = "CLICK"
)

func (e EventType) Valid() bool {
	return e == EventView || e == EventClick
}

type Advertisement struct {
	ID         int64      `json:"id" db:"id"`
	Title      string     `json:"title" db:"title"`
	ImageURL   string     `json:"image_url" db:"image_url"`
	TargetURL  string     `json:"target_url" db:"target_url"`
	Placement  Placement  `json:"placement" db:"placement"`
	Status     Status     `json:"status" db:"status"`
	Priority   int        `json:"priority" db:"priority"` // чем больше, тем раньше показывается
	StartDate  *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate    *time.Time `json:"end_date,omitempty" db:"end_date"`
	ViewCount  int64      `json:"view_count" db:"view_count"`
	ClickCount int64      `json:"click_count" db:"click_count"`
	MaxViews   *int64     `json:"max_views,omitempty" db:"max_views"`   // nil: без ограничения
	MaxClicks  *int64     `json:"max_clicks,omitempty" db:"max_clicks"` // nil: без ограничения
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// CapReached reports whether either configured cap has been hit.
func (a *Advertisement) CapReached() bool {
	if a.MaxViews != nil && a.ViewCount >= *a.MaxViews {
		return true
	}
	if a.MaxClicks != nil && a.ClickCount >= *a.MaxClicks {
		return true
	}
	return false
}

// Tags are the optional dimensions attached to an analytics event.
type Tags struct {
	Device   string `json:"device,omitempty"`
	Source   string `json:"source,omitempty"`
	Location string `json:"location,omitempty"`
}

type AnalyticsEvent struct {
	ID              string    `json:"id" db:"id"`
	AdvertisementID int64     `json:"advertisement_id" db:"advertisement_id"`
	EventType       EventType `json:"event_type" db:"event_type"`
	Device          *string   `json:"device,omitempty" db:"device"`
	Source          *string   `json:"source,omitempty" db:"source"`
	Location        *string   `json:"location,omitempty" db:"location"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Stats summarises an advertisement's counters and its event log.
type Stats struct {
	AdvertisementID int64     `json:"advertisement_id"`
	Status          Status    `json:"status"`
	ViewCount       int64     `json:"view_count"`
	ClickCount      int64     `json:"click_count"`
	Since           time.Time `json:"since"`
	ViewEvents      int64     `json:"view_events"`
	ClickEvents     int64     `json:"click_events"`
	CTR             string    `json:"ctr"`
}
