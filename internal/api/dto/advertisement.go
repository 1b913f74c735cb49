package dto

import "time"

type TrackEventRequest struct {
	EventType string `json:"event_type" validate:"required,oneof=VIEW CLICK"`
	Device    string `json:"device" validate:"omitempty,max=64"`
	Source    string `json:"source" validate:"omitempty,max=64"`
	Location  string `json:"location" validate:"omitempty,max=64"`
}

type CreateAdvertisementRequest struct {
	Title     string     `json:"title" validate:"required,max=255"`
	ImageURL  string     `json:"image_url" validate:"omitempty,url"`
	TargetURL string     `json:"target_url" validate:"omitempty,url"`
	Placement string     `json:"placement" validate:"required,oneof=HOME_POPUP HOME_BANNER LISTING_INLINE DETAIL_SIDEBAR"`
	Status    string     `json:"status" validate:"omitempty,oneof=ACTIVE PAUSED"`
	Priority  int        `json:"priority"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	MaxViews  *int64     `json:"max_views" validate:"omitempty,min=0"`
	MaxClicks *int64     `json:"max_clicks" validate:"omitempty,min=0"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE PAUSED"`
}
