package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"motelhub/internal/advertisement"
	"motelhub/internal/advertisement/service"
	"motelhub/internal/api"
	"motelhub/internal/api/dto"
)

const defaultStatsWindow = 30 * 24 * time.Hour

type Handler struct {
	Service *service.Service
	log     *zap.Logger
}

func NewHandler(s *service.Service, log *zap.Logger) *Handler {
	return &Handler{Service: s, log: log}
}

// Публичные маршруты

func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	placement := advertisement.Placement(r.URL.Query().Get("placement"))

	ads, err := h.Service.ListActive(r.Context(), placement, h.Service.Now())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"advertisements": ads})
}

func (h *Handler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req dto.TrackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.WriteValidationError(w, err)
		return
	}

	res, err := h.Service.TrackEvent(r.Context(), id, advertisement.EventType(req.EventType), advertisement.Tags{
		Device:   req.Device,
		Source:   req.Source,
		Location: req.Location,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusAccepted, res)
}

// Click records a CLICK in the background and redirects to the ad's target.
func (h *Handler) Click(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ad, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if ad.TargetURL == "" {
		api.WriteError(w, http.StatusNotFound, "advertisement has no target url")
		return
	}

	h.Service.TrackAsync(r.Context(), id, advertisement.EventClick, advertisement.Tags{
		Device: r.URL.Query().Get("device"),
		Source: r.URL.Query().Get("source"),
	})

	http.Redirect(w, r, ad.TargetURL, http.StatusFound)
}

// Маршруты администратора

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAdvertisementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.WriteValidationError(w, err)
		return
	}

	ad, err := h.Service.Create(r.Context(), service.CreateInput{
		Title:     req.Title,
		ImageURL:  req.ImageURL,
		TargetURL: req.TargetURL,
		Placement: advertisement.Placement(req.Placement),
		Status:    advertisement.Status(req.Status),
		Priority:  req.Priority,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		MaxViews:  req.MaxViews,
		MaxClicks: req.MaxClicks,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, ad)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ad, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, ad)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.WriteValidationError(w, err)
		return
	}

	ad, err := h.Service.SetStatus(r.Context(), id, advertisement.Status(req.Status))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, ad)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	since := h.Service.Now().Add(-defaultStatsWindow)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		since = parsed
	}

	stats, err := h.Service.Stats(r.Context(), id, since)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, stats)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		api.WriteError(w, http.StatusBadRequest, "invalid advertisement id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		api.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidPlacement),
		errors.Is(err, service.ErrInvalidEventType),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidInput):
		api.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCapReached):
		api.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("advertisement request failed", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
