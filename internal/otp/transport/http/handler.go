package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"motelhub/internal/api"
	"motelhub/internal/api/dto"
	"motelhub/internal/otp/service"
	"motelhub/pkg/jwt"
	"motelhub/pkg/middleware"
)

type Handler struct {
	Service    *service.Service
	JWTSecret  string
	SessionTTL time.Duration
	log        *zap.Logger
}

func NewHandler(s *service.Service, jwtSecret string, sessionTTL time.Duration, log *zap.Logger) *Handler {
	return &Handler{
		Service:    s,
		JWTSecret:  jwtSecret,
		SessionTTL: sessionTTL,
		log:        log,
	}
}

func (h *Handler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req dto.RequestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.WriteValidationError(w, err)
		return
	}

	res, err := h.Service.RequestCode(r.Context(), req.Phone)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, dto.RequestCodeResponse{
		Phone:     res.Phone,
		ExpiresIn: res.ExpiresIn,
		DebugCode: res.DebugCode,
	})
}

func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		api.WriteValidationError(w, err)
		return
	}

	res, err := h.Service.VerifyCode(r.Context(), req.Phone, req.Code)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	token, expiresAt, err := jwt.GenerateToken(h.JWTSecret, res.Phone, h.SessionTTL, time.Now().UTC())
	if err != nil {
		h.log.Error("failed to issue session token", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	api.WriteJSON(w, http.StatusOK, dto.VerifyCodeResponse{
		Phone:     res.Phone,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// Session отдаёт данные сессии; вызывается за middleware.JWTAuth.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		api.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	api.WriteJSON(w, http.StatusOK, dto.SessionResponse{
		Phone:     claims.Phone,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var throttle *service.ThrottleError
	switch {
	case errors.As(err, &throttle):
		api.WriteThrottled(w, err.Error(), throttle.RetryAfter)
	case errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrNoActiveCode):
		api.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDispatchFailed):
		api.WriteError(w, http.StatusBadGateway, service.ErrDispatchFailed.Error())
	default:
		h.log.Error("otp request failed", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
