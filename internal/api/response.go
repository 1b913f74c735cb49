package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse стандартный формат для ошибок
type ErrorResponse struct {
	Error      string      `json:"error"`
	Field      string      `json:"field,omitempty"`
	Value      interface{} `json:"value,omitempty"`
	RetryAfter int         `json:"retry_after,omitempty"` // секунды
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteThrottled answers 429 with both the Retry-After header and the body hint.
func WriteThrottled(w http.ResponseWriter, msg string, retryAfter time.Duration) {
	secs := RetryAfterSeconds(retryAfter)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: msg, RetryAfter: secs})
}

// RetryAfterSeconds rounds up so clients never retry early; never below 1.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// WriteValidationError reports the first failing field of a validator error.
func WriteValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid value for " + fe.Field() + ": failed '" + fe.Tag() + "'",
			Field: fe.Field(),
			Value: fe.Value(),
		})
		return
	}
	WriteError(w, http.StatusBadRequest, err.Error())
}
