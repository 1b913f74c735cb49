package dto

import "time"

type RequestCodeRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
}

type RequestCodeResponse struct {
	Phone     string `json:"phone"`
	ExpiresIn int    `json:"expires_in"` // секунды
	DebugCode string `json:"debug_code,omitempty"`
}

type VerifyCodeRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type VerifyCodeResponse struct {
	Phone     string    `json:"phone"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionResponse struct {
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expires_at"`
}
