package models

import (
	"time"
)

// ErrorResponse is the JSON shape every handler error response shares,
// mirroring internal/errors.AppError.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
