package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"ms-pos/internal/apperr"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Kind      apperr.Kind `json:"kind,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message string, err error) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     apperr.Message(err),
		Kind:      apperr.KindOf(err),
		Timestamp: time.Now(),
	}
}

// WriteJSON writes a success envelope around data.
func WriteJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse(message, data))
}

// WriteError maps err to its HTTP status and writes an error envelope.
func WriteError(w http.ResponseWriter, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(ErrorResponse(message, err))
}
