// Package httpx provides JSON response utilities shared by the API handlers.
package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorBody is the failure envelope. It never carries internal detail.
type ErrorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends a failure envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Status: status, Message: message})
}

// DecodeJSON decodes the request body into target, rejecting unknown fields.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
