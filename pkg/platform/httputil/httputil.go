// Package httputil writes JSON responses in the membership envelope.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "membership/pkg/domain-errors"
)

const msgInternal = "Internal server error"

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes a successful envelope with data.
func WriteJSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, envelope{Success: true, Message: message, Data: data})
}

// WriteError translates err into a status and failure envelope. Messages of
// client errors are returned; server errors get a generic message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.HTTPStatus(code)
	message := msgInternal
	if dErrors.IsClientError(code) {
		message = dErrors.MessageOf(err, http.StatusText(status))
	}
	write(w, status, envelope{Message: message})
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
