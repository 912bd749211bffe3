package responders

import (
	"encoding/json"
	"net/http"
)

// Envelope wraps successful payloads as {"data": ...}.
type Envelope struct {
	Data any `json:"data"`
}

// JSON writes an application/json response with status code and payload.
// A nil payload writes headers only.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

// Data writes payload inside the data envelope.
func Data(w http.ResponseWriter, status int, payload any) {
	JSON(w, status, Envelope{Data: payload})
}

// NoContent writes an empty response with the given status.
func NoContent(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}
