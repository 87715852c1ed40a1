// Package responders holds the small response-writing helpers shared by the
// relay's handlers.
package responders

import (
	"encoding/json"
	"net/http"
)

// JSON writes an application/json response with the given status and payload.
// HTML escaping is off: payment requirement documents carry URLs and wallet
// addresses that must reach clients byte for byte.
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
