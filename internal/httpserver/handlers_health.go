package httpserver

import (
	"net/http"
	"time"

	"github.com/relay402/server/pkg/responders"
)

// health reports service liveness and uptime.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"service":       "relay402",
		"uptimeSeconds": int64(time.Since(serverStartTime).Seconds()),
	})
}
