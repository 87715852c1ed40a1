package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/relay402/server/internal/errors"
	"github.com/relay402/server/pkg/responders"
)

// SetHeaders writes the standard rate limit headers for a limiter result.
// Skipped entirely for unlimited endpoints (Remaining < 0).
func SetHeaders(w http.ResponseWriter, result Result) {
	if result.Remaining < 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// Write429 writes the rate limited response. Retry-After is rounded up to a
// whole second, never below one.
func Write429(w http.ResponseWriter, result Result, now time.Time) {
	SetHeaders(w, result)

	retryAfter := int(math.Ceil(result.ResetAt.Sub(now).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	body := errors.NewErrorResponse(errors.ErrCodeRateLimitExceeded, "rate limit exceeded", map[string]any{
		"retryAfter": retryAfter,
	})
	responders.JSON(w, http.StatusTooManyRequests, body)
}
