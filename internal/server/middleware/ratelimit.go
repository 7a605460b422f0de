package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit limits requests per caller to the given budget per minute over
// a sliding window. Requests carrying an X-API-Key header are bucketed by
// key, so one noisy integration cannot exhaust the budget of clients behind
// the same NAT; everything else falls back to the client IP.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if key := r.Header.Get("X-API-Key"); key != "" {
				return key, nil
			}
			return httprate.KeyByIP(r)
		}),
	)
}
