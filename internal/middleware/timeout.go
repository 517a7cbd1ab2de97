package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// Timeout bounds handler time so a stalled store or mail relay cannot hold
// a request open. The timeout body is the usual error envelope.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	body, err := json.Marshal(failureEnvelope("REQUEST_TIMEOUT", "request timed out"))
	if err != nil {
		body = []byte(`{"success":false}`)
	}
	message := string(body)

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}
