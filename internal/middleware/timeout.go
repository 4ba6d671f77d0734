package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-identity/internal/model"
	"go-identity/pkg/apierror"
)

// Timeout bounds handler time. Handlers still running at the deadline see
// their context cancelled and the client gets a 503 JSON body.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	body, _ := json.Marshal(model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: apierror.CodeTimeout, Message: "request timed out"},
	})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
