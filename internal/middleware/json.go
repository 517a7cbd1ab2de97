package middleware

import (
	"encoding/json"
	"net/http"

	"go-auth-service/internal/model"
)

// writeFailure renders the error envelope for responses produced before a
// handler runs.
func writeFailure(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(failureEnvelope(code, message))
}

func failureEnvelope(code string, message string) model.APIResponse {
	return model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: code, Message: message},
	}
}
