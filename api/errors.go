package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Stable machine-readable error codes. Authentication failures share one
// generic code so responses do not reveal which check failed; the precise
// reason stays in the internal security event.
const (
	CodeSessionInvalid = "SESSION_INVALID"
	CodeRateLimited    = "RATE_LIMITED"
	CodeBadRequest     = "BAD_REQUEST"
	CodeForbidden      = "FORBIDDEN"
	CodeNotFound       = "NOT_FOUND"
	CodeInternal       = "INTERNAL"
)

// ErrorResponse is the JSON body for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// writeUnauthorized sends the uniform 401. Every authentication or session
// failure produces this exact response.
func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, CodeSessionInvalid, "authentication required")
}

// writeRateLimited sends a 429 with a Retry-After header.
func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests; try again later")
}
