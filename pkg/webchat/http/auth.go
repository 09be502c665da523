package webhttp

import (
	"context"
	"net/http"
	"strings"
)

// AccessCodes is the configured allow-list. Codes are matched
// case-insensitively by uppercasing both sides.
type AccessCodes struct {
	codes map[string]struct{}
}

// NewAccessCodes builds an allow-list from a comma-separated string.
func NewAccessCodes(csv string) *AccessCodes {
	codes := map[string]struct{}{}
	for _, c := range strings.Split(csv, ",") {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			codes[c] = struct{}{}
		}
	}
	return &AccessCodes{codes: codes}
}

func (a *AccessCodes) Contains(code string) bool {
	if a == nil {
		return false
	}
	_, ok := a.codes[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

type contextKey string

const accessCodeKey contextKey = "accessCode"

// AccessCodeFromContext returns the authenticated access code, or "".
func AccessCodeFromContext(ctx context.Context) string {
	code, _ := ctx.Value(accessCodeKey).(string)
	return code
}

// RequireAccessCode rejects requests whose bearer token is not on the
// allow-list and stashes the normalized code in the request context.
func RequireAccessCode(codes *AccessCodes, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		token = strings.ToUpper(strings.TrimSpace(token))
		if token == "" || !codes.Contains(token) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": "Invalid access code. Please check your code and try again.",
			})
			return
		}
		ctx := context.WithValue(req.Context(), accessCodeKey, token)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// CORS allows the browser extension to call the API from any origin.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}
