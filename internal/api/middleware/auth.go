// internal/api/middleware/auth.go
package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/newthinker/zhunle/internal/api/response"
	"github.com/newthinker/zhunle/internal/core"
)

const (
	// APIKeyHeader carries the key for the JSON endpoints.
	APIKeyHeader = "X-API-Key"
	bearerPrefix = "Bearer "
)

var (
	errMissingKey = errors.New("missing " + APIKeyHeader + " header")
	errWrongKey   = errors.New("api key mismatch")
)

// APIKeyAuth guards the JSON endpoints. The key may arrive in X-API-Key or
// as an Authorization bearer token. An empty apiKey disables the check.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	want := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := keyFromRequest(r)
			switch {
			case got == "":
				deny(w, errMissingKey)
			case subtle.ConstantTimeCompare([]byte(got), want) != 1:
				deny(w, errWrongKey)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func keyFromRequest(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix))
	}
	return ""
}

func deny(w http.ResponseWriter, cause error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="zhunle"`)
	response.Error(w, http.StatusUnauthorized, core.WrapError(core.ErrUnauthorized, cause))
}
