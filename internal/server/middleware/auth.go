package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// KeyAuth guards privileged routes with static API keys: the resolver key
// for lifecycle operations (approve, start, settle, cancel) and the owner
// key for the admin surface. Account identity for public routes comes from
// the request body, not from here.
type KeyAuth struct {
	OwnerKey    string
	ResolverKey string
}

// Resolver requires the resolver key. The owner key is accepted too, so the
// operator can drive resolver operations by hand. If no resolver key is
// configured, the check is disabled.
func (a KeyAuth) Resolver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.ResolverKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := extractToken(r)
		if token == "" {
			writeUnauthorized(w, "missing authentication token")
			return
		}
		if !keyMatches(token, a.ResolverKey) && !keyMatches(token, a.OwnerKey) {
			writeUnauthorized(w, "invalid authentication token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Owner requires the owner key. If no owner key is configured, the check is
// disabled.
func (a KeyAuth) Owner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.OwnerKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := extractToken(r)
		if token == "" {
			writeUnauthorized(w, "missing authentication token")
			return
		}
		if !keyMatches(token, a.OwnerKey) {
			writeUnauthorized(w, "invalid authentication token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// keyMatches compares in constant time to prevent timing attacks. An empty
// configured key never matches.
func keyMatches(token, key string) bool {
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
