package auth

import (
	"net/http"
	"strings"
)

// TokenFromHeader returns the token carried in "Authorization: Bearer <jwt>"
// or, failing that, in the "token" header.
func TokenFromHeader(h http.Header) string {
	if v := strings.TrimSpace(h.Get("Authorization")); v != "" {
		if len(v) > 7 && strings.EqualFold(v[:7], "Bearer ") {
			return strings.TrimSpace(v[7:])
		}
		return v
	}
	return strings.TrimSpace(h.Get("token"))
}
