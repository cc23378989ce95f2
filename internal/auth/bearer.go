package auth

import (
	"net/http"
	"strings"
)

// BearerToken returns the credential from an "Authorization: Bearer <token>"
// header, or "" when the header is missing or uses another scheme.
// The scheme name is matched case-insensitively, as RFC 6750 allows.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
