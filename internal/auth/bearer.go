package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey struct{}

// RequireBearer rejects requests without a valid access token and stores the
// token's claims in the request context.
func (a *Authenticator) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, tokenStr, found := strings.Cut(r.Header.Get("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || tokenStr == "" {
			challenge(w, "invalid_request", "missing bearer token")
			return
		}

		claims, err := a.Validate(tokenStr)
		if err != nil {
			challenge(w, "invalid_token", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, claims)))
	})
}

func challenge(w http.ResponseWriter, code, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "error_description": description})
}

// ClaimsFrom returns the claims RequireBearer stored, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(contextKey{}).(*Claims)
	return claims
}

// ClientID returns the authenticated client of the request, if any.
func ClientID(r *http.Request) string {
	if claims := ClaimsFrom(r.Context()); claims != nil {
		return claims.ClientID
	}
	return ""
}
