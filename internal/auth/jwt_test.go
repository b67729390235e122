package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator() *Authenticator {
	return NewAuthenticator("test-secret", "admin", "s3cret")
}

func TestIssueAndValidate(t *testing.T) {
	a := newTestAuthenticator()

	token, err := a.Issue("admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, 3600, token.ExpiresIn)

	claims, err := a.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.ClientID)
	assert.Equal(t, "admin", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestIssueRejectsBadCredentials(t *testing.T) {
	a := newTestAuthenticator()

	for _, creds := range [][2]string{{"admin", "wrong"}, {"other", "s3cret"}, {"", ""}} {
		_, err := a.Issue(creds[0], creds[1])
		assert.ErrorIs(t, err, ErrInvalidCredentials, creds)
	}

	unconfigured := NewAuthenticator("test-secret", "", "")
	_, err := unconfigured.Issue("", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestIssueNeedsSecret(t *testing.T) {
	a := NewAuthenticator("", "admin", "s3cret")

	_, err := a.Issue("admin", "s3cret")
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = a.Validate("anything")
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestValidateRejects(t *testing.T) {
	a := newTestAuthenticator()
	sign := func(method jwt.SigningMethod, key []byte, claims Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	for name, token := range map[string]string{
		"garbage": "not-a-token",
		"expired": sign(jwt.SigningMethodHS256, a.secret, Claims{ClientID: "admin", RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}),
		"other key":      sign(jwt.SigningMethodHS256, []byte("other"), Claims{ClientID: "admin", RegisteredClaims: valid}),
		"wrong method":   sign(jwt.SigningMethodHS512, a.secret, Claims{ClientID: "admin", RegisteredClaims: valid}),
		"missing client": sign(jwt.SigningMethodHS256, a.secret, Claims{RegisteredClaims: valid}),
		"foreign client": sign(jwt.SigningMethodHS256, a.secret, Claims{ClientID: "intruder", RegisteredClaims: valid}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Validate(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestValidateUsesClock(t *testing.T) {
	a := newTestAuthenticator()
	token, err := a.Issue("admin", "s3cret")
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(2 * DefaultTokenTTL) }
	_, err = a.Validate(token.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireBearer(t *testing.T) {
	a := newTestAuthenticator()
	token, err := a.Issue("admin", "s3cret")
	require.NoError(t, err)

	var seen string
	handler := a.RequireBearer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientID(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, tc := range []struct {
		name      string
		header    string
		status    int
		challenge string
	}{
		{"no header", "", http.StatusUnauthorized, `Bearer error="invalid_request"`},
		{"basic auth", "Basic YWRtaW46c2VjcmV0", http.StatusUnauthorized, `Bearer error="invalid_request"`},
		{"bad token", "Bearer nope", http.StatusUnauthorized, `Bearer error="invalid_token"`},
		{"valid token", "Bearer " + token.AccessToken, http.StatusNoContent, ""},
		{"lowercase scheme", "bearer " + token.AccessToken, http.StatusNoContent, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/_info/entities", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.challenge, rec.Header().Get("WWW-Authenticate"))
			if tc.status == http.StatusNoContent {
				assert.Equal(t, "admin", seen)
			} else {
				assert.Empty(t, seen)
			}
		})
	}
}

func TestClientIDWithoutClaims(t *testing.T) {
	assert.Empty(t, ClientID(httptest.NewRequest(http.MethodGet, "/", nil)))
}
