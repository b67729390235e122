// internal/auth/jwt.go
package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long an issued access token stays valid.
const DefaultTokenTTL = time.Hour

var (
	ErrNoSecret           = errors.New("JWT secret not set")
	ErrInvalidCredentials = errors.New("invalid client credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims is the access token payload. Subject mirrors ClientID.
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// Token is the client-credentials grant response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticator issues HS256 tokens to the one configured API client and
// validates them on secured routes.
type Authenticator struct {
	secret       []byte
	clientID     string
	clientSecret string
	ttl          time.Duration
	now          func() time.Time
}

func NewAuthenticator(secret, clientID, clientSecret string) *Authenticator {
	return &Authenticator{
		secret:       []byte(secret),
		clientID:     clientID,
		clientSecret: clientSecret,
		ttl:          DefaultTokenTTL,
		now:          time.Now,
	}
}

// Issue exchanges client credentials for an access token.
func (a *Authenticator) Issue(clientID, clientSecret string) (*Token, error) {
	if !a.checkCredentials(clientID, clientSecret) {
		return nil, ErrInvalidCredentials
	}
	signed, err := a.sign(clientID)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresIn: int(a.ttl.Seconds())}, nil
}

func (a *Authenticator) sign(clientID string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrNoSecret
	}
	now := a.now()
	claims := Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Validate parses tokenStr and checks signature, method, expiry and client.
func (a *Authenticator) Validate(tokenStr string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, ErrNoSecret
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.ClientID == "" || claims.ClientID != a.clientID {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// checkCredentials compares in constant time. An unconfigured client never
// matches.
func (a *Authenticator) checkCredentials(clientID, clientSecret string) bool {
	if a.clientID == "" || a.clientSecret == "" {
		return false
	}
	idOK := subtle.ConstantTimeCompare([]byte(clientID), []byte(a.clientID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(clientSecret), []byte(a.clientSecret)) == 1
	return idOK && secretOK
}
