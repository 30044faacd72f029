// Package auth issues and verifies the signed bearer credentials that
// gate every mutating request.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Header is the request header the credential travels in.
const Header = "X-Auth-Token"

// Error kinds returned by Authenticate. Credential problems map to 401
// outward; a verification fault maps to 500 and never leaks its cause.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrVerificationFault = errors.New("credential verification fault")
)

// claims is the fixed shape of the token payload. Only the user id is
// trusted; anything else a token carries is ignored.
type claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies credentials with a process-wide secret
// injected once at construction. It is stateless and safe for concurrent
// use.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

func New(secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: ttl}
}

// Issue signs a credential asserting userID, valid for the configured TTL.
func (a *Authenticator) Issue(userID string) (string, error) {
	now := time.Now()
	c := claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies the raw header value and returns the user id the
// credential asserts. A missing value fails with ErrMissingCredential, a
// bad signature or expiry with ErrInvalidCredential, and anything
// unexpected (malformed encoding included) with ErrVerificationFault.
func (a *Authenticator) Authenticate(raw string) (string, error) {
	if raw == "" {
		return "", ErrMissingCredential
	}
	tok, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return "", ErrInvalidCredential
	default:
		return "", ErrVerificationFault
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid || c.UserID == "" {
		return "", ErrInvalidCredential
	}
	return c.UserID, nil
}
