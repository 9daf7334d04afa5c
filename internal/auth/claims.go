// ABOUTME: Unverified JWT claim inspection for pre-flight token checks
// ABOUTME: The client holds no secret; decoding is advisory only

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token inspection errors
var (
	ErrNotAJWT      = errors.New("token is not a JWT")
	ErrNoExpiry     = errors.New("token has no expiry claim")
	ErrTokenExpired = errors.New("token expired")
)

// expiryWarningWindow is how close to expiry a token may be before
// Check starts warning.
const expiryWarningWindow = 10 * time.Minute

// Claims are the decoded, UNVERIFIED claims of a backend token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Inspect decodes a JWT's claims without verifying its signature.
func Inspect(tokenString string) (*Claims, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAJWT, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrNotAJWT
	}

	out := &Claims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	return out, nil
}

// Check inspects a token and reports whether it is usable. A nil error
// with a non-empty warning means the request will likely succeed but
// the user should refresh soon. Opaque non-JWT tokens pass unchecked.
func Check(tokenString string) (warning string, err error) {
	if tokenString == "" {
		return "", nil
	}

	claims, err := Inspect(tokenString)
	if err != nil {
		// Not a JWT; the backend may accept opaque tokens.
		return "", nil
	}
	if claims.ExpiresAt.IsZero() {
		return "", nil
	}

	now := time.Now()
	if now.After(claims.ExpiresAt) {
		return "", fmt.Errorf("%w at %s", ErrTokenExpired, claims.ExpiresAt.Format(time.RFC3339))
	}
	if remaining := claims.ExpiresAt.Sub(now); remaining < expiryWarningWindow {
		return fmt.Sprintf("token expires in %s", remaining.Round(time.Second)), nil
	}
	return "", nil
}
