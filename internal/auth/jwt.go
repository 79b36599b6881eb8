// Package auth provides the bearer-credential layer for the notes API:
// JWT generation and validation, the HTTP middleware that gates routes, and
// the OAuth providers used for sign-in.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User hits /api/auth/{provider}/login → redirected to Google/Microsoft
//  2. Provider calls back with a code; the server exchanges it for a profile
//  3. The auth service resolves the profile to a User row (create or merge)
//  4. The server mints a JWT carrying the user's ID and role and hands it to
//     the SPA, which presents it as "Authorization: Bearer <token>" from then on
//  5. Middleware validates the token on each gated request — signature,
//     expiry, issuer — with no DB lookup needed
//
// The token is signed with HS256 against a shared secret. All the information
// a request needs (subject, role, expiry) is inside the signed payload, so
// there is no server-side session state.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the bearer credential validity window.
const TokenTTL = 7 * 24 * time.Hour

const issuer = "notestack"

// Identity is what a validated token asserts about its bearer.
type Identity struct {
	UserID string
	Role   string
}

// TokenService handles JWT creation and validation. It holds the HMAC secret
// used for both signing and verifying.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload: the registered claims plus the role, so admin
// checks don't need a database round trip.
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Generate creates and signs a 7-day access token for the given identity.
// The user's internal ID goes in the standard "sub" claim.
func (s *TokenService) Generate(id Identity) (string, error) {
	return s.GenerateWithDuration(id, TokenTTL)
}

// GenerateWithDuration creates a token with a custom expiry. Used by tests to
// mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(id Identity, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string, returning the identity it
// asserts. Checks performed: HS256 signature, expiry, and issuer. Restricting
// the accepted methods to HS256 closes the algorithm-confusion hole where a
// token signed with "none" might slip through.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return Identity{}, fmt.Errorf("auth: token has no subject")
	}

	return Identity{UserID: c.Subject, Role: c.Role}, nil
}
