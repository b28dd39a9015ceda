// Package auth provides JWT Bearer token validation for the tripwatch
// admin API.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dskow/tripwatch/internal/config"
)

// ErrMissingToken indicates the Authorization header is absent or malformed.
var ErrMissingToken = fmt.Errorf("missing or malformed Authorization header")

// ScopeError indicates the token is valid but lacks required scopes.
type ScopeError struct {
	MissingScope string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("token missing required scope %q", e.MissingScope)
}

// Claims represents the validated JWT claims.
type Claims struct {
	Subject  string
	Issuer   string
	Audience string
	Scopes   []string
}

// Verifier validates HS256 Bearer tokens against the configured issuer,
// audience, and required scopes.
type Verifier struct {
	cfg config.AdminAuthConfig
}

// New creates a Verifier from the admin auth configuration.
func New(cfg config.AdminAuthConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify extracts and validates the Bearer token from the request. Returns
// ErrMissingToken when no token is present, a *ScopeError when the token is
// valid but under-scoped, and a generic error for invalid tokens.
func (v *Verifier) Verify(r *http.Request) (*Claims, error) {
	tokenStr, ok := extractBearerToken(r)
	if !ok {
		return nil, ErrMissingToken
	}
	return v.validateToken(tokenStr)
}

func extractBearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func (v *Verifier) validateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	claims := &Claims{}

	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}
	if iss, ok := mapClaims["iss"].(string); ok {
		claims.Issuer = iss
	}

	// Audience can be a string or a list of strings.
	switch aud := mapClaims["aud"].(type) {
	case string:
		claims.Audience = aud
	case []interface{}:
		if len(aud) > 0 {
			if s, ok := aud[0].(string); ok {
				claims.Audience = s
			}
		}
	}

	// Scopes are a space-separated string per the OAuth2 convention.
	if scopeStr, ok := mapClaims["scope"].(string); ok {
		claims.Scopes = strings.Fields(scopeStr)
	}

	if len(v.cfg.Scopes) > 0 {
		scopeSet := make(map[string]bool, len(claims.Scopes))
		for _, s := range claims.Scopes {
			scopeSet[s] = true
		}
		for _, required := range v.cfg.Scopes {
			if !scopeSet[required] {
				return nil, &ScopeError{MissingScope: required}
			}
		}
	}

	return claims, nil
}
