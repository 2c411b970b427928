package services

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"contactgate/internal/metrics"
	"contactgate/internal/util"
	apperrors "contactgate/pkg/errors"
)

// AdminAuthConfig lists the credentials accepted on admin endpoints. Empty
// fields disable that credential kind.
type AdminAuthConfig struct {
	StaticToken string
	TokenHash   string
	JWTSecret   string
}

// AdminAuth validates bearer tokens on admin endpoints
type AdminAuth struct {
	cfg AdminAuthConfig
}

// NewAdminAuth creates a new admin auth gate
func NewAdminAuth(cfg AdminAuthConfig) *AdminAuth {
	return &AdminAuth{cfg: cfg}
}

// Enabled reports whether any credential kind is configured.
func (a *AdminAuth) Enabled() bool {
	return a.cfg.StaticToken != "" || a.cfg.TokenHash != "" || a.cfg.JWTSecret != ""
}

// Authenticate checks an Authorization header value. It returns the subject
// the token belongs to.
func (a *AdminAuth) Authenticate(header string) (string, error) {
	subject, err := a.authenticate(header)
	metrics.RecordAdminAuth(err == nil)
	return subject, err
}

func (a *AdminAuth) authenticate(header string) (string, error) {
	token, ok := bearerToken(header)
	if !ok {
		return "", apperrors.New(apperrors.ErrCodeUnauthorized, "missing bearer token")
	}

	if a.cfg.StaticToken != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(a.cfg.StaticToken)) == 1 {
		return "admin", nil
	}

	if a.cfg.TokenHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(a.cfg.TokenHash), []byte(token)) == nil {
		return "admin", nil
	}

	if a.cfg.JWTSecret != "" {
		claims, err := util.ValidateToken(a.cfg.JWTSecret, token)
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrCodeUnauthorized, "invalid admin token", err)
		}
		if err := util.RequireAdmin(claims); err != nil {
			return "", apperrors.Wrap(apperrors.ErrCodeUnauthorized, "token lacks admin claim", err)
		}
		return claims.Username, nil
	}

	return "", apperrors.New(apperrors.ErrCodeUnauthorized, "invalid admin token")
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
