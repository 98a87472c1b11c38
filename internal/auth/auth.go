// Package auth resolves bearer tokens to user identities against an external
// identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nicevod/service/internal/admission"
)

// ErrInvalidToken is returned when the token is malformed, expired, or
// rejected by the provider.
var ErrInvalidToken = errors.New("invalid or expired token")

// ErrUpstream is returned when the provider could not be reached or failed.
var ErrUpstream = errors.New("identity provider unavailable")

// Verifier resolves a raw bearer token to an identity. Implementations keep no
// per-token state; every call is independent.
type Verifier interface {
	Verify(ctx context.Context, token string) (admission.Identity, error)
}

// Mode names a Verifier implementation.
type Mode string

const (
	ModeJWT    Mode = "jwt"
	ModeRemote Mode = "remote"
	ModeOIDC   Mode = "oidc"
	ModeNone   Mode = "none"
)

// Config carries the settings of every mode; only the selected mode's fields
// are read.
type Config struct {
	Mode Mode

	JWTSecret   string
	JWTAudience string

	ProviderURL    string
	ProviderAPIKey string

	OIDCIssuer   string
	OIDCClientID string
}

// New builds the Verifier selected by cfg.Mode. ModeNone returns a nil
// Verifier, meaning tokens are not checked.
func New(ctx context.Context, cfg Config) (Verifier, error) {
	switch Mode(strings.ToLower(string(cfg.Mode))) {
	case ModeJWT:
		if cfg.JWTSecret == "" {
			return nil, errors.New("jwt auth requires a secret")
		}
		return NewJWTVerifier(cfg.JWTSecret, cfg.JWTAudience), nil
	case ModeRemote:
		if cfg.ProviderURL == "" {
			return nil, errors.New("remote auth requires a provider url")
		}
		return NewRemoteVerifier(cfg.ProviderURL, cfg.ProviderAPIKey, &http.Client{Timeout: 10 * time.Second}), nil
	case ModeOIDC:
		v, err := NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return nil, err
		}
		return v, nil
	case ModeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}
