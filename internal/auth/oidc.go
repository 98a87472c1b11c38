package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/nicevod/service/internal/admission"
)

// OIDCVerifier validates ID tokens issued by an OpenID Connect provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers issuerURL and returns a verifier that expects
// clientID in the audience.
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	if issuerURL == "" || clientID == "" {
		return nil, errors.New("oidc auth requires an issuer and a client id")
	}
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider init: %w", err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// Verify validates token and returns its subject.
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (admission.Identity, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return admission.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if idToken.Subject == "" {
		return admission.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return admission.Identity{UserID: idToken.Subject}, nil
}
