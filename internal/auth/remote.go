package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nicevod/service/internal/admission"
)

// RemoteVerifier asks the provider's user endpoint who a token belongs to,
// the same round trip as a GoTrue "get user" call.
type RemoteVerifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemoteVerifier returns a verifier calling {baseURL}/auth/v1/user.
// apiKey, when set, is sent in the "apikey" header.
func NewRemoteVerifier(baseURL, apiKey string, client *http.Client) *RemoteVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

// Verify resolves token. 4xx answers mean the token is bad; transport errors
// and 5xx answers are reported as ErrUpstream.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (admission.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return admission.Identity{}, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return admission.Identity{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return admission.Identity{}, fmt.Errorf("%w: provider returned %d", ErrUpstream, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return admission.Identity{}, fmt.Errorf("%w: provider returned %d", ErrInvalidToken, resp.StatusCode)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return admission.Identity{}, fmt.Errorf("%w: decode user: %v", ErrUpstream, err)
	}
	if user.ID == "" {
		return admission.Identity{}, fmt.Errorf("%w: provider returned no user id", ErrInvalidToken)
	}
	return admission.Identity{UserID: user.ID}, nil
}
