package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_Valid(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken("secret", "user-1", "authenticated", time.Hour)
	require.NoError(t, err)

	id, err := NewJWTVerifier("secret", "authenticated").Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	t.Parallel()

	expired, err := IssueToken("secret", "u", "", -time.Minute)
	require.NoError(t, err)
	wrongSecret, err := IssueToken("other", "u", "", time.Hour)
	require.NoError(t, err)
	wrongAudience, err := IssueToken("secret", "u", "anon", time.Hour)
	require.NoError(t, err)
	noSubject, err := IssueToken("secret", "", "authenticated", time.Hour)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "u",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	v := NewJWTVerifier("secret", "authenticated")
	tests := map[string]string{
		"expired":        expired,
		"wrong secret":   wrongSecret,
		"wrong audience": wrongAudience,
		"no subject":     noSubject,
		"no expiry":      noExpiry,
		"other alg":      hs512,
		"malformed":      "not.a.jwt",
	}
	for name, tok := range tests {
		_, err := v.Verify(context.Background(), tok)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestRemoteVerifier(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		switch r.Header.Get("Authorization") {
		case "Bearer good":
			_, _ = w.Write([]byte(`{"id":"user-1","email":"a@b.c"}`))
		case "Bearer empty":
			_, _ = w.Write([]byte(`{}`))
		case "Bearer garbled":
			_, _ = w.Write([]byte(`{"id":`))
		case "Bearer boom":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v := NewRemoteVerifier(srv.URL+"/", "anon-key", srv.Client())
	ctx := context.Background()

	id, err := v.Verify(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)

	_, err = v.Verify(ctx, "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(ctx, "empty")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(ctx, "garbled")
	assert.ErrorIs(t, err, ErrUpstream)

	_, err = v.Verify(ctx, "boom")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestRemoteVerifier_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewRemoteVerifier(url, "", nil).Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestOIDCVerifier(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	const issuer = "https://id.example.com"
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	v := &OIDCVerifier{verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: "web"})}

	sign := func(claims jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	id, err := v.Verify(context.Background(), sign(jwt.RegisteredClaims{
		Issuer: issuer, Subject: "user-1", Audience: jwt.ClaimStrings{"web"}, ExpiresAt: exp,
	}))
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)

	_, err = v.Verify(context.Background(), sign(jwt.RegisteredClaims{
		Issuer: issuer, Subject: "user-1", Audience: jwt.ClaimStrings{"mobile"}, ExpiresAt: exp,
	}))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNew(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	v, err := New(ctx, Config{Mode: ModeNone})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = New(ctx, Config{Mode: "JWT", JWTSecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &JWTVerifier{}, v)

	v, err = New(ctx, Config{Mode: ModeRemote, ProviderURL: "https://x.supabase.co"})
	require.NoError(t, err)
	assert.IsType(t, &RemoteVerifier{}, v)

	_, err = New(ctx, Config{Mode: ModeJWT})
	assert.Error(t, err)
	_, err = New(ctx, Config{Mode: ModeOIDC})
	assert.Error(t, err)
	_, err = New(ctx, Config{Mode: "saml"})
	assert.Error(t, err)
}
