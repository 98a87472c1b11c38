package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nicevod/service/internal/admission"
	"github.com/nicevod/service/internal/auth"
	"github.com/nicevod/service/internal/logging"
	"github.com/nicevod/service/internal/metrics"
	"github.com/nicevod/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// identityKey is the context key for the verified caller.
const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id admission.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the verified caller, or nil when the request was not
// authenticated.
func IdentityFrom(ctx context.Context) *admission.Identity {
	id, ok := ctx.Value(identityKey).(admission.Identity)
	if !ok {
		return nil
	}
	return &id
}

// RequireIdentity returns middleware that resolves the Bearer token with v and
// injects the identity into the request context. A nil v disables the check
// and passes requests through without an identity.
func RequireIdentity(v auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				reject(w, r, admission.Reject(admission.KindMissingToken, "authorization header required"))
				return
			}

			token, ok := bearerToken(authHeader)
			if !ok {
				reject(w, r, admission.Reject(admission.KindUnauthenticated, "invalid authorization header format"))
				return
			}

			id, err := v.Verify(r.Context(), token)
			if errors.Is(err, auth.ErrUpstream) {
				reject(w, r, &admission.Rejection{
					Kind:    admission.KindUpstreamLookupFailure,
					Message: "identity provider unavailable",
					Err:     err,
				})
				return
			}
			if err != nil {
				reject(w, r, &admission.Rejection{
					Kind:    admission.KindUnauthenticated,
					Message: "invalid or expired token",
					Err:     err,
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdminToken returns middleware that only admits requests bearing
// exactly token. An empty token refuses every request.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				response.Unauthorized(w, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func reject(w http.ResponseWriter, r *http.Request, rej *admission.Rejection) {
	metrics.RecordRejection(rej.Kind.String())
	if rej.Err != nil {
		log := logging.FromContext(r.Context())
		if rej.Kind.Status() >= http.StatusInternalServerError {
			log.Error("authentication failed", zap.String("kind", rej.Kind.String()), zap.Error(rej.Err))
		} else {
			log.Debug("authentication refused", zap.String("kind", rej.Kind.String()), zap.Error(rej.Err))
		}
	}
	response.Error(w, rej.Kind.Status(), rej.Message)
}
