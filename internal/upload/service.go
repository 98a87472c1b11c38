// Package upload runs the upload and delete flows: quota read, admission,
// key derivation and the storage write.
package upload

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/nicevod/service/internal/admission"
	"github.com/nicevod/service/internal/keys"
	"github.com/nicevod/service/internal/logging"
	"github.com/nicevod/service/internal/metrics"
	"github.com/nicevod/service/internal/profile"
	"github.com/nicevod/service/internal/storage"
)

// UsageReader reads a user's current storage usage.
type UsageReader interface {
	ReadUsage(ctx context.Context, userID string) (admission.QuotaState, error)
}

// Options tunes Service behaviour that is not part of the admission policy.
type Options struct {
	// PublicBaseURL is the CDN origin objects are served from.
	PublicBaseURL string
	// MissingProfileAsZero treats a user without a profile row as having
	// stored nothing. When false a missing profile fails the request.
	MissingProfileAsZero bool
}

// Request is one upload attempt as declared by the client.
type Request struct {
	DeclaredUserID string
	File           *admission.FileMeta
	Body           io.Reader
}

// Result describes a stored upload.
type Result struct {
	Key       string
	PublicURL string
	UserID    string
}

// Usage is a user's storage consumption against the configured cap.
type Usage struct {
	UserID    string
	BytesUsed int64
	// Limit is zero when no cap is enforced.
	Limit int64
}

// Service contains the upload business logic.
type Service struct {
	ctrl  *admission.Controller
	usage UsageReader
	store storage.Storage
	opts  Options
}

// NewService creates a new upload Service. usage may be nil when no quota
// cap is configured.
func NewService(ctrl *admission.Controller, usage UsageReader, store storage.Storage, opts Options) *Service {
	return &Service{ctrl: ctrl, usage: usage, store: store, opts: opts}
}

// Upload admits req for identity and, if accepted, writes the body to storage.
// Every refusal is returned as an *admission.Rejection; nothing is written
// unless admission succeeds.
func (s *Service) Upload(ctx context.Context, identity *admission.Identity, req Request) (Result, error) {
	var quota *admission.QuotaState
	if s.needsQuota(identity, req) {
		q, err := s.readQuota(ctx, identity.UserID)
		if err != nil {
			return Result{}, err
		}
		quota = &q
	}

	decision, err := s.ctrl.Admit(identity, req.DeclaredUserID, req.File, quota)
	if err != nil {
		return Result{}, err
	}

	if err := s.store.Upload(ctx, decision.StorageKey, req.Body, req.File.Size, req.File.MIMEType); err != nil {
		return Result{}, &admission.Rejection{
			Kind:    admission.KindStorageWriteFailure,
			Message: "storage write failed",
			Err:     err,
		}
	}
	metrics.RecordUpload(req.File.Size)

	logging.FromContext(ctx).Info("upload stored",
		zap.String("user_id", identity.UserID),
		zap.String("key", decision.StorageKey),
		zap.String("mime", req.File.MIMEType),
		zap.Int64("size", req.File.Size),
	)

	return Result{
		Key:       decision.StorageKey,
		PublicURL: keys.PublicURL(s.opts.PublicBaseURL, decision.StorageKey),
		UserID:    identity.UserID,
	}, nil
}

// Delete removes key from storage. A single leading "/" is ignored. When
// identity is set and keys are user-scoped, only the owner may delete.
func (s *Service) Delete(ctx context.Context, identity *admission.Identity, key string) error {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return admission.Reject(admission.KindBadRequest, "key required")
	}
	if strings.ContainsAny(key, `/\`) {
		return admission.Reject(admission.KindBadRequest, "invalid key")
	}
	if identity != nil && s.ctrl.Config().KeyStrategy.UserScoped() && !keys.OwnedBy(key, identity.UserID) {
		return admission.Reject(admission.KindForbidden, "key not owned by caller")
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return &admission.Rejection{
			Kind:    admission.KindStorageWriteFailure,
			Message: "storage delete failed",
			Err:     err,
		}
	}

	logging.FromContext(ctx).Info("upload deleted", zap.String("key", key))
	return nil
}

// Usage reports the stored bytes for identity.
func (s *Service) Usage(ctx context.Context, identity *admission.Identity) (Usage, error) {
	if identity == nil || identity.UserID == "" {
		return Usage{}, admission.Reject(admission.KindUnauthenticated, "unauthenticated")
	}
	u := Usage{UserID: identity.UserID, Limit: s.ctrl.Config().TotalQuotaCap}
	if s.usage == nil {
		return u, nil
	}
	q, err := s.readQuota(ctx, identity.UserID)
	if err != nil {
		return Usage{}, err
	}
	u.BytesUsed = q.BytesUsed
	return u, nil
}

// needsQuota reports whether the ledger must be consulted. Requests that
// admission will refuse before the quota step skip the lookup.
func (s *Service) needsQuota(identity *admission.Identity, req Request) bool {
	return s.usage != nil &&
		s.ctrl.Config().QuotaEnforced() &&
		identity != nil &&
		req.File != nil &&
		req.DeclaredUserID != "" &&
		req.DeclaredUserID == identity.UserID
}

func (s *Service) readQuota(ctx context.Context, userID string) (admission.QuotaState, error) {
	q, err := s.usage.ReadUsage(ctx, userID)
	switch {
	case err == nil:
		return q, nil
	case profile.IsNotFound(err) && s.opts.MissingProfileAsZero:
		return admission.QuotaState{UserID: userID}, nil
	case profile.IsNotFound(err):
		return admission.QuotaState{}, &admission.Rejection{
			Kind:    admission.KindUpstreamLookupFailure,
			Message: "profile not found",
			Err:     err,
		}
	default:
		return admission.QuotaState{}, &admission.Rejection{
			Kind:    admission.KindUpstreamLookupFailure,
			Message: "quota lookup failed",
			Err:     err,
		}
	}
}
