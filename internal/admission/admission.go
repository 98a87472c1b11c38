// Package admission decides whether an upload is accepted before any
// storage I/O happens.
package admission

import (
	"fmt"
	"strings"

	"github.com/nicevod/service/internal/keys"
)

// Identity is the user a bearer token resolved to.
type Identity struct {
	UserID string
}

// QuotaState is a point-in-time read of a user's stored bytes.
type QuotaState struct {
	UserID    string
	BytesUsed int64
}

// FileMeta is what the client declared about the uploaded file.
type FileMeta struct {
	Name     string
	MIMEType string
	Size     int64
}

// Decision is the outcome of an accepted upload.
type Decision struct {
	StorageKey string
}

// MatchMode selects how AllowList entries are compared with a MIME type.
type MatchMode int

const (
	// MatchExact accepts only types listed verbatim, e.g. "image/png".
	MatchExact MatchMode = iota
	// MatchPrefix accepts types starting with a listed prefix, e.g. "image/".
	MatchPrefix
)

// ParseMatchMode accepts "exact" (default) or "prefix".
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return MatchExact, nil
	case "prefix":
		return MatchPrefix, nil
	default:
		return MatchExact, fmt.Errorf("unknown mime match mode %q", s)
	}
}

// AllowList is the set of accepted MIME types.
type AllowList struct {
	Mode  MatchMode
	Types []string
}

// Allows reports whether mimeType is accepted. Comparison is case-insensitive.
func (a AllowList) Allows(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		return false
	}
	for _, t := range a.Types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if a.Mode == MatchPrefix {
			if strings.HasPrefix(mimeType, t) {
				return true
			}
		} else if mimeType == t {
			return true
		}
	}
	return false
}

// Config holds the admission policy for one deployment.
type Config struct {
	AllowList   AllowList
	MaxFileSize int64
	// TotalQuotaCap is the per-user byte budget. Zero leaves quota unenforced.
	TotalQuotaCap int64
	KeyStrategy   keys.Strategy
}

// QuotaEnforced reports whether step 6 of Admit applies.
func (c Config) QuotaEnforced() bool { return c.TotalQuotaCap > 0 }

// Controller applies a Config to upload attempts.
type Controller struct {
	cfg  Config
	keys *keys.Deriver
}

// NewController returns a Controller deriving keys with deriver.
func NewController(cfg Config, deriver *keys.Deriver) *Controller {
	return &Controller{cfg: cfg, keys: deriver}
}

// Config returns the policy c was built with.
func (c *Controller) Config() Config { return c.cfg }

// Admit runs the checks below in order and returns the first failure as a
// *Rejection:
//
//  1. identity is nil: Unauthenticated
//  2. file nil or declaredUserID empty: BadRequest
//  3. declaredUserID differs from identity: Forbidden
//  4. MIME type not allowed: UnsupportedType
//  5. file larger than MaxFileSize: TooLarge
//  6. quota enforced, quota known, used+size over cap: QuotaExceeded
//
// Admit performs no I/O. A nil quota skips step 6.
func (c *Controller) Admit(identity *Identity, declaredUserID string, file *FileMeta, quota *QuotaState) (Decision, error) {
	if identity == nil {
		return Decision{}, Reject(KindUnauthenticated, "unauthenticated")
	}
	if file == nil || declaredUserID == "" {
		return Decision{}, Reject(KindBadRequest, "file and user id required")
	}
	if declaredUserID != identity.UserID {
		return Decision{}, Reject(KindForbidden, "user mismatch")
	}
	if !c.cfg.AllowList.Allows(file.MIMEType) {
		return Decision{}, Reject(KindUnsupportedType, fmt.Sprintf("file type %q is not allowed", file.MIMEType))
	}
	if file.Size > c.cfg.MaxFileSize {
		return Decision{}, Reject(KindTooLarge, fmt.Sprintf("file exceeds the %d byte limit", c.cfg.MaxFileSize))
	}
	if c.cfg.QuotaEnforced() && quota != nil && quota.BytesUsed+file.Size > c.cfg.TotalQuotaCap {
		return Decision{}, Reject(KindQuotaExceeded, "storage quota exceeded")
	}

	return Decision{StorageKey: c.keys.Derive(identity.UserID, file.Name, c.cfg.KeyStrategy)}, nil
}
