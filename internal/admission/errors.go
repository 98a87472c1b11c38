package admission

import (
	"errors"
	"net/http"
)

// Kind classifies why an upload or delete request was refused.
type Kind int

const (
	KindMissingToken Kind = iota + 1
	KindUnauthenticated
	KindBadRequest
	KindForbidden
	KindUnsupportedType
	KindTooLarge
	KindQuotaExceeded
	KindUpstreamLookupFailure
	KindStorageWriteFailure
)

var kindNames = map[Kind]string{
	KindMissingToken:          "missing_token",
	KindUnauthenticated:       "unauthenticated",
	KindBadRequest:            "bad_request",
	KindForbidden:             "forbidden",
	KindUnsupportedType:       "unsupported_type",
	KindTooLarge:              "too_large",
	KindQuotaExceeded:         "quota_exceeded",
	KindUpstreamLookupFailure: "upstream_lookup_failure",
	KindStorageWriteFailure:   "storage_write_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Status returns the HTTP status code a client sees for k.
// TooLarge and QuotaExceeded share 413.
func (k Kind) Status() int {
	switch k {
	case KindMissingToken, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindUnsupportedType:
		return http.StatusUnsupportedMediaType
	case KindTooLarge, KindQuotaExceeded:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Rejection is a terminal refusal. Message is safe to show to clients;
// Err, when set, is the underlying cause and is only logged.
type Rejection struct {
	Kind    Kind
	Message string
	Err     error
}

// Reject builds a Rejection without an underlying cause.
func Reject(kind Kind, message string) *Rejection {
	return &Rejection{Kind: kind, Message: message}
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return r.Kind.String() + ": " + r.Message + ": " + r.Err.Error()
	}
	return r.Kind.String() + ": " + r.Message
}

func (r *Rejection) Unwrap() error { return r.Err }

// KindOf extracts the Kind of a Rejection anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Kind, true
	}
	return 0, false
}
