package shortlink

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrNotFound is returned when a code has no link.
	ErrNotFound = errors.New("link not found")
	// ErrInvalidCode is returned for codes outside [A-Za-z0-9_-]{1,64}.
	ErrInvalidCode = errors.New("invalid code")
	// ErrInvalidURL is returned for targets that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid url")
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Store persists links.
type Store interface {
	Get(ctx context.Context, code string) (string, error)
	Put(ctx context.Context, code, url string) error
}

// Service contains shortener business logic.
type Service struct {
	store Store
}

// NewService creates a new shortener Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Resolve returns the destination for code.
func (s *Service) Resolve(ctx context.Context, code string) (string, error) {
	if !codePattern.MatchString(code) {
		return "", ErrNotFound
	}
	return s.store.Get(ctx, code)
}

// Create stores target under code, overwriting an existing link.
func (s *Service) Create(ctx context.Context, code, target string) error {
	if !codePattern.MatchString(code) {
		return ErrInvalidCode
	}
	if !validTarget(target) {
		return ErrInvalidURL
	}
	return s.store.Put(ctx, code, target)
}

func validTarget(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}
