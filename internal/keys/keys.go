// Package keys derives object storage keys and public URLs for uploaded files.
package keys

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultMaxNameLength caps sanitized file names, in characters.
const DefaultMaxNameLength = 180

const defaultExtension = "bin"

// Strategy selects how a storage key is built from a user id and file name.
type Strategy string

const (
	// StrategyRandom builds "{uuid}.{ext}".
	StrategyRandom Strategy = "random"
	// StrategyUserPrefixed builds "{userId}_{uuid}.{ext}".
	StrategyUserPrefixed Strategy = "user-prefixed"
	// StrategyUserPrefixedShort builds "{userId}_{shortId}.{ext}".
	StrategyUserPrefixedShort Strategy = "user-prefixed-short"
	// StrategyShort builds "{shortId}.{ext}". The 8 hex character id only
	// carries 32 random bits, so collisions are expected at volume.
	StrategyShort Strategy = "short"
	// StrategyOriginal keeps the sanitized original file name. Two uploads
	// with the same name map to the same key.
	StrategyOriginal Strategy = "original"
)

// ParseStrategy validates a strategy name. An empty name selects StrategyRandom.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StrategyRandom, nil
	case StrategyRandom, StrategyUserPrefixed, StrategyUserPrefixedShort, StrategyShort, StrategyOriginal:
		return st, nil
	default:
		return "", fmt.Errorf("unknown key strategy %q", s)
	}
}

// UserScoped reports whether keys built with s start with the owner's id.
func (s Strategy) UserScoped() bool {
	return s == StrategyUserPrefixed || s == StrategyUserPrefixedShort
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	// scopedSuffix is "{uuid}.{ext}" or "{shortId}.{ext}". Extensions never contain ".".
	scopedSuffix = regexp.MustCompile(`^(?:[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}|[0-9a-f]{8})\.[^.]+$`)
)

// Deriver builds storage keys. The zero value is not usable; use NewDeriver.
type Deriver struct {
	newID         func() string
	maxNameLength int
}

// NewDeriver returns a Deriver that caps sanitized names at maxNameLength
// characters (DefaultMaxNameLength when maxNameLength <= 0).
func NewDeriver(maxNameLength int) *Deriver {
	if maxNameLength <= 0 {
		maxNameLength = DefaultMaxNameLength
	}
	return &Deriver{newID: uuid.NewString, maxNameLength: maxNameLength}
}

// Derive returns the storage key for a file named name uploaded by userID.
// An unknown strategy falls back to StrategyRandom.
func (d *Deriver) Derive(userID, name string, s Strategy) string {
	safe := d.Sanitize(name)
	ext := Extension(safe)

	switch s {
	case StrategyOriginal:
		return safe
	case StrategyUserPrefixed:
		return userPrefix(userID) + d.newID() + "." + ext
	case StrategyUserPrefixedShort:
		return userPrefix(userID) + d.shortID() + "." + ext
	case StrategyShort:
		return d.shortID() + "." + ext
	default:
		return d.newID() + "." + ext
	}
}

// Sanitize reduces an untrusted client file name to a single path segment:
// everything through the last slash or backslash is dropped, surrounding
// whitespace is trimmed, inner whitespace runs become "_", control characters
// are replaced, and the result is capped with its extension kept. Empty, "."
// and ".." results are replaced by a random "{uuid}.bin" name.
func (d *Deriver) Sanitize(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	name = whitespaceRun.ReplaceAllString(name, "_")
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '/' {
			return '_'
		}
		return r
	}, name)

	if name == "" || name == "." || name == ".." {
		return d.newID() + "." + defaultExtension
	}
	return truncateName(name, d.maxNameLength)
}

func (d *Deriver) shortID() string {
	return strings.ReplaceAll(d.newID(), "-", "")[:8]
}

// Extension returns the text after the last "." in name, or "bin" when there
// is none.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return defaultExtension
	}
	return name[i+1:]
}

// OwnedBy reports whether key was built for userID by a user-scoped strategy.
// The rest of the key must be exactly a generated id and one extension, so
// user "a" never matches keys of users "a_b" or "a_b.c".
func OwnedBy(key, userID string) bool {
	prefix := userPrefix(userID)
	if prefix == "" || !strings.HasPrefix(key, prefix) {
		return false
	}
	return scopedSuffix.MatchString(key[len(prefix):])
}

// PublicURL joins base and the path-escaped key. url.PathUnescape of the
// final segment returns key unchanged.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(key)
}

func userPrefix(userID string) string {
	id := strings.TrimSpace(userID)
	id = strings.NewReplacer("/", "_", `\`, "_").Replace(id)
	id = whitespaceRun.ReplaceAllString(id, "_")
	if id == "" {
		return ""
	}
	return id + "_"
}

func truncateName(name string, limit int) string {
	if utf8.RuneCountInString(name) <= limit {
		return name
	}
	runes := []rune(name)

	ext := ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		ext = name[i:]
	}
	extLen := utf8.RuneCountInString(ext)
	if extLen >= limit {
		return string(runes[:limit])
	}
	return string(runes[:limit-extLen]) + ext
}
