package pinpost

import (
	"context"
	"fmt"
	"strings"
)

// Platform identifiers.
const (
	PlatformPinterest = "pinterest"
	PlatformMastodon  = "mastodon"
	PlatformBluesky   = "bluesky"
	PlatformX         = "x"
)

var knownPlatforms = []string{PlatformPinterest, PlatformMastodon, PlatformBluesky, PlatformX}

var platformAliases = map[string]string{
	"twitter": PlatformX,
}

// KnownPlatforms returns every platform identifier a request may select.
func KnownPlatforms() []string {
	return append([]string(nil), knownPlatforms...)
}

// IsKnown reports whether name is a known platform identifier.
func IsKnown(name string) bool {
	for _, known := range knownPlatforms {
		if known == name {
			return true
		}
	}
	return false
}

// NormalizePlatforms lower-cases, de-duplicates and expands "all" while
// keeping the selection order.
func NormalizePlatforms(values []string) ([]string, error) {
	result := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, raw := range values {
		raw = strings.TrimSpace(strings.ToLower(raw))
		if raw == "" {
			continue
		}
		if raw == "all" {
			return KnownPlatforms(), nil
		}
		if alias, ok := platformAliases[raw]; ok {
			raw = alias
		}
		if !IsKnown(raw) {
			return nil, ValidationError{Reason: fmt.Sprintf("unsupported platform %q", raw)}
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		result = append(result, raw)
	}
	return result, nil
}

// Registry maps platform identifiers to publishers. It is read-only once
// handed to an Orchestrator.
type Registry struct {
	publishers map[string]Publisher
}

// NewRegistry returns a registry holding the given publishers.
func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{publishers: make(map[string]Publisher, len(publishers))}
	for _, p := range publishers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the publisher for p.Name().
func (r *Registry) Register(p Publisher) {
	r.publishers[p.Name()] = p
}

// Lookup returns the publisher for name. Platforms with nothing registered
// get a publisher that fails with NotImplementedError.
func (r *Registry) Lookup(name string) Publisher {
	if p, ok := r.publishers[name]; ok {
		return p
	}
	return notImplemented{platform: name}
}

// Wired reports whether a real publisher is registered for name.
func (r *Registry) Wired(name string) bool {
	_, ok := r.publishers[name]
	return ok
}

type notImplemented struct {
	platform string
}

func (n notImplemented) Name() string { return n.platform }

func (n notImplemented) Validate(Payload) error { return nil }

func (n notImplemented) Publish(context.Context, Payload) (*Post, error) {
	return nil, NotImplementedError{Platform: n.platform}
}

// Unavailable returns a publisher for a platform whose setup failed. Every
// publish reports err, scoped to that platform. validate, when non-nil, still
// runs the platform's field checks so request preconditions do not depend on
// deployment credentials.
func Unavailable(name string, err error, validate func(Payload) error) Publisher {
	return unavailable{platform: name, err: err, validate: validate}
}

type unavailable struct {
	platform string
	err      error
	validate func(Payload) error
}

func (u unavailable) Name() string { return u.platform }

func (u unavailable) Validate(p Payload) error {
	if u.validate == nil {
		return nil
	}
	return u.validate(p)
}

func (u unavailable) Publish(context.Context, Payload) (*Post, error) {
	return nil, u.err
}
