package pinpost

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blacktop/pinpost/internal/logutil"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// State is the lifecycle position of a publish attempt.
type State int

const (
	StateIdle State = iota
	StateResolvingMedia
	StatePublishing
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolvingMedia:
		return "resolving-media"
	case StatePublishing:
		return "publishing"
	case StateSettled:
		return "settled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// PlatformResult is the outcome of publishing to one platform. Exactly one of
// Post and Err is set.
type PlatformResult struct {
	Platform string
	Post     *Post
	Err      error
}

// OK reports whether the platform publish succeeded.
func (r PlatformResult) OK() bool { return r.Err == nil }

func (r PlatformResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: failed: %v", r.Platform, r.Err)
	}
	id := r.Post.ID
	if id == "" {
		id = "(unknown)"
	}
	if r.Post.URL != "" {
		return fmt.Sprintf("%s: published %s (%s)", r.Platform, id, r.Post.URL)
	}
	return fmt.Sprintf("%s: published %s", r.Platform, id)
}

// Report is what a settled attempt hands back to the caller.
type Report struct {
	AttemptID string
	MediaURL  string
	Results   []PlatformResult
}

// Failed returns the results that did not succeed.
func (r *Report) Failed() []PlatformResult {
	var failed []PlatformResult
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Orchestrator fans a publish request out to every selected platform.
type Orchestrator struct {
	resolver  MediaResolver
	registry  *Registry
	observers []func(attemptID string, s State)
}

// NewOrchestrator wires a media resolver and a platform registry together.
func NewOrchestrator(resolver MediaResolver, registry *Registry) *Orchestrator {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Orchestrator{resolver: resolver, registry: registry}
}

// OnTransition registers fn to be called on every attempt state change.
// It must be called before any attempt starts.
func (o *Orchestrator) OnTransition(fn func(attemptID string, s State)) {
	o.observers = append(o.observers, fn)
}

// Publish runs a single attempt to completion.
func (o *Orchestrator) Publish(ctx context.Context, req PublishRequest) (*Report, error) {
	return o.NewAttempt(req).Run(ctx)
}

// NewAttempt creates an idle attempt scoped to req.
func (o *Orchestrator) NewAttempt(req PublishRequest) *Attempt {
	req.Platforms = append([]string(nil), req.Platforms...)
	id := uuid.NewString()
	return &Attempt{
		id:    id,
		orch:  o,
		req:   req,
		log:   logutil.With("attempt", id),
		state: StateIdle,
	}
}

// Attempt is one publish attempt. It holds all per-attempt state so nothing
// leaks between attempts.
type Attempt struct {
	id   string
	orch *Orchestrator
	req  PublishRequest
	log  *log.Logger

	mu      sync.Mutex
	state   State
	started bool
}

// ID returns the attempt identifier used in logs.
func (a *Attempt) ID() string { return a.id }

// State returns the current lifecycle state.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) transition(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	a.log.Debug("transition", "state", s)
	for _, fn := range a.orch.observers {
		fn(a.id, s)
	}
}

// Run validates the request, resolves media once, publishes to every
// selected platform concurrently and waits for all of them. A non-nil error
// means the attempt failed as a whole and no platform was called.
func (a *Attempt) Run(ctx context.Context) (*Report, error) {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil, ErrAttemptStarted
	}
	a.started = true
	a.mu.Unlock()

	report := &Report{AttemptID: a.id}

	if err := a.guard(); err != nil {
		a.transition(StateSettled)
		return report, err
	}

	a.transition(StateResolvingMedia)
	mediaURL, err := a.orch.resolver.Resolve(ctx, a.req.Media)
	// the attempt no longer needs the file bytes once resolution is done
	a.req.Media.File = nil
	if err != nil {
		a.transition(StateSettled)
		return report, fmt.Errorf("resolve media: %w", err)
	}
	report.MediaURL = mediaURL
	a.log.Debug("media resolved", "url", mediaURL)

	a.transition(StatePublishing)
	report.Results = a.fanOut(ctx, mediaURL)
	a.transition(StateSettled)

	return report, nil
}

func (a *Attempt) guard() error {
	if len(a.req.Platforms) == 0 {
		return ValidationError{Reason: "select at least one platform"}
	}
	for _, name := range a.req.Platforms {
		if !IsKnown(name) {
			return ValidationError{Reason: fmt.Sprintf("unsupported platform %q", name)}
		}
	}
	if strings.TrimSpace(a.req.Title) == "" {
		return ValidationError{Reason: "title is required"}
	}
	// media is not resolved yet; publishers only check the fields they own
	probe := a.req.payload("pending")
	for _, name := range a.req.Platforms {
		if err := a.orch.registry.Lookup(name).Validate(probe); err != nil {
			return err
		}
	}
	return nil
}

func (a *Attempt) fanOut(ctx context.Context, mediaURL string) []PlatformResult {
	results := make([]PlatformResult, len(a.req.Platforms))

	var wg sync.WaitGroup
	for i, name := range a.req.Platforms {
		publisher := a.orch.registry.Lookup(name)
		payload := a.req.payload(mediaURL)

		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = publishOne(ctx, a.log.With("platform", name), name, publisher, payload)
		}()
	}
	wg.Wait()

	return results
}

func publishOne(ctx context.Context, logger *log.Logger, name string, publisher Publisher, payload Payload) (res PlatformResult) {
	res.Platform = name
	defer func() {
		if r := recover(); r != nil {
			res.Post = nil
			res.Err = fmt.Errorf("%s publisher panicked: %v", name, r)
			logger.Error("publisher panicked", "panic", r)
		}
	}()

	post, err := publisher.Publish(ctx, payload)
	switch {
	case err != nil:
		res.Err = err
		logger.Warn("publish failed", "err", err)
	case post == nil:
		res.Post = &Post{}
	default:
		res.Post = post
		logger.Info("published", "id", post.ID, "url", post.URL)
	}
	return res
}
