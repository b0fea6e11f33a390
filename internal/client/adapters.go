package client

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/blacktop/pinpost/internal/pinpost/pinterest"
)

// Resolver resolves media through the server's upload endpoint.
type Resolver struct {
	c *Client
}

// NewResolver returns a pinpost.MediaResolver backed by c.
func NewResolver(c *Client) *Resolver { return &Resolver{c: c} }

// Resolve uploads a local file or passes a URL through untouched.
func (r *Resolver) Resolve(ctx context.Context, src pinpost.MediaSource) (string, error) {
	if src.File == nil {
		if u := strings.TrimSpace(src.URL); u != "" {
			return u, nil
		}
		return "", pinpost.ValidationError{Reason: "provide an image file or a media url"}
	}

	u, err := r.c.Upload(ctx, src.File)
	if err == nil {
		return u, nil
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr.Status < http.StatusInternalServerError {
		return "", pinpost.ValidationError{Reason: httpErr.Message}
	}
	return "", pinpost.StorageError{Err: err}
}

// Publisher publishes pins through the server's pinterest endpoint.
type Publisher struct {
	c *Client
}

// NewPublisher returns a Pinterest publisher backed by c.
func NewPublisher(c *Client) *Publisher { return &Publisher{c: c} }

// Name returns the provider identifier.
func (p *Publisher) Name() string { return pinpost.PlatformPinterest }

// Validate checks the fields the pinterest endpoint requires.
func (p *Publisher) Validate(pl pinpost.Payload) error {
	return pinterest.ValidatePayload(pl)
}

// Publish creates a pin via POST /api/pinterest.
func (p *Publisher) Publish(ctx context.Context, pl pinpost.Payload) (*pinpost.Post, error) {
	if err := p.Validate(pl); err != nil {
		return nil, err
	}
	if strings.TrimSpace(pl.MediaURL) == "" {
		return nil, pinpost.ValidationError{Provider: pinpost.PlatformPinterest, Reason: "missing media url"}
	}

	resp, err := p.c.CreatePin(ctx, PinRequest{
		Title:       pl.Title,
		BoardID:     pl.BoardID,
		Description: pl.Description,
		MediaURL:    pl.MediaURL,
		AltText:     pl.AltText,
		Link:        pl.Link,
	})
	if err != nil {
		var httpErr HTTPError
		if errors.As(err, &httpErr) {
			return nil, pinpost.UpstreamError{Platform: pinpost.PlatformPinterest, Status: httpErr.Status, Message: httpErr.Message}
		}
		return nil, err
	}

	post := &pinpost.Post{ID: resp.PinID}
	if resp.PinURL != nil {
		post.URL = *resp.PinURL
	}
	return post, nil
}
