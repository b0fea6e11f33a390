package pinterest

import (
	"context"
	"strings"

	"github.com/blacktop/pinpost/internal/pinpost"
)

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// Validate checks the fields Pinterest requires before media is resolved.
func (c *Client) Validate(p pinpost.Payload) error {
	return ValidatePayload(p)
}

// ValidatePayload reports a missing title or board id. It does no I/O and
// needs no credentials.
func ValidatePayload(p pinpost.Payload) error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return pinpost.ValidationError{Provider: providerName, Reason: "missing title"}
	case strings.TrimSpace(p.BoardID) == "":
		return pinpost.ValidationError{Provider: providerName, Reason: "missing board id"}
	}
	return nil
}

// Publish creates a pin from the payload.
func (c *Client) Publish(ctx context.Context, p pinpost.Payload) (*pinpost.Post, error) {
	pin, err := c.CreatePin(ctx, NewPinInput(p))
	if err != nil {
		return nil, err
	}
	return &pinpost.Post{ID: pin.ID, URL: pin.PublicURL()}, nil
}
