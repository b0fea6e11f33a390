package mastodon

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blacktop/pinpost/internal/logutil"
	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/hashicorp/go-cleanhttp"
	mastodonapi "github.com/mattn/go-mastodon"
)

const (
	envServer      = "PINPOST_MASTODON_SERVER"
	envAccessToken = "PINPOST_MASTODON_ACCESS_TOKEN"

	providerName   = pinpost.PlatformMastodon
	requestTimeout = 30 * time.Second

	// MaxStatusLength is the default character limit of a Mastodon status.
	MaxStatusLength = 500
)

// Config contains the settings needed to reach a Mastodon server.
type Config struct {
	Server       string
	AccessToken  string
	ClientID     string
	ClientSecret string
}

// Client wraps the Mastodon API client with pinpost semantics.
type Client struct {
	client *mastodonapi.Client
}

// New constructs a Mastodon publisher.
func New(cfg Config) (*Client, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	mastodonClient := mastodonapi.NewClient(&mastodonapi.Config{
		Server:       strings.TrimSpace(cfg.Server),
		AccessToken:  strings.TrimSpace(cfg.AccessToken),
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: strings.TrimSpace(cfg.ClientSecret),
	})
	mastodonClient.Timeout = requestTimeout
	mastodonClient.Transport = cleanhttp.DefaultPooledTransport()

	return &Client{client: mastodonClient}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Validate has nothing to check beyond the shared title rule.
func (c *Client) Validate(pinpost.Payload) error { return nil }

// Publish posts a new status with the resolved image attached.
func (c *Client) Publish(ctx context.Context, p pinpost.Payload) (*pinpost.Post, error) {
	var mediaIDs []mastodonapi.ID
	if p.MediaURL != "" {
		attachment, err := c.uploadMedia(ctx, p.MediaURL, p.AltText)
		if err != nil {
			return nil, err
		}
		mediaIDs = append(mediaIDs, attachment.ID)
	}

	status, err := c.client.PostStatus(ctx, &mastodonapi.Toot{
		Status:   StatusText(p),
		MediaIDs: mediaIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("post status: %w", err)
	}
	logutil.Debugf("mastodon status posted: id=%s", status.ID)

	return &pinpost.Post{ID: string(status.ID), URL: status.URL}, nil
}

// StatusText renders title, description and link into one status, clipped to
// the server limit.
func StatusText(p pinpost.Payload) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{p.Title, p.Description, p.Link} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return pinpost.Clip(strings.Join(parts, "\n\n"), MaxStatusLength)
}

func (c *Client) uploadMedia(ctx context.Context, mediaURL, alt string) (*mastodonapi.Attachment, error) {
	file, err := pinpost.FetchMedia(ctx, &c.client.Client, mediaURL)
	if err != nil {
		return nil, err
	}

	logutil.Debugf("uploading media: bytes=%d type=%s", len(file.Data), file.ContentType)
	attachment, err := c.client.UploadMediaFromMedia(ctx, &mastodonapi.Media{
		File:        bytes.NewReader(file.Data),
		Description: alt,
	})
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}

	return attachment, nil
}

func validateConfig(cfg Config) error {
	var missing []string
	if strings.TrimSpace(cfg.Server) == "" {
		missing = append(missing, envServer)
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		missing = append(missing, envAccessToken)
	}

	if len(missing) > 0 {
		return pinpost.ConfigurationError{Provider: providerName, Variables: missing}
	}
	return nil
}
