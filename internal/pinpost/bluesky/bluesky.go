package bluesky

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/blacktop/pinpost/internal/logutil"
	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/hashicorp/go-cleanhttp"
)

const (
	envHandle      = "PINPOST_BLUESKY_HANDLE"
	envAppPassword = "PINPOST_BLUESKY_APP_PASSWORD"

	providerName   = pinpost.PlatformBluesky
	requestTimeout = 30 * time.Second

	// DefaultPDSURL is used when no PDS is configured.
	DefaultPDSURL = "https://bsky.social"
	// MaxPostLength is the Bluesky post text limit.
	MaxPostLength = 300

	postCollection = "app.bsky.feed.post"
	userAgent      = "pinpost/1"

	errExpiredToken = "ExpiredToken"
)

// Config holds the account and PDS to publish through.
type Config struct {
	Handle      string
	AppPassword string
	PDSURL      string
}

// Client implements pinpost.Publisher for Bluesky. The session is created on
// first use and renewed when the PDS reports the access token expired.
type Client struct {
	cfg  Config
	http *http.Client

	mu   sync.Mutex
	auth *xrpc.AuthInfo
}

// New constructs a Bluesky publisher without contacting the PDS.
func New(cfg Config) (*Client, error) {
	cfg.Handle = strings.TrimSpace(cfg.Handle)
	cfg.AppPassword = strings.TrimSpace(cfg.AppPassword)
	cfg.PDSURL = strings.TrimSpace(cfg.PDSURL)
	if cfg.PDSURL == "" {
		cfg.PDSURL = DefaultPDSURL
	}

	var missing []string
	if cfg.Handle == "" {
		missing = append(missing, envHandle)
	}
	if cfg.AppPassword == "" {
		missing = append(missing, envAppPassword)
	}
	if len(missing) > 0 {
		return nil, pinpost.ConfigurationError{Provider: providerName, Variables: missing}
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = requestTimeout

	return &Client{cfg: cfg, http: httpClient}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Validate has nothing to check beyond the shared title rule.
func (c *Client) Validate(pinpost.Payload) error { return nil }

// Publish creates a post with the resolved image embedded. An expired session
// is renewed and the post retried once.
func (c *Client) Publish(ctx context.Context, p pinpost.Payload) (*pinpost.Post, error) {
	xc, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	post, err := c.publish(ctx, xc, p)
	if !expiredToken(err) {
		return post, err
	}

	logutil.Debugf("bluesky session for %s expired, renewing", xc.Auth.Handle)
	if xc, err = c.renew(ctx, xc.Auth); err != nil {
		return nil, err
	}
	return c.publish(ctx, xc, p)
}

func (c *Client) publish(ctx context.Context, xc *xrpc.Client, p pinpost.Payload) (*pinpost.Post, error) {
	post := &bsky.FeedPost{
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Text:      PostText(p),
	}

	if p.MediaURL != "" {
		blob, err := c.uploadImage(ctx, xc, p.MediaURL)
		if err != nil {
			return nil, err
		}
		post.Embed = &bsky.FeedPost_Embed{
			EmbedImages: &bsky.EmbedImages{
				Images: []*bsky.EmbedImages_Image{
					{
						Alt:   p.AltText,
						Image: blob,
					},
				},
			},
		}
	}

	out, err := atproto.RepoCreateRecord(ctx, xc, &atproto.RepoCreateRecord_Input{
		Collection: postCollection,
		Repo:       xc.Auth.Did,
		Record: &util.LexiconTypeDecoder{
			Val: post,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	logutil.Debugf("bluesky record created: uri=%s", out.Uri)

	return &pinpost.Post{ID: out.Uri, URL: WebURL(out.Uri, xc.Auth.Handle)}, nil
}

// PostText joins title, description and link and clips to the post limit.
func PostText(p pinpost.Payload) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{p.Title, p.Description, p.Link} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return pinpost.Clip(strings.Join(parts, "\n\n"), MaxPostLength)
}

// WebURL turns an at:// post URI into its bsky.app link. It returns "" when
// the URI is not a post record.
func WebURL(uri, handle string) string {
	rest, ok := strings.CutPrefix(uri, "at://")
	if !ok {
		return ""
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != postCollection {
		return ""
	}
	profile := handle
	if profile == "" {
		profile = parts[0]
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", profile, parts[2])
}

func (c *Client) xrpcClient(auth *xrpc.AuthInfo) *xrpc.Client {
	ua := userAgent
	return &xrpc.Client{
		Client:    c.http,
		Host:      c.cfg.PDSURL,
		UserAgent: &ua,
		Auth:      auth,
	}
}

// session returns a client bound to a copy of the current session, logging
// in first when there is none.
func (c *Client) session(ctx context.Context) (*xrpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.auth == nil {
		if err := c.createSession(ctx); err != nil {
			return nil, err
		}
	}
	auth := *c.auth
	return c.xrpcClient(&auth), nil
}

// renew replaces the session stale came from. When another publish already
// renewed it, that session is reused.
func (c *Client) renew(ctx context.Context, stale *xrpc.AuthInfo) (*xrpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.auth == nil || c.auth.AccessJwt == stale.AccessJwt {
		if err := c.refreshSession(ctx, stale); err != nil {
			logutil.Debugf("bluesky refresh failed, logging in again: %v", err)
			if err := c.createSession(ctx); err != nil {
				return nil, err
			}
		}
	}
	auth := *c.auth
	return c.xrpcClient(&auth), nil
}

func (c *Client) createSession(ctx context.Context) error {
	out, err := atproto.ServerCreateSession(ctx, c.xrpcClient(nil), &atproto.ServerCreateSession_Input{
		Identifier: c.cfg.Handle,
		Password:   c.cfg.AppPassword,
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	c.auth = &xrpc.AuthInfo{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		Handle:     out.Handle,
		Did:        out.Did,
	}
	return nil
}

// refreshSession authenticates with the refresh token in place of the
// access token.
func (c *Client) refreshSession(ctx context.Context, stale *xrpc.AuthInfo) error {
	if stale.RefreshJwt == "" {
		return errors.New("no refresh token")
	}
	out, err := atproto.ServerRefreshSession(ctx, c.xrpcClient(&xrpc.AuthInfo{
		AccessJwt:  stale.RefreshJwt,
		RefreshJwt: stale.RefreshJwt,
		Handle:     stale.Handle,
		Did:        stale.Did,
	}))
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}

	c.auth = &xrpc.AuthInfo{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		Handle:     out.Handle,
		Did:        out.Did,
	}
	return nil
}

func expiredToken(err error) bool {
	var xerr *xrpc.Error
	if !errors.As(err, &xerr) {
		return false
	}
	var xe *xrpc.XRPCError
	return errors.As(xerr.Wrapped, &xe) && xe.ErrStr == errExpiredToken
}

func (c *Client) uploadImage(ctx context.Context, xc *xrpc.Client, mediaURL string) (*util.LexBlob, error) {
	file, err := pinpost.FetchMedia(ctx, c.http, mediaURL)
	if err != nil {
		return nil, err
	}

	resp, err := atproto.RepoUploadBlob(ctx, xc, bytes.NewReader(file.Data))
	if err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}

	if resp.Blob == nil {
		return nil, fmt.Errorf("upload blob: empty response")
	}

	return resp.Blob, nil
}
