package pinterest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blacktop/pinpost/internal/logutil"
	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/hashicorp/go-cleanhttp"
)

const (
	envAccessToken = "PINPOST_PINTEREST_ACCESS_TOKEN"

	providerName   = pinpost.PlatformPinterest
	defaultAPIURL  = "https://api.pinterest.com"
	requestTimeout = 30 * time.Second
	boardPageSize  = 100
)

// Config holds the pre-issued bearer token and the API base URL.
type Config struct {
	AccessToken string
	APIURL      string
}

// Client talks to the Pinterest v5 REST API.
type Client struct {
	token  string
	base   string
	client *http.Client
}

// New constructs a Pinterest client. A missing token is a ConfigurationError.
func New(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, pinpost.ConfigurationError{Provider: providerName, Variables: []string{envAccessToken}}
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if base == "" {
		base = defaultAPIURL
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = requestTimeout

	return &Client{token: token, base: base, client: httpClient}, nil
}

// PinInput is the create-pin request. Empty optional fields are omitted.
type PinInput struct {
	Title       string `json:"title"`
	BoardID     string `json:"board_id"`
	Description string `json:"description,omitempty"`
	AltText     string `json:"alt_text,omitempty"`
	Link        string `json:"link,omitempty"`
	MediaSource struct {
		SourceType string `json:"source_type"`
		URL        string `json:"url"`
	} `json:"media_source"`
}

// Pin is the subset of the created pin we report back.
type Pin struct {
	ID   string `json:"id"`
	Link string `json:"link"`
	URL  string `json:"url"`
}

// PublicURL returns the best available public link to the pin.
func (p Pin) PublicURL() string {
	if p.Link != "" {
		return p.Link
	}
	return p.URL
}

// Board is a board the token's account can pin to.
type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Account is the raw reply of the user_account endpoint.
type Account struct {
	OK     bool            `json:"ok"`
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// NewPinInput builds a create-pin request from a payload, clipping fields to
// Pinterest's limits.
func NewPinInput(p pinpost.Payload) PinInput {
	in := PinInput{
		Title:       pinpost.Clip(strings.TrimSpace(p.Title), pinpost.MaxTitleLength),
		BoardID:     strings.TrimSpace(p.BoardID),
		Description: pinpost.Clip(p.Description, pinpost.MaxDescriptionLength),
		AltText:     pinpost.Clip(p.AltText, pinpost.MaxAltTextLength),
		Link:        strings.TrimSpace(p.Link),
	}
	in.MediaSource.SourceType = "image_url"
	in.MediaSource.URL = strings.TrimSpace(p.MediaURL)
	return in
}

// CreatePin creates a pin. Missing required fields fail before any request.
func (c *Client) CreatePin(ctx context.Context, in PinInput) (*Pin, error) {
	if err := validatePin(in); err != nil {
		return nil, err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode pin: %w", err)
	}

	logutil.Debugf("creating pin: board_id=%s media=%s", in.BoardID, in.MediaSource.URL)
	var pin Pin
	if err := c.do(ctx, http.MethodPost, "/v5/pins", bytes.NewReader(body), &pin, "Pinterest create pin error"); err != nil {
		return nil, err
	}
	logutil.Debugf("pin created: id=%s", pin.ID)

	return &pin, nil
}

// ListBoards returns every board of the authenticated account, following the
// bookmark cursor.
func (c *Client) ListBoards(ctx context.Context) ([]Board, error) {
	var boards []Board
	bookmark := ""
	for {
		query := url.Values{}
		query.Set("page_size", fmt.Sprint(boardPageSize))
		if bookmark != "" {
			query.Set("bookmark", bookmark)
		}

		var page struct {
			Items    []Board `json:"items"`
			Bookmark *string `json:"bookmark"`
		}
		if err := c.do(ctx, http.MethodGet, "/v5/boards?"+query.Encode(), nil, &page, "Pinterest list boards error"); err != nil {
			return nil, err
		}
		boards = append(boards, page.Items...)

		if page.Bookmark == nil || *page.Bookmark == "" || *page.Bookmark == bookmark {
			break
		}
		bookmark = *page.Bookmark
	}
	if boards == nil {
		boards = []Board{}
	}
	return boards, nil
}

// UserAccount returns the raw account reply without treating a non-2xx status
// as an error, so callers can show exactly what the API said.
func (c *Client) UserAccount(ctx context.Context) (*Account, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v5/user_account", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call user_account: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read user_account: %w", err)
	}

	acct := &Account{OK: resp.StatusCode >= 200 && resp.StatusCode <= 299, Status: resp.StatusCode}
	if json.Valid(raw) {
		acct.Data = raw
	} else {
		wrapped, _ := json.Marshal(map[string]string{"raw": string(raw)})
		acct.Data = wrapped
	}
	return acct, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any, fallback string) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamError(resp.StatusCode, raw, fallback)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func upstreamError(status int, raw []byte, fallback string) error {
	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	msg := fallback
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return pinpost.UpstreamError{Platform: providerName, Status: status, Message: msg}
}

func validatePin(in PinInput) error {
	switch {
	case in.Title == "":
		return pinpost.ValidationError{Provider: providerName, Reason: "missing title"}
	case in.BoardID == "":
		return pinpost.ValidationError{Provider: providerName, Reason: "missing board id"}
	case in.MediaSource.URL == "":
		return pinpost.ValidationError{Provider: providerName, Reason: "missing media url"}
	}
	return nil
}
