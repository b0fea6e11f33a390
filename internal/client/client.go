// Package client calls a running pinpost server over its /api surface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/hashicorp/go-cleanhttp"
)

const requestTimeout = 60 * time.Second

// Client talks to the pinpost proxy endpoints.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = requestTimeout
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Board mirrors an entry of GET /api/boards.
type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PinRequest is the body of POST /api/pinterest.
type PinRequest struct {
	Title       string `json:"title"`
	BoardID     string `json:"boardId"`
	Description string `json:"description"`
	MediaURL    string `json:"mediaUrl"`
	AltText     string `json:"altText"`
	Link        string `json:"link,omitempty"`
}

// PinResponse is the success body of POST /api/pinterest.
type PinResponse struct {
	PinID  string  `json:"pinId"`
	PinURL *string `json:"pinUrl"`
}

// HTTPError is a non-2xx reply carrying the server's {error} message.
type HTTPError struct {
	Status  int
	Message string
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// Boards lists the boards available for pinning.
func (c *Client) Boards(ctx context.Context) ([]Board, error) {
	var boards []Board
	if err := c.doJSON(ctx, http.MethodGet, "/api/boards", nil, &boards); err != nil {
		return nil, err
	}
	return boards, nil
}

// WhoAmI returns the raw account check reply.
func (c *Client) WhoAmI(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/whoami", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Upload sends a file to POST /api/upload and returns its public URL.
func (c *Client) Upload(ctx context.Context, file *pinpost.LocalFile) (string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	name := file.Name
	if name == "" {
		name = "upload"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/upload", body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var out struct {
		URL string `json:"url"`
	}
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("upload: response has no url")
	}
	return out.URL, nil
}

// CreatePin calls POST /api/pinterest.
func (c *Client) CreatePin(ctx context.Context, in PinRequest) (*PinResponse, error) {
	var out PinResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/pinterest", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var e struct {
			Error string `json:"error"`
		}
		if strings.Contains(resp.Header.Get("Content-Type"), "application/json") && json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return HTTPError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
