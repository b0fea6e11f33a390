package pinpost

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
)

// MaxMediaBytes caps how much of a remote image is read into memory.
const MaxMediaBytes = 20 << 20

// FetchMedia downloads a resolved media URL for platforms that need the image
// bytes rather than a link.
func FetchMedia(ctx context.Context, client *http.Client, mediaURL string) (*LocalFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create media request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch media: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if len(data) > MaxMediaBytes {
		return nil, fmt.Errorf("media larger than %d bytes", MaxMediaBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = http.DetectContentType(data)
	}

	return &LocalFile{
		Name:        path.Base(req.URL.Path),
		ContentType: contentType,
		Data:        data,
	}, nil
}
