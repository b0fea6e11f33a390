// Package storage hosts uploaded images in an object store and resolves
// them to public URLs.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/blacktop/pinpost/internal/logutil"
	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/google/uuid"
)

const (
	keyPrefix          = "uploads"
	defaultContentType = "application/octet-stream"
)

// ObjectStore writes a single object.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Resolver implements pinpost.MediaResolver on top of an ObjectStore.
type Resolver struct {
	Store         ObjectStore
	PublicBaseURL string

	now   func() time.Time
	newID func() string
}

// NewResolver returns a resolver that uploads into store and links objects
// under publicBaseURL.
func NewResolver(store ObjectStore, publicBaseURL string) *Resolver {
	return &Resolver{
		Store:         store,
		PublicBaseURL: publicBaseURL,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// Resolve uploads a local file or passes a remote URL through untouched.
func (r *Resolver) Resolve(ctx context.Context, src pinpost.MediaSource) (string, error) {
	if src.File == nil {
		if u := strings.TrimSpace(src.URL); u != "" {
			return u, nil
		}
		return "", pinpost.ValidationError{Reason: "provide an image file or a media url"}
	}
	return r.Upload(ctx, src.File)
}

// Upload stores file under a fresh key and returns its public URL.
func (r *Resolver) Upload(ctx context.Context, file *pinpost.LocalFile) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(r.PublicBaseURL), "/")
	if base == "" {
		return "", pinpost.ConfigurationError{
			Provider:  "storage",
			Variables: []string{"PINPOST_PUBLIC_BASE_URL"},
			Reason:    "set the public base URL that serves the media bucket (e.g. https://media.example.com)",
		}
	}
	if r.Store == nil {
		return "", pinpost.ConfigurationError{Provider: "storage", Reason: "no object store configured"}
	}
	if file == nil || len(file.Data) == 0 {
		return "", pinpost.ValidationError{Reason: "missing file"}
	}

	key := r.key(file.Name)
	contentType := file.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	logutil.Debugf("storing media: key=%s type=%s bytes=%d", key, contentType, len(file.Data))
	if err := r.Store.Put(ctx, key, file.Data, contentType); err != nil {
		return "", pinpost.StorageError{Key: key, Err: err}
	}

	return base + "/" + key, nil
}

// Key returns uploads/<YYYY-MM-DD>/<id>.<ext> for a file name.
func Key(now time.Time, id, name string) string {
	return fmt.Sprintf("%s/%s/%s.%s", keyPrefix, now.UTC().Format("2006-01-02"), id, extension(name))
}

func (r *Resolver) key(name string) string {
	now, newID := r.now, r.newID
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return Key(now(), newID(), name)
}

func extension(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return "bin"
	}
	return ext
}
