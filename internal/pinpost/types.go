package pinpost

import "context"

// LocalFile is an image held in memory until it is resolved into a stored URL.
type LocalFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// MediaSource selects where the publishable image comes from. When File is
// set it wins and URL is ignored.
type MediaSource struct {
	File *LocalFile
	URL  string
}

// Empty reports whether neither a file nor a URL was provided.
func (m MediaSource) Empty() bool {
	return m.File == nil && m.URL == ""
}

// PublishRequest is everything a single publish attempt needs.
type PublishRequest struct {
	Title       string
	Description string
	AltText     string
	Link        string
	BoardID     string
	Media       MediaSource
	Platforms   []string
}

// Payload is the per-platform copy of a request with the media resolved.
type Payload struct {
	Title       string
	Description string
	AltText     string
	Link        string
	BoardID     string
	MediaURL    string
}

// Post identifies content created on a platform.
type Post struct {
	ID  string
	URL string
}

// Publisher abstracts a platform that can publish a composed payload.
type Publisher interface {
	Name() string
	// Validate checks platform-specific required fields without doing I/O.
	Validate(p Payload) error
	Publish(ctx context.Context, p Payload) (*Post, error)
}

// MediaResolver turns a MediaSource into a single public URL.
type MediaResolver interface {
	Resolve(ctx context.Context, src MediaSource) (string, error)
}

func (r PublishRequest) payload(mediaURL string) Payload {
	return Payload{
		Title:       r.Title,
		Description: r.Description,
		AltText:     r.AltText,
		Link:        r.Link,
		BoardID:     r.BoardID,
		MediaURL:    mediaURL,
	}
}
