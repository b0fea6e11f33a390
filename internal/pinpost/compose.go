package pinpost

import (
	"strings"
	"unicode/utf8"
)

// Field limits applied while composing. Platforms clip further as needed.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
	MaxAltTextLength     = 500
)

// DefaultHashtags are the hashtag options offered by the compose form.
var DefaultHashtags = []string{"mbti", "mbtimemes", "entp", "entj", "intp", "intj"}

// Selections is what a user picked in the compose form or on the command line.
type Selections struct {
	Title     string
	Text      string
	Hashtags  []string
	AltText   string
	AutoAlt   bool
	Link      string
	BoardID   string
	MediaURL  string
	File      *LocalFile
	Platforms []string
}

// Compose builds a PublishRequest from user selections. Unknown platforms are
// kept as-is so the orchestrator guard can report them.
func Compose(sel Selections) PublishRequest {
	title := Clip(strings.TrimSpace(sel.Title), MaxTitleLength)

	alt := Clip(strings.TrimSpace(sel.AltText), MaxAltTextLength)
	if alt == "" && sel.AutoAlt {
		alt = Clip(title, MaxAltTextLength)
	}

	description := strings.TrimSpace(strings.TrimSpace(sel.Text) + " " + JoinHashtags(sel.Hashtags))

	req := PublishRequest{
		Title:       title,
		Description: Clip(description, MaxDescriptionLength),
		AltText:     alt,
		Link:        strings.TrimSpace(sel.Link),
		BoardID:     strings.TrimSpace(sel.BoardID),
		Media: MediaSource{
			File: sel.File,
			URL:  strings.TrimSpace(sel.MediaURL),
		},
	}

	platforms, err := NormalizePlatforms(sel.Platforms)
	if err != nil {
		platforms = trimAll(sel.Platforms)
	}
	req.Platforms = platforms

	return req
}

// JoinHashtags renders tags as "#a #b", dropping blanks and duplicates.
func JoinHashtags(tags []string) string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimLeft(strings.TrimSpace(tag), "#")
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, "#"+tag)
	}
	return strings.Join(out, " ")
}

// Clip shortens s to at most n runes.
func Clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(strings.ToLower(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
