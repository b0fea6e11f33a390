package server

import (
	"context"
	"embed"
	"html/template"
	"net/http"

	"github.com/blacktop/pinpost/internal/logutil"
	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/blacktop/pinpost/internal/pinpost/pinterest"
)

//go:embed templates/*.html
var templates embed.FS

var formTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

type platformOption struct {
	Name     string
	Wired    bool
	Selected bool
}

type hashtagOption struct {
	Tag      string
	Selected bool
}

type formPage struct {
	Boards     []pinterest.Board
	BoardError string
	Hashtags   []hashtagOption
	Platforms  []platformOption
	Values     pinpost.Selections
	Results    []string
	Error      string
	MediaURL   string
}

func (s *Server) showForm(w http.ResponseWriter, r *http.Request) {
	page := s.newPage(r, pinpost.Selections{Platforms: []string{pinpost.PlatformPinterest}})
	s.render(w, http.StatusOK, page)
}

func (s *Server) submitForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		page := s.newPage(r, pinpost.Selections{})
		page.Error = "Invalid form submission: " + err.Error()
		s.render(w, http.StatusBadRequest, page)
		return
	}

	sel := pinpost.Selections{
		Title:     r.FormValue("title"),
		Text:      r.FormValue("name"),
		Hashtags:  r.Form["hashtags"],
		AltText:   r.FormValue("alt_text"),
		AutoAlt:   true,
		Link:      r.FormValue("link"),
		BoardID:   r.FormValue("board_id"),
		MediaURL:  r.FormValue("media_url"),
		Platforms: r.Form["platforms"],
	}

	file, err := formFile(r, "file")
	if err != nil {
		page := s.newPage(r, sel)
		page.Error = "Could not read file: " + err.Error()
		s.render(w, http.StatusBadRequest, page)
		return
	}
	sel.File = file

	page := s.newPage(r, sel)
	if s.opts.Orchestrator == nil {
		page.Error = "Publishing is not configured."
		s.render(w, http.StatusInternalServerError, page)
		return
	}

	report, err := s.opts.Orchestrator.Publish(context.WithoutCancel(r.Context()), pinpost.Compose(sel))
	if err != nil {
		logutil.Warnf("form publish: %v", err)
		page.Error = err.Error()
		s.render(w, statusFor(err), page)
		return
	}

	page.MediaURL = report.MediaURL
	for _, res := range report.Results {
		page.Results = append(page.Results, res.String())
	}
	if len(report.Failed()) == 0 {
		// a fully successful publish starts a fresh form
		page.Values = pinpost.Selections{Platforms: sel.Platforms}
		page.Hashtags = hashtagOptions(nil)
	}
	s.render(w, http.StatusOK, page)
}

func (s *Server) newPage(r *http.Request, sel pinpost.Selections) formPage {
	page := formPage{
		Values:   sel,
		Hashtags: hashtagOptions(sel.Hashtags),
	}

	selected := map[string]bool{}
	for _, p := range sel.Platforms {
		selected[p] = true
	}
	for _, name := range pinpost.KnownPlatforms() {
		page.Platforms = append(page.Platforms, platformOption{
			Name:     name,
			Wired:    s.opts.Wired(name),
			Selected: selected[name],
		})
	}

	if s.opts.Pinterest == nil {
		page.BoardError = "Could not load boards. Check your API token/server."
		return page
	}
	boards, err := s.opts.Pinterest.ListBoards(r.Context())
	if err != nil {
		logutil.Warnf("load boards: %v", err)
		page.BoardError = "Could not load boards. Check your API token/server."
		return page
	}
	page.Boards = boards
	return page
}

func hashtagOptions(selected []string) []hashtagOption {
	picked := map[string]bool{}
	for _, tag := range selected {
		picked[tag] = true
	}
	out := make([]hashtagOption, 0, len(pinpost.DefaultHashtags))
	for _, tag := range pinpost.DefaultHashtags {
		out = append(out, hashtagOption{Tag: tag, Selected: picked[tag]})
	}
	return out
}

func (s *Server) render(w http.ResponseWriter, status int, page formPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := formTemplate.Execute(w, page); err != nil {
		logutil.Errorf("render form: %v", err)
	}
}
