package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/blacktop/pinpost/internal/logutil"
	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/blacktop/pinpost/internal/pinpost/pinterest"
)

type pinRequest struct {
	Title       string `json:"title"`
	BoardID     string `json:"boardId"`
	Description string `json:"description"`
	MediaURL    string `json:"mediaUrl"`
	AltText     string `json:"altText"`
	Link        string `json:"link"`
}

type pinResponse struct {
	PinID  string  `json:"pinId"`
	PinURL *string `json:"pinUrl"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

type publishRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags"`
	BoardID     string   `json:"boardId"`
	MediaURL    string   `json:"mediaUrl"`
	AltText     string   `json:"altText"`
	Link        string   `json:"link"`
	Platforms   []string `json:"platforms"`
}

type publishResult struct {
	Platform string `json:"platform"`
	OK       bool   `json:"ok"`
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

type publishResponse struct {
	AttemptID string          `json:"attemptId"`
	MediaURL  string          `json:"mediaUrl"`
	Results   []publishResult `json:"results"`
}

func (s *Server) pinterestUnavailable(w http.ResponseWriter) bool {
	if s.opts.Pinterest != nil {
		return false
	}
	msg := "pinterest not configured"
	if s.opts.PinterestErr != nil {
		msg = s.opts.PinterestErr.Error()
	}
	writeError(w, http.StatusInternalServerError, msg)
	return true
}

func (s *Server) listBoards(w http.ResponseWriter, r *http.Request) {
	if s.pinterestUnavailable(w) {
		return
	}

	boards, err := s.opts.Pinterest.ListBoards(r.Context())
	if err != nil {
		logutil.Errorf("list boards: %v", err)
		writeError(w, http.StatusBadGateway, upstreamMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, boards)
}

func (s *Server) whoAmI(w http.ResponseWriter, r *http.Request) {
	if s.pinterestUnavailable(w) {
		return
	}

	acct, err := s.opts.Pinterest.UserAccount(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if s.opts.Uploader == nil {
		writeError(w, http.StatusInternalServerError, "object store not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart/form-data")
		return
	}

	file, err := formFile(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if file == nil {
		writeError(w, http.StatusBadRequest, "Missing file")
		return
	}

	url, err := s.opts.Uploader.Upload(r.Context(), file)
	if err != nil {
		logutil.Errorf("upload: %v", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{URL: url})
}

func (s *Server) createPin(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	in := pinterest.NewPinInput(pinpost.Payload{
		Title:       req.Title,
		BoardID:     req.BoardID,
		Description: req.Description,
		AltText:     req.AltText,
		Link:        req.Link,
		MediaURL:    req.MediaURL,
	})
	switch {
	case in.Title == "":
		writeError(w, http.StatusBadRequest, "Missing title")
		return
	case in.BoardID == "":
		writeError(w, http.StatusBadRequest, "Missing boardId")
		return
	case in.MediaSource.URL == "":
		writeError(w, http.StatusBadRequest, "Missing mediaUrl")
		return
	}

	if s.pinterestUnavailable(w) {
		return
	}

	pin, err := s.opts.Pinterest.CreatePin(r.Context(), in)
	if err != nil {
		logutil.Errorf("create pin: %v", err)
		writeError(w, statusFor(err), upstreamMessage(err))
		return
	}

	resp := pinResponse{PinID: pin.ID}
	if u := pin.PublicURL(); u != "" {
		resp.PinURL = &u
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	if s.opts.Orchestrator == nil {
		writeError(w, http.StatusInternalServerError, "publishing not configured")
		return
	}

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	composed := pinpost.Compose(pinpost.Selections{
		Title:     req.Title,
		Text:      req.Description,
		Hashtags:  req.Hashtags,
		AltText:   req.AltText,
		Link:      req.Link,
		BoardID:   req.BoardID,
		MediaURL:  req.MediaURL,
		Platforms: req.Platforms,
	})

	// a client disconnect must not abandon platforms mid-publish
	report, err := s.opts.Orchestrator.Publish(context.WithoutCancel(r.Context()), composed)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := publishResponse{AttemptID: report.AttemptID, MediaURL: report.MediaURL, Results: make([]publishResult, 0, len(report.Results))}
	for _, res := range report.Results {
		out := publishResult{Platform: res.Platform, OK: res.OK()}
		if res.OK() {
			out.ID = res.Post.ID
			out.URL = res.Post.URL
		} else {
			out.Error = res.Err.Error()
		}
		resp.Results = append(resp.Results, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

// formFile reads an optional multipart file field into memory. It returns
// nil when the field is absent or empty.
func formFile(r *http.Request, field string) (*pinpost.LocalFile, error) {
	f, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &pinpost.LocalFile{
		Name:        header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}
