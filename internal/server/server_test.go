package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/blacktop/pinpost/internal/pinpost/pinterest"
)

type fakePinterest struct {
	boards    []pinterest.Board
	boardsErr error
	pin       *pinterest.Pin
	pinErr    error
	created   []pinterest.PinInput
}

func (f *fakePinterest) CreatePin(_ context.Context, in pinterest.PinInput) (*pinterest.Pin, error) {
	f.created = append(f.created, in)
	if f.pinErr != nil {
		return nil, f.pinErr
	}
	return f.pin, nil
}

func (f *fakePinterest) ListBoards(context.Context) ([]pinterest.Board, error) {
	return f.boards, f.boardsErr
}

func (f *fakePinterest) UserAccount(context.Context) (*pinterest.Account, error) {
	return &pinterest.Account{OK: true, Status: 200, Data: json.RawMessage(`{"username":"me"}`)}, nil
}

type fakeUploader struct {
	url   string
	err   error
	files []*pinpost.LocalFile
}

func (f *fakeUploader) Upload(_ context.Context, file *pinpost.LocalFile) (string, error) {
	f.files = append(f.files, file)
	return f.url, f.err
}

func (f *fakeUploader) Resolve(ctx context.Context, src pinpost.MediaSource) (string, error) {
	if src.File == nil {
		if src.URL == "" {
			return "", pinpost.ValidationError{Reason: "provide an image file or a media url"}
		}
		return src.URL, nil
	}
	return f.Upload(ctx, src.File)
}

type stubPublisher struct {
	name string
	post *pinpost.Post
	err  error
}

func (s stubPublisher) Name() string { return s.name }

func (s stubPublisher) Validate(p pinpost.Payload) error {
	if s.name == pinpost.PlatformPinterest && p.BoardID == "" {
		return pinpost.ValidationError{Provider: s.name, Reason: "missing board id"}
	}
	return nil
}

func (s stubPublisher) Publish(context.Context, pinpost.Payload) (*pinpost.Post, error) {
	return s.post, s.err
}

// ctxPublisher fails with the context error if the request context leaks into
// the attempt.
type ctxPublisher struct{ name string }

func (c ctxPublisher) Name() string { return c.name }

func (c ctxPublisher) Validate(pinpost.Payload) error { return nil }

func (c ctxPublisher) Publish(ctx context.Context, _ pinpost.Payload) (*pinpost.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &pinpost.Post{ID: c.name + "-1"}, nil
}

func newTestServer(pin *fakePinterest, up *fakeUploader, publishers ...pinpost.Publisher) http.Handler {
	reg := pinpost.NewRegistry(publishers...)
	opts := Options{
		Uploader:     up,
		Orchestrator: pinpost.NewOrchestrator(up, reg),
		Wired:        reg.Wired,
	}
	if pin != nil {
		opts.Pinterest = pin
	} else {
		opts.PinterestErr = pinpost.ConfigurationError{Provider: "pinterest", Variables: []string{"PINPOST_PINTEREST_ACCESS_TOKEN"}}
	}
	return New(opts).Handler()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var out errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return out.Error
}

func multipartBody(t *testing.T, fields map[string][]string, fileField, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for key, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(key, v); err != nil {
				t.Fatalf("write field: %v", err)
			}
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return body, mw.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	rr := do(t, newTestServer(nil, &fakeUploader{}), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestListBoards(t *testing.T) {
	pin := &fakePinterest{boards: []pinterest.Board{{ID: "1", Name: "Memes"}}}
	rr := do(t, newTestServer(pin, &fakeUploader{}), httptest.NewRequest(http.MethodGet, "/api/boards", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing cors header")
	}
	var boards []pinterest.Board
	if err := json.Unmarshal(rr.Body.Bytes(), &boards); err != nil || len(boards) != 1 || boards[0].Name != "Memes" {
		t.Fatalf("unexpected boards %s (%v)", rr.Body.String(), err)
	}
}

func TestListBoardsUpstreamFailure(t *testing.T) {
	pin := &fakePinterest{boardsErr: pinpost.UpstreamError{Platform: "pinterest", Status: 401, Message: "Authentication failed."}}
	rr := do(t, newTestServer(pin, &fakeUploader{}), httptest.NewRequest(http.MethodGet, "/api/boards", nil))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	if msg := decodeError(t, rr); msg != "Authentication failed." {
		t.Fatalf("error = %q", msg)
	}
}

func TestListBoardsWithoutToken(t *testing.T) {
	rr := do(t, newTestServer(nil, &fakeUploader{}), httptest.NewRequest(http.MethodGet, "/api/boards", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if msg := decodeError(t, rr); !strings.Contains(msg, "PINPOST_PINTEREST_ACCESS_TOKEN") {
		t.Fatalf("error = %q", msg)
	}
}

func TestWhoAmI(t *testing.T) {
	rr := do(t, newTestServer(&fakePinterest{}, &fakeUploader{}), httptest.NewRequest(http.MethodGet, "/api/whoami", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"username":"me"`) {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestPreflight(t *testing.T) {
	rr := do(t, newTestServer(nil, &fakeUploader{}), httptest.NewRequest(http.MethodOptions, "/api/pinterest", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET,POST,OPTIONS" {
		t.Fatalf("allow methods = %q", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rr := do(t, newTestServer(nil, &fakeUploader{}), httptest.NewRequest(http.MethodGet, "/api/pinterest", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestUpload(t *testing.T) {
	up := &fakeUploader{url: "https://media.example.com/uploads/2024-03-09/abc.png"}
	body, contentType := multipartBody(t, nil, "file", "cat.png", []byte("\x89PNG\r\n\x1a\n0000"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	rr := do(t, newTestServer(nil, up), req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var out uploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil || out.URL != up.url {
		t.Fatalf("unexpected body %s (%v)", rr.Body.String(), err)
	}
	if len(up.files) != 1 || up.files[0].Name != "cat.png" {
		t.Fatalf("unexpected uploads: %+v", up.files)
	}
}

func TestUploadErrors(t *testing.T) {
	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		rr := do(t, newTestServer(nil, &fakeUploader{}), req)
		if rr.Code != http.StatusBadRequest || decodeError(t, rr) != "Invalid multipart/form-data" {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string][]string{"other": {"x"}}, "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)
		rr := do(t, newTestServer(nil, &fakeUploader{}), req)
		if rr.Code != http.StatusBadRequest || decodeError(t, rr) != "Missing file" {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
	})

	t.Run("store failure", func(t *testing.T) {
		up := &fakeUploader{err: pinpost.StorageError{Key: "k", Err: errors.New("denied")}}
		body, contentType := multipartBody(t, nil, "file", "a.png", []byte("png"))
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)
		rr := do(t, newTestServer(nil, up), req)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rr.Code)
		}
	})
}

func TestCreatePin(t *testing.T) {
	pin := &fakePinterest{pin: &pinterest.Pin{ID: "p1", Link: "https://pin.it/p1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/pinterest", strings.NewReader(`{"title":"Hello","boardId":"b1","mediaUrl":"https://media.example.com/a.png","altText":""}`))

	rr := do(t, newTestServer(pin, &fakeUploader{}), req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var out pinResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.PinID != "p1" || out.PinURL == nil || *out.PinURL != "https://pin.it/p1" {
		t.Fatalf("unexpected response: %s", rr.Body.String())
	}
	if len(pin.created) != 1 || pin.created[0].AltText != "" || pin.created[0].MediaSource.SourceType != "image_url" {
		t.Fatalf("unexpected pin input: %+v", pin.created)
	}
}

func TestCreatePinNullURL(t *testing.T) {
	pin := &fakePinterest{pin: &pinterest.Pin{ID: "p1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/post", strings.NewReader(`{"title":"t","boardId":"b","mediaUrl":"u"}`))
	rr := do(t, newTestServer(pin, &fakeUploader{}), req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"pinUrl":null`) {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreatePinValidation(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`not json`, "Invalid JSON"},
		{`{"boardId":"b","mediaUrl":"u"}`, "Missing title"},
		{`{"title":"t","boardId":"","mediaUrl":"u"}`, "Missing boardId"},
		{`{"title":"t","boardId":"b"}`, "Missing mediaUrl"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			pin := &fakePinterest{pin: &pinterest.Pin{ID: "p1"}}
			rr := do(t, newTestServer(pin, &fakeUploader{}), httptest.NewRequest(http.MethodPost, "/api/pinterest", strings.NewReader(tt.body)))
			if rr.Code != http.StatusBadRequest || decodeError(t, rr) != tt.want {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			if len(pin.created) != 0 {
				t.Fatalf("upstream called for an invalid request")
			}
		})
	}
}

func TestCreatePinUpstreamError(t *testing.T) {
	pin := &fakePinterest{pinErr: pinpost.UpstreamError{Platform: "pinterest", Status: 401, Message: "Authentication failed."}}
	req := httptest.NewRequest(http.MethodPost, "/api/pinterest", strings.NewReader(`{"title":"t","boardId":"b","mediaUrl":"u"}`))
	rr := do(t, newTestServer(pin, &fakeUploader{}), req)
	if rr.Code != http.StatusUnauthorized || decodeError(t, rr) != "Authentication failed." {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreatePinWithoutToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/pinterest", strings.NewReader(`{"title":"t","boardId":"b","mediaUrl":"u"}`))
	rr := do(t, newTestServer(nil, &fakeUploader{}), req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestPublish(t *testing.T) {
	h := newTestServer(nil, &fakeUploader{},
		stubPublisher{name: pinpost.PlatformPinterest, post: &pinpost.Post{ID: "p1", URL: "https://pin.it/p1"}},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/publish", strings.NewReader(
		`{"title":"Hello","boardId":"b1","mediaUrl":"https://cdn.example.com/a.png","hashtags":["intj"],"platforms":["pinterest","x"]}`))

	rr := do(t, h, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var out publishResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.AttemptID == "" || out.MediaURL != "https://cdn.example.com/a.png" {
		t.Fatalf("unexpected response: %+v", out)
	}
	if len(out.Results) != 2 {
		t.Fatalf("got %d results", len(out.Results))
	}
	if !out.Results[0].OK || out.Results[0].ID != "p1" {
		t.Fatalf("pinterest result: %+v", out.Results[0])
	}
	if out.Results[1].OK || out.Results[1].Platform != "x" || !strings.Contains(out.Results[1].Error, "not implemented") {
		t.Fatalf("x result: %+v", out.Results[1])
	}
}

func TestPublishValidation(t *testing.T) {
	h := newTestServer(nil, &fakeUploader{}, stubPublisher{name: pinpost.PlatformPinterest, post: &pinpost.Post{ID: "p1"}})
	tests := []string{
		`{"title":"Hello","boardId":"b1","mediaUrl":"u","platforms":[]}`,
		`{"title":"Hello","boardId":"","mediaUrl":"u","platforms":["pinterest"]}`,
		`{"title":"Hello","boardId":"b1","mediaUrl":"u","platforms":["friendster"]}`,
	}
	for _, body := range tests {
		rr := do(t, h, httptest.NewRequest(http.MethodPost, "/api/publish", strings.NewReader(body)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d", body, rr.Code)
		}
	}
}

func TestPublishOutlivesClientDisconnect(t *testing.T) {
	h := newTestServer(nil, &fakeUploader{}, ctxPublisher{name: pinpost.PlatformMastodon})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/publish", strings.NewReader(
		`{"title":"Hello","mediaUrl":"https://cdn.example.com/a.png","platforms":["mastodon"]}`)).WithContext(ctx)

	rr := do(t, h, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var out publishResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Results) != 1 || !out.Results[0].OK {
		t.Fatalf("publish was cancelled with the request: %+v", out.Results)
	}
}

func TestFormSubmitOutlivesClientDisconnect(t *testing.T) {
	up := &fakeUploader{url: "https://media.example.com/uploads/a.png"}
	h := newTestServer(&fakePinterest{}, up, ctxPublisher{name: pinpost.PlatformMastodon})

	body, contentType := multipartBody(t, map[string][]string{
		"title":     {"Hello"},
		"platforms": {"mastodon"},
	}, "file", "a.png", []byte("png"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/", body).WithContext(ctx)
	req.Header.Set("Content-Type", contentType)

	rr := do(t, h, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "mastodon: published mastodon-1") {
		t.Fatalf("publish was cancelled with the request")
	}
}

func TestFormRendersBoardsAndPlatforms(t *testing.T) {
	pin := &fakePinterest{boards: []pinterest.Board{{ID: "b1", Name: "Memes"}}}
	h := newTestServer(pin, &fakeUploader{}, stubPublisher{name: pinpost.PlatformPinterest})

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`value="b1"`, "Memes", "#intj", `value="pinterest" checked`, `class="disabled"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("form missing %q", want)
		}
	}
}

func TestFormBoardError(t *testing.T) {
	rr := do(t, newTestServer(nil, &fakeUploader{}), httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rr.Body.String(), "Could not load boards. Check your API token/server.") {
		t.Fatalf("missing board error")
	}
}

func TestFormSubmitUploadsOnceAndPublishes(t *testing.T) {
	up := &fakeUploader{url: "https://media.example.com/uploads/a.png"}
	pin := &fakePinterest{boards: []pinterest.Board{{ID: "b1", Name: "Memes"}}}
	h := newTestServer(pin, up,
		stubPublisher{name: pinpost.PlatformPinterest, post: &pinpost.Post{ID: "p1", URL: "https://pin.it/p1"}},
		stubPublisher{name: pinpost.PlatformMastodon, post: &pinpost.Post{ID: "m1"}},
	)

	body, contentType := multipartBody(t, map[string][]string{
		"title":     {"Hello"},
		"name":      {"desc"},
		"hashtags":  {"intj"},
		"board_id":  {"b1"},
		"platforms": {"pinterest", "mastodon"},
	}, "file", "a.png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)

	rr := do(t, h, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if len(up.files) != 1 {
		t.Fatalf("uploaded %d times, want 1", len(up.files))
	}
	out := rr.Body.String()
	for _, want := range []string{"pinterest: published p1 (https://pin.it/p1)", "mastodon: published m1", up.url} {
		if !strings.Contains(out, want) {
			t.Fatalf("response missing %q", want)
		}
	}
	if strings.Contains(out, `value="Hello"`) {
		t.Fatalf("form not cleared after success")
	}
}

func TestFormSubmitValidationError(t *testing.T) {
	up := &fakeUploader{url: "https://media.example.com/uploads/a.png"}
	h := newTestServer(&fakePinterest{}, up, stubPublisher{name: pinpost.PlatformPinterest})

	body, contentType := multipartBody(t, map[string][]string{
		"title":     {"Hello"},
		"platforms": {"pinterest"},
	}, "file", "a.png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)

	rr := do(t, h, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(up.files) != 0 {
		t.Fatalf("file uploaded for an invalid request")
	}
	if !strings.Contains(rr.Body.String(), "missing board id") || !strings.Contains(rr.Body.String(), `value="Hello"`) {
		t.Fatalf("form should keep values and show the error")
	}
}

func TestMediaDirServed(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "uploads"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "uploads", "a.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := New(Options{MediaDir: dir}).Handler()
	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/media/uploads/a.txt", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "hi" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{pinpost.ValidationError{Reason: "x"}, http.StatusBadRequest},
		{pinpost.NotImplementedError{Platform: "x"}, http.StatusNotImplemented},
		{pinpost.UpstreamError{Status: 429}, http.StatusTooManyRequests},
		{pinpost.UpstreamError{Status: 0}, http.StatusBadGateway},
		{pinpost.ConfigurationError{Provider: "storage"}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
