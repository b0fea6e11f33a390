// Package server exposes the pinpost proxy endpoints and the compose form.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/blacktop/pinpost/internal/logutil"
	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/blacktop/pinpost/internal/pinpost/pinterest"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultMaxUploadBytes = 32 << 20
	shutdownTimeout       = 10 * time.Second
)

// Pinterest is the slice of the Pinterest client the proxy endpoints use.
type Pinterest interface {
	CreatePin(ctx context.Context, in pinterest.PinInput) (*pinterest.Pin, error)
	ListBoards(ctx context.Context) ([]pinterest.Board, error)
	UserAccount(ctx context.Context) (*pinterest.Account, error)
}

// Uploader stores a local file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, file *pinpost.LocalFile) (string, error)
}

// Options wires the server to its collaborators.
type Options struct {
	// Pinterest may be nil; PinterestErr then explains why.
	Pinterest    Pinterest
	PinterestErr error

	Uploader     Uploader
	Orchestrator *pinpost.Orchestrator
	// Wired reports which platforms have a real publisher, for the form.
	Wired func(platform string) bool

	// MediaDir, when set, is served under /media/.
	MediaDir       string
	MaxUploadBytes int64
}

// Server holds the HTTP handlers.
type Server struct {
	opts Options
}

// New returns a server for opts.
func New(opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.Wired == nil {
		opts.Wired = func(string) bool { return true }
	}
	return &Server{opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/", s.showForm)
	r.Post("/", s.submitForm)

	if s.opts.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(s.opts.MediaDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(cors)
		r.NotFound(notFound)
		r.MethodNotAllowed(methodNotAllowed)

		r.Get("/boards", s.listBoards)
		r.Get("/whoami", s.whoAmI)
		r.Post("/upload", s.upload)
		r.Post("/pinterest", s.createPin)
		r.Post("/post", s.createPin)
		r.Post("/publish", s.publish)
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logutil.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logutil.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
