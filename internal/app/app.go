// Package app wires configuration into stores, publishers and the
// orchestrator.
package app

import (
	"fmt"

	"github.com/blacktop/pinpost/internal/client"
	"github.com/blacktop/pinpost/internal/config"
	"github.com/blacktop/pinpost/internal/logutil"
	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/blacktop/pinpost/internal/pinpost/bluesky"
	"github.com/blacktop/pinpost/internal/pinpost/mastodon"
	"github.com/blacktop/pinpost/internal/pinpost/pinterest"
	"github.com/blacktop/pinpost/internal/storage"
)

// Store kinds.
const (
	StoreS3  = "s3"
	StoreDir = "dir"
)

// App is a fully wired pinpost instance.
type App struct {
	Config config.Config

	// Pinterest is nil when no token is configured; PinterestErr says why.
	Pinterest    *pinterest.Client
	PinterestErr error

	Store        storage.ObjectStore
	Uploads      *storage.Resolver
	Registry     *pinpost.Registry
	Orchestrator *pinpost.Orchestrator
}

// New builds an App that talks to the platforms and the object store directly.
func New(cfg config.Config) (*App, error) {
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Store: store}
	a.Uploads = storage.NewResolver(store, cfg.PublicBaseURL)

	a.Pinterest, a.PinterestErr = pinterest.New(pinterest.Config{
		AccessToken: cfg.Pinterest.AccessToken,
		APIURL:      cfg.Pinterest.APIURL,
	})

	a.Registry = pinpost.NewRegistry()
	if a.PinterestErr != nil {
		logutil.Warnf("pinterest unavailable: %v", a.PinterestErr)
		a.Registry.Register(pinpost.Unavailable(pinpost.PlatformPinterest, a.PinterestErr, pinterest.ValidatePayload))
	} else {
		a.Registry.Register(a.Pinterest)
	}
	registerOptional(a.Registry, cfg)

	a.Orchestrator = pinpost.NewOrchestrator(a.Uploads, a.Registry)
	return a, nil
}

// NewRemote builds an App whose media uploads and pins go through a running
// pinpost server at baseURL. Other platforms still use local credentials.
func NewRemote(cfg config.Config, baseURL string) *App {
	c := client.New(baseURL)

	a := &App{Config: cfg}
	a.Registry = pinpost.NewRegistry(client.NewPublisher(c))
	registerOptional(a.Registry, cfg)
	a.Orchestrator = pinpost.NewOrchestrator(client.NewResolver(c), a.Registry)
	return a
}

// NewStore opens the object store selected by cfg.Store.Kind. An empty kind
// returns a nil store: uploads then fail with a ConfigurationError.
func NewStore(cfg config.Config) (storage.ObjectStore, error) {
	switch cfg.Store.Kind {
	case "":
		return nil, nil
	case StoreS3:
		s3, err := storage.NewS3(storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	case StoreDir:
		dir, err := storage.NewDir(cfg.Store.Dir)
		if err != nil {
			return nil, err
		}
		return dir, nil
	}
	return nil, fmt.Errorf("unsupported store kind %q (use %s or %s)", cfg.Store.Kind, StoreS3, StoreDir)
}

func registerOptional(r *pinpost.Registry, cfg config.Config) {
	m, err := mastodon.New(mastodon.Config{
		Server:       cfg.Mastodon.Server,
		AccessToken:  cfg.Mastodon.AccessToken,
		ClientID:     cfg.Mastodon.ClientID,
		ClientSecret: cfg.Mastodon.ClientSecret,
	})
	if err != nil {
		if cfg.Mastodon.Configured() {
			logutil.Warnf("mastodon unavailable: %v", err)
		}
		r.Register(pinpost.Unavailable(pinpost.PlatformMastodon, err, nil))
	} else {
		r.Register(m)
	}

	b, err := bluesky.New(bluesky.Config{
		Handle:      cfg.Bluesky.Handle,
		AppPassword: cfg.Bluesky.AppPassword,
		PDSURL:      cfg.Bluesky.PDSURL,
	})
	if err != nil {
		if cfg.Bluesky.Configured() {
			logutil.Warnf("bluesky unavailable: %v", err)
		}
		r.Register(pinpost.Unavailable(pinpost.PlatformBluesky, err, nil))
	} else {
		r.Register(b)
	}
}
