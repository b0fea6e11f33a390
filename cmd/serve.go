package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/blacktop/pinpost/internal/app"
	"github.com/blacktop/pinpost/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compose form and the proxy API",
		Example: `  PINPOST_PINTEREST_ACCESS_TOKEN=... PINPOST_STORE_KIND=dir \
  PINPOST_PUBLIC_BASE_URL=http://localhost:8080/media pinpost serve`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}

	opts := server.Options{
		PinterestErr: a.PinterestErr,
		Uploader:     a.Uploads,
		Orchestrator: a.Orchestrator,
		Wired:        a.Registry.Wired,
	}
	if a.Pinterest != nil {
		opts.Pinterest = a.Pinterest
	}
	if cfg.Store.Kind == app.StoreDir {
		opts.MediaDir = cfg.Store.Dir
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(opts).ListenAndServe(ctx, addr)
}
