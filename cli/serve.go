package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/spf13/cobra"

	"notevault/web"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the notes over a JSON HTTP API",
		Long: `serve keeps the store open and answers the JSON API on the configured
listen address. Changes are saved after save_debounce of quiet and on
shutdown (Ctrl+C or SIGTERM).`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv := web.NewServer(a.store, rweb.ServerOptions{Address: a.cfg.Listen})
			return serveUntilDone(ctx, srv, a.cfg.Listen)
		}),
	}
}

// serveUntilDone runs srv until ctx is done or the server fails. The
// store behind it is closed by the caller either way.
func serveUntilDone(ctx context.Context, srv *rweb.Server, address string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- web.Run(srv, address) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down API", "address", address)
		return nil
	}
}
