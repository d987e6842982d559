package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"thermal-annotator/internal/api"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the anomaly REST API",
		Long: `Serves inspections, anomalies and the activity log from the SQLite
database. The desktop application can use it through the rest backend.`,
		Example: `  # Serve on the configured address
  annotator serve

  # Serve on a custom address
  annotator serve --addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openSQLite()
			if err != nil {
				return err
			}
			defer db.Close()

			if addr == "" {
				addr = opts.cfg.Server.Addr
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           api.NewServer(db).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Annotator API available", "addr", addr, "database", opts.cfg.Store.DatabasePath)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "address to listen on (default from config)")
	return cmd
}
