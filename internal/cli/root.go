// Package cli implements the annotator command line: the API server,
// report and image export, inspection seeding and database migrations.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"thermal-annotator/internal/app"
	"thermal-annotator/internal/config"
	"thermal-annotator/internal/store"
	"thermal-annotator/internal/store/sqlite"
)

type options struct {
	configPath string
	envFile    string
	debug      bool

	cfg config.Config
}

// NewRootCmd builds the annotator command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "annotator",
		Short: "Thermal anomaly annotation backend and tools",
		Long: `Annotator serves and maintains thermal inspection anomalies.

It runs the anomaly REST API over a SQLite database, seeds inspections and
AI detections, and exports text reports, charts and annotated images.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

			if err := config.LoadEnv(opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("ANNOTATOR_CONFIG"), "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env", ".env", ".env file to load")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newReportCmd(opts),
		newRenderCmd(opts),
		newInspectionCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

// openStore opens the configured backend.
func (o *options) openStore() (store.Store, io.Closer, error) {
	return app.OpenStore(o.cfg)
}

// openSQLite opens the database for commands that only make sense locally.
func (o *options) openSQLite() (*sqlite.Store, error) {
	if o.cfg.Store.Backend != config.BackendSQLite {
		return nil, fmt.Errorf("this command needs the %s backend, configured backend is %s", config.BackendSQLite, o.cfg.Store.Backend)
	}
	return sqlite.Open(o.cfg.Store.DatabasePath)
}
