package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/report"
	"thermal-annotator/internal/store"
)

type inspectionData struct {
	info anomaly.Inspection
	list []anomaly.Anomaly
	log  []anomaly.LogEntry
}

// fetchInspection reads everything the exports need. The details and the
// log are optional capabilities of the store.
func fetchInspection(ctx context.Context, st store.Store, id string) (inspectionData, error) {
	data := inspectionData{info: anomaly.Inspection{ID: id}}
	if is, ok := st.(store.InspectionStore); ok {
		info, err := is.Inspection(ctx, id)
		if err != nil {
			return data, store.Wrap(store.OpList, id, "", err)
		}
		data.info = info
	}
	list, err := st.List(ctx, id)
	if err != nil {
		return data, store.Wrap(store.OpList, id, "", err)
	}
	data.list = list
	if ls, ok := st.(store.LogStore); ok {
		if data.log, err = ls.Log(ctx, id); err != nil {
			return data, store.Wrap(store.OpLog, id, "", err)
		}
	}
	return data, nil
}

func newReportCmd(opts *options) *cobra.Command {
	var (
		out   string
		chart string
	)

	cmd := &cobra.Command{
		Use:   "report <inspection-id>",
		Short: "Write the anomaly report of an inspection",
		Example: `  # Print the report
  annotator report insp-42

  # Write the report under its default name and a class chart
  annotator report insp-42 --out . --chart chart.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closer.Close()

			data, err := fetchInspection(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			now := time.Now()

			if err := writeTo(cmd.OutOrStdout(), reportPath(out, data.info, now), func(w io.Writer) error {
				return report.WriteText(w, data.info, data.list, data.log, now)
			}); err != nil {
				return err
			}
			if chart != "" {
				if err := writeTo(cmd.OutOrStdout(), chart, func(w io.Writer) error {
					return report.WriteChart(w, data.info, data.list)
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, or directory for the default file name (default stdout)")
	cmd.Flags().StringVar(&chart, "chart", "", "also write an HTML class chart to this file")
	return cmd
}

// reportPath resolves --out: empty means stdout, a directory gets the
// default report file name.
func reportPath(out string, info anomaly.Inspection, now time.Time) string {
	if out == "" {
		return ""
	}
	if fi, err := os.Stat(out); err == nil && fi.IsDir() {
		return filepath.Join(out, report.FileName(info, now))
	}
	return out
}

// writeTo runs fn against path, or against stdout when path is empty.
func writeTo(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("Wrote file", "path", path)
	return nil
}
