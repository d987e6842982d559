package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"thermal-annotator/internal/anomaly"
)

func newInspectionCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspection",
		Short: "Manage inspections in the local database",
	}
	cmd.AddCommand(
		newInspectionPutCmd(opts),
		newInspectionListCmd(opts),
		newInspectionImportCmd(opts),
	)
	return cmd
}

func newInspectionPutCmd(opts *options) *cobra.Command {
	var in anomaly.Inspection

	cmd := &cobra.Command{
		Use:   "put <inspection-id>",
		Short: "Create or replace an inspection",
		Example: `  annotator inspection put insp-42 --no INS-0042 --transformer TX-7 \
    --date 2025-03-14 --status "In progress" --image ./thermal/insp-42.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openSQLite()
			if err != nil {
				return err
			}
			defer db.Close()

			in.ID = args[0]
			if err := db.PutInspection(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored inspection %s\n", in.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.InspectionNo, "no", "", "inspection number")
	cmd.Flags().StringVar(&in.TransformerNo, "transformer", "", "transformer number")
	cmd.Flags().StringVar(&in.InspectedDate, "date", "", "date of inspection")
	cmd.Flags().StringVar(&in.Status, "status", "", "inspection status")
	cmd.Flags().StringVar(&in.ImageURL, "image", "", "thermal image path or URL")
	return cmd
}

func newInspectionListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored inspections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openSQLite()
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := db.Inspections(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNUMBER\tTRANSFORMER\tDATE\tSTATUS\tANOMALIES")
			for _, in := range list {
				anomalies, err := db.List(cmd.Context(), in.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", in.ID, in.InspectionNo, in.TransformerNo, in.InspectedDate, in.Status, len(anomalies))
			}
			return tw.Flush()
		},
	}
}

func newInspectionImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <inspection-id> <anomalies.json>",
		Short: "Import detected anomalies for an inspection",
		Long: `Reads a JSON array of anomaly records (or a JSON string holding one) and
stores each record for the inspection. Records keep their ids and origin;
malformed records are skipped and reported.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}
			list, rejected, err := anomaly.DecodeList(json.RawMessage(raw))
			if err != nil {
				return err
			}

			db, err := opts.openSQLite()
			if err != nil {
				return err
			}
			defer db.Close()

			for _, a := range list {
				if _, err := db.Create(cmd.Context(), args[0], a); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d anomalies into %s, skipped %d\n", len(list), args[0], len(rejected))
			return nil
		},
	}
}
