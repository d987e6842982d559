package cli

import (
	"errors"
	"fmt"
	goimage "image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"thermal-annotator/internal/image"
	"thermal-annotator/internal/render"
)

func newRenderCmd(opts *options) *cobra.Command {
	var (
		out     string
		ref     string
		maxSize int
	)

	cmd := &cobra.Command{
		Use:   "render <inspection-id>",
		Short: "Export the inspection image with its anomalies drawn on it",
		Example: `  # Render with the stored image reference
  annotator render insp-42 -o annotated.png

  # Render against a local copy, scaled to fit 800 pixels
  annotator render insp-42 --image ./thermal.jpg --max-size 800 -o small.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("--out is required")
			}
			st, closer, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closer.Close()

			data, err := fetchInspection(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			if ref == "" {
				ref = data.info.ImageURL
			}
			if ref == "" {
				return fmt.Errorf("inspection %s has no image, pass --image", args[0])
			}

			src, err := image.Load(cmd.Context(), ref)
			if err != nil {
				return err
			}
			img, err := render.ExportAnnotated(src.Image, data.list)
			if err != nil {
				return err
			}
			var result goimage.Image = img
			if maxSize > 0 && (src.Width > maxSize || src.Height > maxSize) {
				result = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
			}
			return writeTo(cmd.OutOrStdout(), out, func(w io.Writer) error {
				return png.Encode(w, result)
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "PNG file to write")
	cmd.Flags().StringVar(&ref, "image", "", "image path or URL (default: the inspection's image)")
	cmd.Flags().IntVar(&maxSize, "max-size", 0, "scale the result to fit this many pixels")
	return cmd
}
