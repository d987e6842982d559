package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/viewport"
	"thermal-annotator/pkg/colorutil"
	"thermal-annotator/pkg/geometry"
)

// Background is the canvas colour outside the image.
var Background = color.RGBA{R: 32, G: 32, B: 32, A: 255}

const labelPad = 3

// Rasterize composes one frame of size w×h: the image drawn through t, then
// the overlay shapes and their labels. src may be nil, in which case only
// the background and shapes are drawn.
func Rasterize(src image.Image, t viewport.Transform, w, h int, ov Overlay) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("rasterize: invalid frame %dx%d", w, h)
	}
	base := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(base, base.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)

	if src != nil {
		sb := src.Bounds()
		m := t.Affine().Compose(geometry.Translation(-float64(sb.Min.X), -float64(sb.Min.Y)))
		aff := f64.Aff3{m.A, m.B, m.TX, m.C, m.D, m.TY}
		xdraw.ApproxBiLinear.Transform(base, aff, src, sb, xdraw.Over, nil)
	}

	if len(ov.Shapes) == 0 {
		return base, nil
	}

	dc := gg.NewContextForImage(base)
	defer dc.Close()
	for _, s := range ov.Shapes {
		if err := strokeShape(dc, s); err != nil {
			return nil, fmt.Errorf("rasterize: %w", err)
		}
	}

	out := dc.Image()
	dst, ok := out.(*image.RGBA)
	if !ok {
		dst = image.NewRGBA(out.Bounds())
		draw.Draw(dst, dst.Bounds(), out, out.Bounds().Min, draw.Src)
	}
	for _, s := range ov.Shapes {
		if s.Kind == ShapeAnomaly && s.Label != "" {
			drawLabel(dst, s)
		}
	}
	return dst, nil
}

func strokeShape(dc *gg.Context, s Shape) error {
	b := s.Box.Normalize()
	c := s.Style.Color
	dc.SetRGBA(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, s.Style.Opacity)
	dc.SetLineWidth(s.Style.StrokeWidth)
	if s.Style.Dashed {
		dc.SetDash(DraftDash...)
	} else {
		dc.ClearDash()
	}
	dc.DrawRectangle(b.X1, b.Y1, b.Width(), b.Height())
	if s.Style.Filled {
		if err := dc.FillPreserve(); err != nil {
			return err
		}
		dc.SetRGBA(0, 0, 0, 1)
	}
	return dc.Stroke()
}

// drawLabel puts the caption just above the box's top-left corner, on a
// solid tab in the shape's colour. Labels that would leave the frame are
// pushed inside the box.
func drawLabel(dst *image.RGBA, s Shape) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, s.Label).Ceil()
	height := face.Metrics().Height.Ceil()

	x := int(s.Box.X1)
	y := int(s.Box.Y1) - height - 2*labelPad
	if y < dst.Bounds().Min.Y {
		y = int(s.Box.Y1)
	}
	tab := image.Rect(x, y, x+width+2*labelPad, y+height+2*labelPad).Intersect(dst.Bounds())
	if tab.Empty() {
		return
	}
	bg := colorutil.WithOpacity(s.Style.Color, s.Style.Opacity)
	draw.Draw(dst, tab, image.NewUniform(bg), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(colorutil.White),
		Face: face,
		Dot:  fixed.P(x+labelPad, y+labelPad+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s.Label)
}

// ExportAnnotated renders the visible anomalies over src at natural
// resolution, for saving an annotated copy of the image.
func ExportAnnotated(src image.Image, list []anomaly.Anomaly) (*image.RGBA, error) {
	b := src.Bounds()
	coll := anomaly.NewCollection(list)
	ov := Build(Input{
		Items:     coll.Visible(),
		Transform: viewport.Transform{Scale: 1},
		Focus:     anomaly.NoSlot,
	})
	return Rasterize(src, viewport.Transform{Scale: 1}, b.Dx(), b.Dy(), ov)
}
