// Package render turns an anomaly collection and a viewport into drawable
// screen-space shapes, and rasterises those shapes over the image.
package render

import (
	"image/color"
	"log/slog"

	"thermal-annotator/internal/annotate"
	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/viewport"
	"thermal-annotator/pkg/colorutil"
	"thermal-annotator/pkg/geometry"
)

// Stroke and opacity for normal and highlighted anomalies.
const (
	StrokeWidth          = 3.0
	HighlightStrokeWidth = 5.0
	Opacity              = 0.7
	HighlightOpacity     = 1.0

	DraftStrokeWidth = 2.0
	HandleSize       = 8.0
)

// DraftDash is the dash pattern for the in-progress box.
var DraftDash = []float64{6, 4}

// ShapeKind identifies what a shape represents.
type ShapeKind int

const (
	ShapeAnomaly ShapeKind = iota
	ShapeDraft
	ShapeHandle
)

// Style is how a shape is stroked.
type Style struct {
	Color       color.RGBA
	StrokeWidth float64
	Opacity     float64
	Dashed      bool
	Filled      bool
}

// StyleFor returns the style of the anomaly at visible position index.
// Highlighting changes only stroke width and opacity.
func StyleFor(index int, highlighted bool) Style {
	s := Style{Color: colorutil.PaletteColor(index), StrokeWidth: StrokeWidth, Opacity: Opacity}
	if highlighted {
		s.StrokeWidth = HighlightStrokeWidth
		s.Opacity = HighlightOpacity
	}
	return s
}

// Shape is one rectangle to draw, in screen space (normalized corners).
type Shape struct {
	Kind        ShapeKind
	Slot        anomaly.Slot
	ID          string
	Box         geometry.Box
	Label       string
	Style       Style
	Highlighted bool
	Focused     bool
}

// Overlay is everything drawn over the image for one frame.
type Overlay struct {
	Shapes []Shape
	// Empty is true when no anomaly is visible ("No anomalies").
	Empty bool
}

// Anomalies returns only the anomaly shapes.
func (o Overlay) Anomalies() []Shape {
	var out []Shape
	for _, s := range o.Shapes {
		if s.Kind == ShapeAnomaly {
			out = append(out, s)
		}
	}
	return out
}

// Input is what Build needs. Items should come from Collection.Visible.
type Input struct {
	Items     []anomaly.Item
	Highlight string
	Transform viewport.Transform
	// Focus is the slot in edit focus, or anomaly.NoSlot.
	Focus anomaly.Slot
	// Draft is the in-progress box in screen space, if any.
	Draft    *geometry.Box
	DraftFor annotate.Mode
}

// Build computes the overlay. Anomalies with malformed boxes are skipped.
// While the focused anomaly is being resized or moved it is drawn from the
// draft instead of its stored box.
func Build(in Input) Overlay {
	ov := Overlay{Empty: true}
	editing := in.Draft != nil && (in.DraftFor == annotate.ResizingCorner || in.DraftFor == annotate.Moving)

	var handles geometry.Box
	haveHandles := false

	for _, it := range in.Items {
		a := it.Anomaly
		if a.Normal() {
			continue
		}
		if !a.Box.Valid() {
			slog.Debug("Skipping anomaly with malformed box", "id", a.ID, "box", a.Box)
			continue
		}
		ov.Empty = false

		focused := in.Focus != anomaly.NoSlot && it.Slot == in.Focus
		box := in.Transform.BoxToScreen(a.Box.Corners()).Normalize()
		if focused && editing {
			box = in.Draft.Normalize()
		}
		if !box.Valid() {
			continue
		}
		highlighted := a.ID != "" && a.ID == in.Highlight
		ov.Shapes = append(ov.Shapes, Shape{
			Kind:        ShapeAnomaly,
			Slot:        it.Slot,
			ID:          a.ID,
			Box:         box,
			Label:       a.Label(),
			Style:       StyleFor(it.Index, highlighted),
			Highlighted: highlighted,
			Focused:     focused,
		})
		if focused {
			handles, haveHandles = box, true
		}
	}

	if in.Draft != nil && in.DraftFor == annotate.Drawing {
		ov.Shapes = append(ov.Shapes, Shape{
			Kind:  ShapeDraft,
			Slot:  anomaly.NoSlot,
			Box:   in.Draft.Normalize(),
			Style: Style{Color: colorutil.Cyan, StrokeWidth: DraftStrokeWidth, Opacity: 1, Dashed: true},
		})
	}

	if haveHandles {
		for _, c := range handles.Corners() {
			h := HandleSize / 2
			ov.Shapes = append(ov.Shapes, Shape{
				Kind:  ShapeHandle,
				Slot:  in.Focus,
				Box:   geometry.Box{X1: c.X - h, Y1: c.Y - h, X2: c.X + h, Y2: c.Y + h},
				Style: Style{Color: colorutil.White, StrokeWidth: 1, Opacity: 1, Filled: true},
			})
		}
	}
	return ov
}

// FromSession builds the overlay for a session's current frame.
func FromSession(s *annotate.Session) (Overlay, error) {
	t, err := s.Viewport().Transform()
	if err != nil {
		return Overlay{}, err
	}
	coll := s.Collection()
	in := Input{
		Items:     coll.Visible(),
		Highlight: coll.Highlighted(),
		Transform: t,
		Focus:     anomaly.NoSlot,
	}
	if slot, ok := s.Focused(); ok {
		in.Focus = slot
	}
	if d, ok := s.Draft(); ok {
		in.Draft = &d
		in.DraftFor = s.State().Mode
	}
	return Build(in), nil
}

// Scaled returns the overlay with every shape and stroke multiplied by k,
// for drawing on a surface with k device pixels per screen unit.
func (o Overlay) Scaled(k float64) Overlay {
	if k == 1 {
		return o
	}
	out := Overlay{Empty: o.Empty, Shapes: make([]Shape, len(o.Shapes))}
	for i, s := range o.Shapes {
		s.Box = geometry.Box{X1: s.Box.X1 * k, Y1: s.Box.Y1 * k, X2: s.Box.X2 * k, Y2: s.Box.Y2 * k}
		s.Style.StrokeWidth *= k
		out.Shapes[i] = s
	}
	return out
}
