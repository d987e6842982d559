// Package canvas provides the annotation canvas: the inspection image with
// its anomaly overlay, driven by an annotation session.
package canvas

import (
	"image"
	"image/draw"
	"log/slog"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"thermal-annotator/internal/annotate"
	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/app"
	"thermal-annotator/internal/render"
	"thermal-annotator/internal/viewport"
	"thermal-annotator/pkg/geometry"
)

// AnnotationCanvas shows the inspection image and lets the operator draw,
// resize, move and select anomaly boxes. Wheel zooms about the pointer,
// secondary-button drag pans, Escape cancels a gesture and Delete removes
// the focused box.
type AnnotationCanvas struct {
	widget.BaseWidget

	state  *app.State
	raster *fynecanvas.Raster

	// primary is true between a primary press and its release.
	primary bool
	panning bool
	last    fyne.Position

	onFocusChange func(slot anomaly.Slot, ok bool)
	onZoomChange  func(factor float64)
}

var (
	_ desktop.Mouseable = (*AnnotationCanvas)(nil)
	_ fyne.Draggable    = (*AnnotationCanvas)(nil)
	_ fyne.Scrollable   = (*AnnotationCanvas)(nil)
	_ fyne.Focusable    = (*AnnotationCanvas)(nil)
)

// NewAnnotationCanvas creates a canvas for the sessions of state.
func NewAnnotationCanvas(state *app.State) *AnnotationCanvas {
	ac := &AnnotationCanvas{state: state}
	ac.raster = fynecanvas.NewRaster(ac.draw)
	ac.raster.ScaleMode = fynecanvas.ImageScalePixels
	ac.ExtendBaseWidget(ac)
	return ac
}

// OnFocusChange sets the callback invoked when edit focus may have changed.
func (ac *AnnotationCanvas) OnFocusChange(fn func(slot anomaly.Slot, ok bool)) {
	ac.onFocusChange = fn
}

// OnZoomChange sets the callback invoked after zooming, panning or reset.
func (ac *AnnotationCanvas) OnZoomChange(fn func(factor float64)) {
	ac.onZoomChange = fn
}

func (ac *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(ac.raster)
}

func (ac *AnnotationCanvas) MinSize() fyne.Size {
	return fyne.NewSize(320, 240)
}

// Resize keeps the session frame equal to the widget size.
func (ac *AnnotationCanvas) Resize(size fyne.Size) {
	ac.BaseWidget.Resize(size)
	if s := ac.state.Session(); s != nil && size.Width > 0 && size.Height > 0 {
		if err := s.Resize(geometry.NewSize(float64(size.Width), float64(size.Height))); err != nil {
			slog.Debug("Canvas resize ignored", "error", err)
		}
		ac.zoomChanged()
	}
}

// SyncFrame pushes the current widget size into a freshly created session.
func (ac *AnnotationCanvas) SyncFrame() {
	ac.Resize(ac.Size())
	ac.Refresh()
}

func toPoint(p fyne.Position) geometry.Point2D {
	return geometry.Pt(float64(p.X), float64(p.Y))
}

func (ac *AnnotationCanvas) session() *annotate.Session {
	s := ac.state.Session()
	if s == nil || !s.Enabled() {
		return nil
	}
	return s
}

func (ac *AnnotationCanvas) MouseDown(ev *desktop.MouseEvent) {
	s := ac.session()
	if s == nil {
		return
	}
	if c := fyne.CurrentApp(); c != nil {
		if win := c.Driver().CanvasForObject(ac); win != nil {
			win.Focus(ac)
		}
	}
	ac.last = ev.Position
	switch ev.Button {
	case desktop.MouseButtonSecondary:
		ac.panning = true
	case desktop.MouseButtonPrimary:
		ac.primary = true
		s.PointerDown(toPoint(ev.Position))
		ac.focusChanged()
		ac.Refresh()
	}
}

func (ac *AnnotationCanvas) Dragged(ev *fyne.DragEvent) {
	s := ac.session()
	if s == nil {
		return
	}
	if ac.panning {
		if err := s.Pan(geometry.Pt(float64(ev.Dragged.DX), float64(ev.Dragged.DY))); err == nil {
			ac.zoomChanged()
			ac.Refresh()
		}
		ac.last = ev.Position
		return
	}
	if !ac.primary {
		return
	}
	ac.last = ev.Position
	s.PointerMove(toPoint(ev.Position))
	ac.Refresh()
}

// DragEnd and MouseUp can both follow a drag; whichever comes first ends
// the gesture at the last known position.
func (ac *AnnotationCanvas) DragEnd() {
	ac.release(ac.last)
}

func (ac *AnnotationCanvas) MouseUp(ev *desktop.MouseEvent) {
	ac.release(ev.Position)
}

func (ac *AnnotationCanvas) release(pos fyne.Position) {
	if ac.panning {
		ac.panning = false
		return
	}
	if !ac.primary {
		return
	}
	ac.primary = false
	if s := ac.session(); s != nil {
		out := s.PointerUp(toPoint(pos))
		if out.Kind != annotate.OutcomeNone {
			slog.Debug("Gesture finished", "outcome", out.Kind, "error", out.Err)
		}
	}
	ac.focusChanged()
	ac.Refresh()
}

func (ac *AnnotationCanvas) Scrolled(ev *fyne.ScrollEvent) {
	s := ac.session()
	if s == nil || ev.Scrolled.DY == 0 {
		return
	}
	dir := viewport.ZoomIn
	if ev.Scrolled.DY < 0 {
		dir = viewport.ZoomOut
	}
	if err := s.Zoom(toPoint(ev.Position), dir); err != nil {
		slog.Debug("Zoom ignored", "error", err)
		return
	}
	ac.zoomChanged()
	ac.Refresh()
}

// Zoom steps about the frame centre, for toolbar buttons.
func (ac *AnnotationCanvas) Zoom(dir viewport.Direction) {
	s := ac.session()
	if s == nil {
		return
	}
	size := ac.Size()
	if err := s.Zoom(geometry.Pt(float64(size.Width)/2, float64(size.Height)/2), dir); err != nil {
		slog.Debug("Zoom ignored", "error", err)
		return
	}
	ac.zoomChanged()
	ac.Refresh()
}

// ResetZoom returns to the fit transform.
func (ac *AnnotationCanvas) ResetZoom() {
	s := ac.session()
	if s == nil {
		return
	}
	if err := s.ResetZoom(); err != nil {
		slog.Debug("Reset ignored", "error", err)
		return
	}
	ac.zoomChanged()
	ac.Refresh()
}

func (ac *AnnotationCanvas) FocusGained() {}
func (ac *AnnotationCanvas) FocusLost()   {}
func (ac *AnnotationCanvas) TypedRune(r rune) {}

func (ac *AnnotationCanvas) TypedKey(ev *fyne.KeyEvent) {
	s := ac.session()
	if s == nil {
		return
	}
	switch ev.Name {
	case fyne.KeyEscape:
		ac.primary = false
		s.Clear()
		s.Unfocus()
	case fyne.KeyDelete, fyne.KeyBackspace:
		if slot, ok := s.Focused(); ok {
			s.Delete(slot)
		}
	default:
		return
	}
	ac.focusChanged()
	ac.Refresh()
}

func (ac *AnnotationCanvas) focusChanged() {
	if ac.onFocusChange == nil {
		return
	}
	if s := ac.state.Session(); s != nil {
		slot, ok := s.Focused()
		ac.onFocusChange(slot, ok)
	}
}

func (ac *AnnotationCanvas) zoomChanged() {
	if ac.onZoomChange == nil {
		return
	}
	if s := ac.state.Session(); s != nil {
		ac.onZoomChange(s.Viewport().ZoomFactor())
	}
}

// draw renders the frame at device resolution.
func (ac *AnnotationCanvas) draw(w, h int) image.Image {
	s := ac.session()
	src := ac.state.Image()
	if s == nil || src == nil || w <= 0 || h <= 0 {
		return blank(w, h)
	}
	t, err := s.Viewport().Transform()
	if err != nil {
		return blank(w, h)
	}
	ov, err := render.FromSession(s)
	if err != nil {
		return blank(w, h)
	}

	k := 1.0
	if size := ac.Size(); size.Width > 0 {
		k = float64(w) / float64(size.Width)
	}
	t.Scale *= k
	t.Offset = geometry.Pt(t.Offset.X*k, t.Offset.Y*k)

	img, err := render.Rasterize(src.Image, t, w, h, ov.Scaled(k))
	if err != nil {
		slog.Error("Failed to render canvas", "error", err)
		return blank(w, h)
	}
	return img
}

func blank(w, h int) image.Image {
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(render.Background), image.Point{}, draw.Src)
	return img
}
