// Package viewport maps between an image's natural pixel space and a fixed
// on-screen frame that can be zoomed and panned.
//
// The mapping is a uniform scale followed by a translation:
//
//	screen = image*Scale + Offset
//	image  = (screen - Offset) / Scale
//
// The initial ("fit") transform inscribes the image in the frame, centred on
// the axis with slack. Zooming never goes below the fit scale, and panning is
// clamped so the image never reveals empty canvas on an axis where it is
// larger than the frame.
package viewport

import (
	"errors"
	"fmt"
	"math"

	"thermal-annotator/pkg/geometry"
)

const (
	// DefaultZoomStep is the per-step zoom multiplier.
	DefaultZoomStep = 1.1
	// DefaultMaxScale caps magnification (image pixels to screen pixels).
	DefaultMaxScale = 5.0

	// fitSnapTolerance absorbs rounding when dividing back down to the fit scale.
	fitSnapTolerance = 1e-9
)

// ErrNoImage is returned by operations that need an image size before one
// has been loaded.
var ErrNoImage = errors.New("viewport: no image loaded")

// Direction selects zoom in or out.
type Direction int

const (
	ZoomIn Direction = iota + 1
	ZoomOut
)

func (d Direction) String() string {
	switch d {
	case ZoomIn:
		return "in"
	case ZoomOut:
		return "out"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Transform is a uniform scale followed by a translation.
type Transform struct {
	Scale  float64          `json:"scale"`
	Offset geometry.Point2D `json:"offset"`
}

// ToScreen converts an image-space point to screen space.
func (t Transform) ToScreen(p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{X: p.X*t.Scale + t.Offset.X, Y: p.Y*t.Scale + t.Offset.Y}
}

// ToImage converts a screen-space point to image space.
func (t Transform) ToImage(p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{X: (p.X - t.Offset.X) / t.Scale, Y: (p.Y - t.Offset.Y) / t.Scale}
}

// BoxToScreen maps both corners of an image-space box to screen space.
func (t Transform) BoxToScreen(b geometry.Box) geometry.Box {
	return geometry.BoxFromPoints(
		t.ToScreen(geometry.Pt(b.X1, b.Y1)),
		t.ToScreen(geometry.Pt(b.X2, b.Y2)),
	)
}

// BoxToImage maps both corners of a screen-space box to image space.
func (t Transform) BoxToImage(b geometry.Box) geometry.Box {
	return geometry.BoxFromPoints(
		t.ToImage(geometry.Pt(b.X1, b.Y1)),
		t.ToImage(geometry.Pt(b.X2, b.Y2)),
	)
}

// Affine returns the image-to-screen mapping as an affine matrix.
func (t Transform) Affine() geometry.AffineTransform {
	return geometry.Translation(t.Offset.X, t.Offset.Y).Compose(geometry.Scale(t.Scale, t.Scale))
}

// Options tunes zoom behaviour.
type Options struct {
	ZoomStep float64
	MaxScale float64
}

// DefaultOptions returns the standard zoom step and cap.
func DefaultOptions() Options {
	return Options{ZoomStep: DefaultZoomStep, MaxScale: DefaultMaxScale}
}

func (o Options) withDefaults() Options {
	if !(o.ZoomStep > 1) {
		o.ZoomStep = DefaultZoomStep
	}
	if !(o.MaxScale > 0) {
		o.MaxScale = DefaultMaxScale
	}
	return o
}

// Fit returns the transform that inscribes img in frame, centred on the
// axis with slack.
func Fit(img, frame geometry.Size) (Transform, error) {
	if img.Empty() {
		return Transform{}, fmt.Errorf("fit: image size %gx%g: %w", img.Width, img.Height, ErrNoImage)
	}
	if frame.Empty() {
		return Transform{}, fmt.Errorf("fit: invalid frame size %gx%g", frame.Width, frame.Height)
	}
	scale := math.Min(frame.Width/img.Width, frame.Height/img.Height)
	return Transform{
		Scale: scale,
		Offset: geometry.Point2D{
			X: (frame.Width - img.Width*scale) / 2,
			Y: (frame.Height - img.Height*scale) / 2,
		},
	}, nil
}

// Clamp enforces the pan invariant on t: an axis where the scaled image is
// no larger than the frame is centred, any other axis is limited to
// [frame - scaled, 0].
func Clamp(t Transform, img, frame geometry.Size) Transform {
	t.Offset.X = clampAxis(t.Offset.X, img.Width*t.Scale, frame.Width)
	t.Offset.Y = clampAxis(t.Offset.Y, img.Height*t.Scale, frame.Height)
	return t
}

func clampAxis(offset, span, frame float64) float64 {
	if span <= frame {
		return (frame - span) / 2
	}
	return math.Min(0, math.Max(offset, frame-span))
}

// Pan translates t by delta and clamps the result.
func Pan(t Transform, img, frame geometry.Size, delta geometry.Point2D) Transform {
	t.Offset = t.Offset.Add(delta)
	return Clamp(t, img, frame)
}

// Zoom scales t by one step about pivot (screen space). The image point
// under pivot stays put unless the pan clamp has to move it. Zooming out to
// or below the fit scale returns the fit transform exactly.
func Zoom(t Transform, img, frame geometry.Size, pivot geometry.Point2D, dir Direction, opts Options) (Transform, error) {
	opts = opts.withDefaults()
	fit, err := Fit(img, frame)
	if err != nil {
		return t, err
	}

	var scale float64
	switch dir {
	case ZoomIn:
		scale = t.Scale * opts.ZoomStep
	case ZoomOut:
		scale = t.Scale / opts.ZoomStep
	default:
		return t, fmt.Errorf("zoom: unknown direction %v", dir)
	}

	if scale <= fit.Scale*(1+fitSnapTolerance) {
		return fit, nil
	}
	if maxScale := math.Max(opts.MaxScale, fit.Scale); scale > maxScale {
		scale = maxScale
	}
	if scale == t.Scale {
		return t, nil
	}

	anchor := t.ToImage(pivot)
	next := Transform{
		Scale:  scale,
		Offset: geometry.Point2D{X: pivot.X - anchor.X*scale, Y: pivot.Y - anchor.Y*scale},
	}
	return Clamp(next, img, frame), nil
}

// Viewport holds the transform state for one image shown in one frame.
// It is not safe for concurrent use; it lives on the UI event thread.
type Viewport struct {
	frame     geometry.Size
	image     geometry.Size
	opts      Options
	transform Transform
	loaded    bool
}

// New creates a viewport for a frame. It has no transform until SetImage.
func New(frame geometry.Size, opts Options) *Viewport {
	return &Viewport{frame: frame, opts: opts.withDefaults()}
}

// SetImage records the natural size of a newly loaded image and resets the
// transform to fit.
func (v *Viewport) SetImage(size geometry.Size) error {
	fit, err := Fit(size, v.frame)
	if err != nil {
		v.loaded = false
		return err
	}
	v.image = size
	v.transform = fit
	v.loaded = true
	return nil
}

// Unload forgets the image; the viewport goes back to having no transform.
func (v *Viewport) Unload() {
	v.image = geometry.Size{}
	v.transform = Transform{}
	v.loaded = false
}

// SetFrame changes the frame size. A loaded image is refit.
func (v *Viewport) SetFrame(frame geometry.Size) error {
	if frame.Empty() {
		return fmt.Errorf("set frame: invalid size %gx%g", frame.Width, frame.Height)
	}
	v.frame = frame
	if !v.loaded {
		return nil
	}
	fit, err := Fit(v.image, frame)
	if err != nil {
		return err
	}
	v.transform = fit
	return nil
}

// Loaded reports whether an image size has been set.
func (v *Viewport) Loaded() bool { return v.loaded }

// Frame returns the frame size.
func (v *Viewport) Frame() geometry.Size { return v.frame }

// ImageSize returns the natural image size.
func (v *Viewport) ImageSize() geometry.Size { return v.image }

// Transform returns the current transform.
func (v *Viewport) Transform() (Transform, error) {
	if !v.loaded {
		return Transform{}, ErrNoImage
	}
	return v.transform, nil
}

// FitTransform returns the fit transform for the current image and frame.
func (v *Viewport) FitTransform() (Transform, error) {
	if !v.loaded {
		return Transform{}, ErrNoImage
	}
	return Fit(v.image, v.frame)
}

// Zoom applies one zoom step about pivot.
func (v *Viewport) Zoom(pivot geometry.Point2D, dir Direction) (Transform, error) {
	if !v.loaded {
		return Transform{}, ErrNoImage
	}
	t, err := Zoom(v.transform, v.image, v.frame, pivot, dir, v.opts)
	if err != nil {
		return v.transform, err
	}
	v.transform = t
	return t, nil
}

// Pan translates the image by delta (screen pixels) with clamping.
func (v *Viewport) Pan(delta geometry.Point2D) (Transform, error) {
	if !v.loaded {
		return Transform{}, ErrNoImage
	}
	v.transform = Pan(v.transform, v.image, v.frame, delta)
	return v.transform, nil
}

// Reset returns to the fit transform.
func (v *Viewport) Reset() (Transform, error) {
	fit, err := v.FitTransform()
	if err != nil {
		return Transform{}, err
	}
	v.transform = fit
	return fit, nil
}

// ZoomFactor returns the current scale relative to fit (1 at fit).
func (v *Viewport) ZoomFactor() float64 {
	fit, err := v.FitTransform()
	if err != nil || fit.Scale == 0 {
		return 0
	}
	return v.transform.Scale / fit.Scale
}

// ImageBounds returns the rendered image rectangle in screen space.
func (v *Viewport) ImageBounds() (geometry.Box, error) {
	if !v.loaded {
		return geometry.Box{}, ErrNoImage
	}
	return v.transform.BoxToScreen(geometry.Box{X2: v.image.Width, Y2: v.image.Height}), nil
}
