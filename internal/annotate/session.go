package annotate

import (
	"errors"
	"log/slog"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/viewport"
	"thermal-annotator/pkg/geometry"
)

// ErrGestureActive is returned by zoom and pan while a gesture is in
// progress: the draft lives in screen space and would drift off the image.
var ErrGestureActive = errors.New("annotate: gesture in progress")

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("annotate: session closed")

// CommitSink receives committed edits after the collection has been updated
// locally. Implementations must not block.
type CommitSink interface {
	CommitCreate(slot anomaly.Slot, a anomaly.Anomaly)
	CommitUpdate(slot anomaly.Slot, a anomaly.Anomaly)
	CommitDelete(slot anomaly.Slot, a anomaly.Anomaly)
}

// Options configures a Session.
type Options struct {
	Viewport     viewport.Options
	HandleRadius float64
	MinExtent    float64
	DefaultClass string
}

// DefaultOptions returns the standard interaction settings.
func DefaultOptions() Options {
	return Options{
		Viewport:     viewport.DefaultOptions(),
		HandleRadius: DefaultHandleRadius,
		MinExtent:    geometry.DefaultMinExtent,
		DefaultClass: anomaly.DefaultClass(),
	}
}

// Session is the annotation engine for one loaded image. It must be driven
// from a single goroutine (the UI event thread); only the collection and the
// sink may be touched from elsewhere.
type Session struct {
	vp    *viewport.Viewport
	coll  *anomaly.Collection
	sink  CommitSink
	opts  Options
	state State
	focus anomaly.Slot

	closed bool
}

// NewSession creates a disabled session for a frame. It becomes enabled once
// SetImage succeeds. sink may be nil, in which case commits stay local.
func NewSession(frame geometry.Size, coll *anomaly.Collection, sink CommitSink, opts Options) *Session {
	if opts.HandleRadius <= 0 {
		opts.HandleRadius = DefaultHandleRadius
	}
	if opts.MinExtent <= 0 {
		opts.MinExtent = geometry.DefaultMinExtent
	}
	if opts.DefaultClass == "" {
		opts.DefaultClass = anomaly.DefaultClass()
	}
	return &Session{
		vp:    viewport.New(frame, opts.Viewport),
		coll:  coll,
		sink:  sink,
		opts:  opts,
		focus: anomaly.NoSlot,
	}
}

// SetImage enables the session for an image of the given natural size and
// resets the viewport to fit.
func (s *Session) SetImage(size geometry.Size) error {
	if s.closed {
		return ErrClosed
	}
	s.state = State{}
	return s.vp.SetImage(size)
}

// Enabled reports whether an image is loaded and the session is open.
func (s *Session) Enabled() bool { return !s.closed && s.vp.Loaded() }

// Viewport exposes the session's viewport for rendering.
func (s *Session) Viewport() *viewport.Viewport { return s.vp }

// Collection returns the anomaly collection being edited.
func (s *Session) Collection() *anomaly.Collection { return s.coll }

// State returns the current machine state.
func (s *Session) State() State { return s.state }

// Draft returns the in-progress box in screen space, if a gesture is active.
func (s *Session) Draft() (geometry.Box, bool) {
	if !s.state.Active() {
		return geometry.Box{}, false
	}
	return s.state.Draft, true
}

// DefaultClass returns the class given to newly drawn boxes.
func (s *Session) DefaultClass() string { return s.opts.DefaultClass }

// SetDefaultClass changes the class given to newly drawn boxes.
func (s *Session) SetDefaultClass(class string) {
	if class != "" {
		s.opts.DefaultClass = class
	}
}

// Resize changes the frame size and refits the image. An active gesture is
// abandoned.
func (s *Session) Resize(frame geometry.Size) error {
	if s.closed {
		return ErrClosed
	}
	s.state = State{}
	return s.vp.SetFrame(frame)
}

// env builds the Step environment. A focus slot that no longer exists (the
// anomaly was deleted or a refetch dropped it) is released here.
func (s *Session) env() (Env, bool) {
	t, err := s.vp.Transform()
	if err != nil {
		return Env{}, false
	}
	bounds, err := s.vp.ImageBounds()
	if err != nil {
		return Env{}, false
	}
	env := Env{
		Transform:    t,
		Bounds:       bounds,
		HandleRadius: s.opts.HandleRadius,
		MinExtent:    s.opts.MinExtent,
	}
	if s.focus != anomaly.NoSlot {
		if a, ok := s.coll.Get(s.focus); ok {
			env.Focused = true
			env.FocusBox = a.Box
		} else {
			s.focus = anomaly.NoSlot
		}
	}
	return env, true
}

func (s *Session) step(ev Event) Outcome {
	if !s.Enabled() {
		return Outcome{}
	}
	env, ok := s.env()
	if !ok {
		return Outcome{}
	}
	next, out := Step(s.state, ev, env)
	s.state = next
	s.apply(out)
	return out
}

// PointerDown feeds a pointer press at a screen position.
func (s *Session) PointerDown(p geometry.Point2D) Outcome { return s.step(Down(p)) }

// PointerMove feeds a pointer drag at a screen position.
func (s *Session) PointerMove(p geometry.Point2D) Outcome { return s.step(Move(p)) }

// PointerUp feeds a pointer release and commits the gesture.
func (s *Session) PointerUp(p geometry.Point2D) Outcome { return s.step(Up(p)) }

// Clear abandons any gesture and drops the edit focus.
func (s *Session) Clear() {
	s.state = State{}
	s.focus = anomaly.NoSlot
}

func (s *Session) apply(out Outcome) {
	switch out.Kind {
	case OutcomeCreate:
		a := anomaly.NewUser(out.Box, s.opts.DefaultClass)
		slot := s.coll.Add(a)
		slog.Debug("Anomaly drawn", "slot", slot, "class", a.Class, "box", out.Box)
		if s.sink != nil {
			s.sink.CommitCreate(slot, a)
		}
	case OutcomeUpdate:
		cur, ok := s.coll.Get(s.focus)
		if !ok {
			return
		}
		a, ok := s.coll.Update(s.focus, cur.WithBox(out.Box))
		if !ok {
			return
		}
		slog.Debug("Anomaly edited", "slot", s.focus, "id", a.ID, "box", out.Box)
		if s.sink != nil {
			s.sink.CommitUpdate(s.focus, a)
		}
	case OutcomeDiscard:
		s.focus = anomaly.NoSlot
	case OutcomeNone:
		if errors.Is(out.Err, geometry.ErrDegenerateBox) {
			slog.Debug("Degenerate box discarded")
		}
	}
}

// Focus puts the anomaly in slot into edit focus. It fails if the slot is
// unknown or a gesture is in progress.
func (s *Session) Focus(slot anomaly.Slot) bool {
	if s.closed || s.state.Active() {
		return false
	}
	if _, ok := s.coll.Get(slot); !ok {
		return false
	}
	s.focus = slot
	return true
}

// Unfocus drops the edit focus.
func (s *Session) Unfocus() {
	if !s.state.Active() {
		s.focus = anomaly.NoSlot
	}
}

// Focused returns the slot in edit focus.
func (s *Session) Focused() (anomaly.Slot, bool) {
	if s.focus == anomaly.NoSlot {
		return anomaly.NoSlot, false
	}
	if _, ok := s.coll.Get(s.focus); !ok {
		return anomaly.NoSlot, false
	}
	return s.focus, true
}

// SetClass changes the class of an anomaly and commits it as an update.
func (s *Session) SetClass(slot anomaly.Slot, class string) bool {
	if s.closed || class == "" {
		return false
	}
	a, ok := s.coll.SetClass(slot, class)
	if !ok {
		return false
	}
	if s.sink != nil {
		s.sink.CommitUpdate(slot, a)
	}
	return true
}

// Delete removes an anomaly locally and commits the delete. Deleting the
// focused anomaly drops the focus.
func (s *Session) Delete(slot anomaly.Slot) bool {
	if s.closed || (s.state.Active() && slot == s.focus) {
		return false
	}
	a, ok := s.coll.Remove(slot)
	if !ok {
		return false
	}
	if slot == s.focus {
		s.focus = anomaly.NoSlot
	}
	if s.sink != nil {
		s.sink.CommitDelete(slot, a)
	}
	return true
}

// Zoom applies one zoom step about a screen-space pivot.
func (s *Session) Zoom(pivot geometry.Point2D, dir viewport.Direction) error {
	if err := s.viewChangeAllowed(); err != nil {
		return err
	}
	_, err := s.vp.Zoom(pivot, dir)
	return err
}

// Pan moves the image by a screen-space delta.
func (s *Session) Pan(delta geometry.Point2D) error {
	if err := s.viewChangeAllowed(); err != nil {
		return err
	}
	_, err := s.vp.Pan(delta)
	return err
}

// ResetZoom returns to the fit transform.
func (s *Session) ResetZoom() error {
	if err := s.viewChangeAllowed(); err != nil {
		return err
	}
	_, err := s.vp.Reset()
	return err
}

func (s *Session) viewChangeAllowed() error {
	if s.closed {
		return ErrClosed
	}
	if !s.vp.Loaded() {
		return viewport.ErrNoImage
	}
	if s.state.Active() {
		return ErrGestureActive
	}
	return nil
}

// Close discards the viewport, any in-progress gesture and the focus. Nothing
// is persisted.
func (s *Session) Close() {
	s.state = State{}
	s.focus = anomaly.NoSlot
	s.vp.Unload()
	s.closed = true
}
