// Package annotate implements the draw / resize-by-corner / move-by-body
// gesture engine over a zoomable image.
//
// The gesture logic is a pure transition function, Step, over screen-space
// pointer events. A Session wraps it with the state one loaded image needs:
// the viewport, the current machine state, the edit focus and the sink that
// persists committed boxes.
package annotate

import (
	"fmt"
	"math"

	"thermal-annotator/internal/viewport"
	"thermal-annotator/pkg/geometry"
)

// DefaultHandleRadius is the corner hit tolerance in screen pixels.
const DefaultHandleRadius = 10.0

// Mode identifies the active gesture.
type Mode int

const (
	Idle Mode = iota
	Drawing
	ResizingCorner
	Moving
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case ResizingCorner:
		return "resizing"
	case Moving:
		return "moving"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// State is the machine state. Draft is the in-progress box in screen space;
// it is meaningful whenever Mode is not Idle. Anchor is set while Drawing,
// Corner while ResizingCorner, Last while Moving.
type State struct {
	Mode   Mode
	Anchor geometry.Point2D
	Corner int
	Last   geometry.Point2D
	Draft  geometry.Box
}

// Active reports whether a gesture is in progress.
func (s State) Active() bool { return s.Mode != Idle }

// EventKind identifies a pointer or control event.
type EventKind int

const (
	PointerDown EventKind = iota + 1
	PointerMove
	PointerUp
	Clear
)

// Event is one input to Step. Pos is in screen space and unused by Clear.
type Event struct {
	Kind EventKind
	Pos  geometry.Point2D
}

// Down, Move, Up and ClearEvent build events.
func Down(p geometry.Point2D) Event { return Event{Kind: PointerDown, Pos: p} }
func Move(p geometry.Point2D) Event { return Event{Kind: PointerMove, Pos: p} }
func Up(p geometry.Point2D) Event { return Event{Kind: PointerUp, Pos: p} }
func ClearEvent() Event { return Event{Kind: Clear} }

// Env is everything Step reads besides the state and event.
type Env struct {
	Transform viewport.Transform
	// Bounds is the rendered image rectangle in screen space. Pointer
	// positions are clamped to it.
	Bounds       geometry.Box
	HandleRadius float64
	// MinExtent is the smallest committed width/height in image pixels.
	MinExtent float64
	// Focused reports whether an anomaly is in edit focus; FocusBox is its
	// canonical box in image space.
	Focused  bool
	FocusBox geometry.CenterBox
}

func (e Env) radius() float64 {
	if e.HandleRadius > 0 {
		return e.HandleRadius
	}
	return DefaultHandleRadius
}

// OutcomeKind is what a transition asks the caller to do.
type OutcomeKind int

const (
	// OutcomeNone: nothing to persist. Err may carry ErrDegenerateBox,
	// which callers treat as a silent no-op.
	OutcomeNone OutcomeKind = iota
	// OutcomeCreate: a new user box, Box in image space.
	OutcomeCreate
	// OutcomeUpdate: replace the focused anomaly's box with Box.
	OutcomeUpdate
	// OutcomeDiscard: the gesture was abandoned and the focus dropped.
	OutcomeDiscard
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNone:
		return "none"
	case OutcomeCreate:
		return "create"
	case OutcomeUpdate:
		return "update"
	case OutcomeDiscard:
		return "discard"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the side effect requested by a transition.
type Outcome struct {
	Kind OutcomeKind
	Box  geometry.CenterBox
	Err  error
}

// FocusScreenBox returns the focused box in screen space, normalized.
func (e Env) FocusScreenBox() geometry.Box {
	return e.Transform.BoxToScreen(e.FocusBox.Corners()).Normalize()
}

// HitCorner returns the index of the first corner of b (in order top-left,
// top-right, bottom-right, bottom-left) within radius of p on both axes.
func HitCorner(b geometry.Box, p geometry.Point2D, radius float64) (int, bool) {
	for i, c := range b.Corners() {
		if math.Abs(p.X-c.X) < radius && math.Abs(p.Y-c.Y) < radius {
			return i, true
		}
	}
	return -1, false
}

// Step is the transition function. It never mutates its inputs.
func Step(s State, ev Event, env Env) (State, Outcome) {
	switch ev.Kind {
	case Clear:
		return State{}, Outcome{Kind: OutcomeDiscard}
	case PointerDown:
		return pointerDown(s, ev.Pos, env)
	case PointerMove:
		return pointerMove(s, ev.Pos, env), Outcome{}
	case PointerUp:
		if !s.Active() {
			return s, Outcome{}
		}
		return commit(pointerMove(s, ev.Pos, env), env)
	}
	return s, Outcome{}
}

func pointerDown(s State, p geometry.Point2D, env Env) (State, Outcome) {
	if s.Active() {
		return s, Outcome{}
	}
	at := env.Bounds.ClampPoint(p)

	if !env.Focused {
		return State{Mode: Drawing, Anchor: at, Draft: geometry.BoxFromPoints(at, at)}, Outcome{}
	}

	sb := env.FocusScreenBox()
	if i, ok := HitCorner(sb, p, env.radius()); ok {
		return State{Mode: ResizingCorner, Corner: i, Draft: sb}, Outcome{}
	}
	if sb.Contains(p) {
		return State{Mode: Moving, Last: at, Draft: sb}, Outcome{}
	}
	return s, Outcome{}
}

func pointerMove(s State, p geometry.Point2D, env Env) State {
	at := env.Bounds.ClampPoint(p)
	switch s.Mode {
	case Drawing:
		s.Draft = geometry.BoxFromPoints(s.Anchor, at)
	case ResizingCorner:
		s.Draft = s.Draft.SetCorner(s.Corner, at)
	case Moving:
		s.Draft = s.Draft.Translate(at.Sub(s.Last)).ClampInside(env.Bounds)
		s.Last = at
	}
	return s
}

func commit(s State, env Env) (State, Outcome) {
	screen := s.Draft.Normalize()
	img := env.Transform.BoxToImage(screen).Normalize()
	if img.IsDegenerate(env.MinExtent) {
		return State{}, Outcome{Kind: OutcomeNone, Err: geometry.ErrDegenerateBox}
	}
	kind := OutcomeUpdate
	if s.Mode == Drawing {
		kind = OutcomeCreate
	}
	return State{}, Outcome{Kind: kind, Box: img.Center()}
}
