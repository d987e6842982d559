package annotate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-annotator/internal/viewport"
	"thermal-annotator/pkg/geometry"
)

var pt = geometry.Pt

func identityEnv() Env {
	return Env{
		Transform:    viewport.Transform{Scale: 1},
		Bounds:       geometry.Box{X2: 400, Y2: 300},
		HandleRadius: DefaultHandleRadius,
	}
}

func focusedEnv(b geometry.Box) Env {
	env := identityEnv()
	env.Focused = true
	env.FocusBox = b.Center()
	return env
}

func run(t *testing.T, env Env, events ...Event) (State, Outcome) {
	t.Helper()
	var s State
	var out Outcome
	for _, ev := range events {
		s, out = Step(s, ev, env)
	}
	return s, out
}

func TestDrawThenCommit(t *testing.T) {
	t.Parallel()

	s, out := run(t, identityEnv(), Down(pt(50, 50)), Move(pt(150, 120)), Up(pt(150, 120)))
	assert.Equal(t, Idle, s.Mode)
	require.Equal(t, OutcomeCreate, out.Kind)
	assert.Equal(t, geometry.CenterBox{XCenter: 100, YCenter: 85, Width: 100, Height: 70}, out.Box)
}

func TestDrawReversedIsNormalized(t *testing.T) {
	t.Parallel()

	_, out := run(t, identityEnv(), Down(pt(150, 120)), Move(pt(50, 50)), Up(pt(50, 50)))
	require.Equal(t, OutcomeCreate, out.Kind)
	assert.Equal(t, geometry.CenterBox{XCenter: 100, YCenter: 85, Width: 100, Height: 70}, out.Box)
}

func TestDrawingKeepsRawPair(t *testing.T) {
	t.Parallel()

	s, _ := run(t, identityEnv(), Down(pt(150, 120)), Move(pt(50, 50)))
	assert.Equal(t, Drawing, s.Mode)
	assert.Equal(t, geometry.Box{X1: 150, Y1: 120, X2: 50, Y2: 50}, s.Draft)
}

func TestDegenerateDrawIsDiscarded(t *testing.T) {
	t.Parallel()

	s, out := run(t, identityEnv(), Down(pt(50, 50)), Move(pt(50, 120)), Up(pt(50, 120)))
	assert.Equal(t, Idle, s.Mode)
	assert.Equal(t, OutcomeNone, out.Kind)
	assert.ErrorIs(t, out.Err, geometry.ErrDegenerateBox)

	_, out = run(t, identityEnv(), Down(pt(10, 10)), Up(pt(10, 10)))
	assert.Equal(t, OutcomeNone, out.Kind)
}

func TestDrawClampsToImageBounds(t *testing.T) {
	t.Parallel()

	s, _ := run(t, identityEnv(), Down(pt(-20, 10)), Move(pt(500, 400)))
	assert.Equal(t, pt(0, 10), s.Anchor)
	assert.Equal(t, geometry.Box{X1: 0, Y1: 10, X2: 400, Y2: 300}, s.Draft)
}

func TestDrawWithZoomedTransform(t *testing.T) {
	t.Parallel()

	env := Env{
		Transform: viewport.Transform{Scale: 0.5, Offset: pt(0, 100)},
		Bounds:    geometry.Box{X1: 0, Y1: 100, X2: 400, Y2: 300},
	}
	_, out := run(t, env, Down(pt(100, 150)), Move(pt(200, 250)), Up(pt(200, 250)))
	require.Equal(t, OutcomeCreate, out.Kind)
	assert.Equal(t, geometry.CenterBox{XCenter: 300, YCenter: 200, Width: 200, Height: 200}, out.Box)
}

func TestResizeCorner(t *testing.T) {
	t.Parallel()

	env := focusedEnv(geometry.Box{X1: 50, Y1: 50, X2: 150, Y2: 150})

	s, _ := Step(State{}, Down(pt(148, 52)), env)
	require.Equal(t, ResizingCorner, s.Mode)
	assert.Equal(t, 1, s.Corner)

	s, _ = Step(s, Move(pt(200, 20)), env)
	assert.Equal(t, geometry.Box{X1: 50, Y1: 20, X2: 200, Y2: 150}, s.Draft)

	s, out := Step(s, Up(pt(200, 20)), env)
	assert.Equal(t, Idle, s.Mode)
	require.Equal(t, OutcomeUpdate, out.Kind)
	assert.Equal(t, geometry.CenterBox{XCenter: 125, YCenter: 85, Width: 150, Height: 130}, out.Box)
}

func TestResizeTouchesOnlyOwnedBounds(t *testing.T) {
	t.Parallel()

	base := geometry.Box{X1: 100, Y1: 100, X2: 200, Y2: 200}
	env := focusedEnv(base)
	for i, c := range base.Corners() {
		s, _ := Step(State{}, Down(c), env)
		require.Equal(t, ResizingCorner, s.Mode, "corner %d", i)
		require.Equal(t, i, s.Corner)

		s, _ = Step(s, Move(c.Add(pt(7, -3))), env)
		want := base.SetCorner(i, c.Add(pt(7, -3)))
		if diff := cmp.Diff(want, s.Draft); diff != "" {
			t.Errorf("corner %d draft mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestCornerHitOrder(t *testing.T) {
	t.Parallel()

	env := focusedEnv(geometry.Box{X1: 100, Y1: 100, X2: 104, Y2: 104})
	s, _ := Step(State{}, Down(pt(102, 102)), env)
	assert.Equal(t, ResizingCorner, s.Mode)
	assert.Equal(t, 0, s.Corner)

	i, ok := HitCorner(geometry.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}, pt(90.5, 100), 10)
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = HitCorner(geometry.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}, pt(90, 100), 10)
	assert.False(t, ok, "hit test is strict")
}

func TestMoveClampsPreservingSize(t *testing.T) {
	t.Parallel()

	env := focusedEnv(geometry.Box{X1: 50, Y1: 50, X2: 150, Y2: 150})

	s, _ := Step(State{}, Down(pt(100, 100)), env)
	require.Equal(t, Moving, s.Mode)

	s, _ = Step(s, Move(pt(400, 400)), env)
	assert.Equal(t, geometry.Box{X1: 300, Y1: 200, X2: 400, Y2: 300}, s.Draft)
	assert.Equal(t, pt(400, 300), s.Last)

	s, out := Step(s, Up(pt(400, 300)), env)
	assert.Equal(t, Idle, s.Mode)
	require.Equal(t, OutcomeUpdate, out.Kind)
	assert.Equal(t, geometry.CenterBox{XCenter: 350, YCenter: 250, Width: 100, Height: 100}, out.Box)
}

func TestPointerDownIgnored(t *testing.T) {
	t.Parallel()

	t.Run("outside focused box and handles", func(t *testing.T) {
		t.Parallel()
		env := focusedEnv(geometry.Box{X1: 50, Y1: 50, X2: 150, Y2: 150})
		s, out := Step(State{}, Down(pt(300, 250)), env)
		assert.Equal(t, State{}, s)
		assert.Equal(t, OutcomeNone, out.Kind)
	})

	t.Run("while a gesture is active", func(t *testing.T) {
		t.Parallel()
		env := identityEnv()
		s, _ := Step(State{}, Down(pt(10, 10)), env)
		s, _ = Step(s, Move(pt(60, 60)), env)
		before := s
		s, out := Step(s, Down(pt(200, 200)), env)
		if diff := cmp.Diff(before, s); diff != "" {
			t.Errorf("state changed (-want +got):\n%s", diff)
		}
		assert.Equal(t, OutcomeNone, out.Kind)
	})
}

func TestClearDiscards(t *testing.T) {
	t.Parallel()

	env := identityEnv()
	s, _ := Step(State{}, Down(pt(10, 10)), env)
	s, out := Step(s, ClearEvent(), env)
	assert.Equal(t, State{}, s)
	assert.Equal(t, OutcomeDiscard, out.Kind)
}

func TestMoveAndUpWhileIdle(t *testing.T) {
	t.Parallel()

	env := identityEnv()
	s, out := Step(State{}, Move(pt(10, 10)), env)
	assert.Equal(t, State{}, s)
	assert.Equal(t, OutcomeNone, out.Kind)
	s, out = Step(State{}, Up(pt(10, 10)), env)
	assert.Equal(t, State{}, s)
	assert.Equal(t, OutcomeNone, out.Kind)
	assert.NoError(t, out.Err)
}
