package viewport

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-annotator/pkg/geometry"
)

func TestFit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		img   geometry.Size
		frame geometry.Size
		want  Transform
	}{
		{
			name:  "exact aspect",
			img:   geometry.NewSize(800, 600),
			frame: geometry.NewSize(400, 300),
			want:  Transform{Scale: 0.5, Offset: geometry.Pt(0, 0)},
		},
		{
			name:  "vertical slack",
			img:   geometry.NewSize(800, 400),
			frame: geometry.NewSize(400, 400),
			want:  Transform{Scale: 0.5, Offset: geometry.Pt(0, 100)},
		},
		{
			name:  "horizontal slack",
			img:   geometry.NewSize(200, 400),
			frame: geometry.NewSize(400, 400),
			want:  Transform{Scale: 1, Offset: geometry.Pt(100, 0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Fit(tt.img, tt.frame)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Fit() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFitRejectsEmptyImage(t *testing.T) {
	t.Parallel()

	_, err := Fit(geometry.Size{}, geometry.NewSize(400, 300))
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestTransformInverse(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		tr := Transform{
			Scale:  0.05 + rng.Float64()*5,
			Offset: geometry.Pt(rng.Float64()*800-400, rng.Float64()*600-300),
		}
		p := geometry.Pt(rng.Float64()*2000, rng.Float64()*2000)
		back := tr.ToImage(tr.ToScreen(p))
		assert.True(t, geometry.ApproxEqualPoint(p, back, 1e-9), "%v -> %v", p, back)

		aff := tr.Affine().Apply(p)
		assert.True(t, geometry.ApproxEqualPoint(tr.ToScreen(p), aff, 1e-9))
	}
}

func TestZoomFloorSnapsToFit(t *testing.T) {
	t.Parallel()

	v := New(geometry.NewSize(400, 300), DefaultOptions())
	require.NoError(t, v.SetImage(geometry.NewSize(800, 600)))
	fit, err := v.Transform()
	require.NoError(t, err)

	pivot := geometry.Pt(120, 80)
	for i := 0; i < 3; i++ {
		_, err = v.Zoom(pivot, ZoomIn)
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		got, err := v.Zoom(pivot, ZoomOut)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Scale, fit.Scale)
	}
	got, err := v.Transform()
	require.NoError(t, err)
	assert.Equal(t, fit, got)
}

func TestZoomKeepsPivotStationary(t *testing.T) {
	t.Parallel()

	v := New(geometry.NewSize(400, 300), DefaultOptions())
	require.NoError(t, v.SetImage(geometry.NewSize(800, 600)))

	pivot := geometry.Pt(200, 150)
	before, err := v.Transform()
	require.NoError(t, err)
	after, err := v.Zoom(pivot, ZoomIn)
	require.NoError(t, err)

	assert.InDelta(t, 0.55, after.Scale, 1e-12)
	assert.True(t, geometry.ApproxEqualPoint(before.ToImage(pivot), after.ToImage(pivot), 1e-9))

	want := Transform{Scale: 0.55, Offset: geometry.Pt(-20, -15)}
	if diff := cmp.Diff(want, after, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Zoom() mismatch (-want +got):\n%s", diff)
	}
}

func TestZoomCap(t *testing.T) {
	t.Parallel()

	v := New(geometry.NewSize(400, 300), Options{ZoomStep: 2, MaxScale: 3})
	require.NoError(t, v.SetImage(geometry.NewSize(400, 300)))
	for i := 0; i < 5; i++ {
		_, err := v.Zoom(geometry.Pt(0, 0), ZoomIn)
		require.NoError(t, err)
	}
	got, err := v.Transform()
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Scale)
	assert.InDelta(t, 3.0, v.ZoomFactor(), 1e-12)
}

func TestPanClamp(t *testing.T) {
	t.Parallel()

	t.Run("axis exactly filling the frame stays put", func(t *testing.T) {
		t.Parallel()
		v := New(geometry.NewSize(400, 300), DefaultOptions())
		require.NoError(t, v.SetImage(geometry.NewSize(800, 600)))
		got, err := v.Pan(geometry.Pt(37, -52))
		require.NoError(t, err)
		assert.Equal(t, geometry.Pt(0, 0), got.Offset)
	})

	t.Run("axis with slack stays centred", func(t *testing.T) {
		t.Parallel()
		v := New(geometry.NewSize(400, 400), DefaultOptions())
		require.NoError(t, v.SetImage(geometry.NewSize(800, 400)))
		got, err := v.Pan(geometry.Pt(0, 80))
		require.NoError(t, err)
		assert.Equal(t, geometry.Pt(0, 100), got.Offset)
	})

	t.Run("zoomed axis is limited to the image edge", func(t *testing.T) {
		t.Parallel()
		tr := Transform{Scale: 1, Offset: geometry.Pt(-100, -50)}
		img := geometry.NewSize(800, 600)
		frame := geometry.NewSize(400, 300)

		got := Pan(tr, img, frame, geometry.Pt(500, 500))
		assert.Equal(t, geometry.Pt(0, 0), got.Offset)

		got = Pan(tr, img, frame, geometry.Pt(-1000, -1000))
		assert.Equal(t, geometry.Pt(-400, -300), got.Offset)

		got = Pan(tr, img, frame, geometry.Pt(-10, 20))
		assert.Equal(t, geometry.Pt(-110, -30), got.Offset)
	})
}

func TestResetMatchesFit(t *testing.T) {
	t.Parallel()

	v := New(geometry.NewSize(640, 480), DefaultOptions())
	require.NoError(t, v.SetImage(geometry.NewSize(1279, 719)))
	fit, err := Fit(geometry.NewSize(1279, 719), geometry.NewSize(640, 480))
	require.NoError(t, err)

	_, err = v.Zoom(geometry.Pt(10, 400), ZoomIn)
	require.NoError(t, err)
	_, err = v.Pan(geometry.Pt(-33, 12))
	require.NoError(t, err)

	got, err := v.Reset()
	require.NoError(t, err)
	assert.Equal(t, fit, got)
}

func TestImageBounds(t *testing.T) {
	t.Parallel()

	v := New(geometry.NewSize(400, 400), DefaultOptions())
	_, err := v.ImageBounds()
	assert.ErrorIs(t, err, ErrNoImage)

	require.NoError(t, v.SetImage(geometry.NewSize(800, 400)))
	b, err := v.ImageBounds()
	require.NoError(t, err)
	assert.Equal(t, geometry.Box{X1: 0, Y1: 100, X2: 400, Y2: 300}, b)
}

func TestUnloadedViewport(t *testing.T) {
	t.Parallel()

	v := New(geometry.NewSize(400, 300), DefaultOptions())
	assert.False(t, v.Loaded())

	_, err := v.Zoom(geometry.Pt(1, 1), ZoomIn)
	assert.ErrorIs(t, err, ErrNoImage)
	_, err = v.Pan(geometry.Pt(1, 1))
	assert.ErrorIs(t, err, ErrNoImage)
	_, err = v.Reset()
	assert.ErrorIs(t, err, ErrNoImage)
	_, err = v.Transform()
	assert.ErrorIs(t, err, ErrNoImage)

	require.NoError(t, v.SetImage(geometry.NewSize(800, 600)))
	v.Unload()
	assert.False(t, v.Loaded())
}
