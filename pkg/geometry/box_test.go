package geometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	t.Run("swaps reversed corners", func(t *testing.T) {
		t.Parallel()
		b := Box{X1: 150, Y1: 120, X2: 50, Y2: 50}.Normalize()
		assert.Equal(t, Box{X1: 50, Y1: 50, X2: 150, Y2: 120}, b)
	})

	t.Run("swaps a single axis", func(t *testing.T) {
		t.Parallel()
		b := Box{X1: 10, Y1: 40, X2: 30, Y2: 20}.Normalize()
		assert.Equal(t, Box{X1: 10, Y1: 20, X2: 30, Y2: 40}, b)
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 200; i++ {
			b := Box{X1: rng.Float64()*1000 - 500, Y1: rng.Float64()*1000 - 500, X2: rng.Float64()*1000 - 500, Y2: rng.Float64()*1000 - 500}
			once := b.Normalize()
			assert.Equal(t, once, once.Normalize())
			assert.LessOrEqual(t, once.X1, once.X2)
			assert.LessOrEqual(t, once.Y1, once.Y2)
		}
	})
}

func TestCenterRoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		x1 := rng.Float64() * 4000
		y1 := rng.Float64() * 3000
		b := Box{X1: x1, Y1: y1, X2: x1 + 0.5 + rng.Float64()*800, Y2: y1 + 0.5 + rng.Float64()*600}
		got := b.Center().Corners()
		require.True(t, ApproxEqual(b, got, 1e-6), "round trip %v -> %v", b, got)
	}
}

func TestCenterForm(t *testing.T) {
	t.Parallel()

	c := Box{X1: 50, Y1: 50, X2: 150, Y2: 120}.Center()
	assert.Equal(t, CenterBox{XCenter: 100, YCenter: 85, Width: 100, Height: 70}, c)

	b := CenterBox{XCenter: 100, YCenter: 85, Width: 100, Height: 70}.Corners()
	assert.Equal(t, Box{X1: 50, Y1: 50, X2: 150, Y2: 120}, b)

	assert.Equal(t, c, CenterBoxFromArray(c.Array()))
}

func TestIsDegenerate(t *testing.T) {
	t.Parallel()

	assert.True(t, Box{X1: 10, Y1: 10, X2: 10, Y2: 50}.IsDegenerate(0))
	assert.True(t, Box{X1: 10, Y1: 10, X2: 50, Y2: 10}.IsDegenerate(0))
	assert.True(t, Box{X1: 10, Y1: 10, X2: 10.5, Y2: 50}.IsDegenerate(1))
	assert.False(t, Box{X1: 10, Y1: 10, X2: 11, Y2: 11}.IsDegenerate(0))
	assert.False(t, Box{X1: 50, Y1: 50, X2: 10, Y2: 10}.IsDegenerate(0))
}

func TestValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Box{X1: 1, Y1: 2, X2: 3, Y2: 4}.Valid())
	assert.False(t, Box{X1: math.NaN(), Y1: 2, X2: 3, Y2: 4}.Valid())
	assert.False(t, Box{X1: 1, Y1: 2, X2: math.Inf(1), Y2: 4}.Valid())

	assert.True(t, CenterBox{XCenter: 1, YCenter: 1, Width: 0, Height: 2}.Valid())
	assert.False(t, CenterBox{XCenter: 1, YCenter: 1, Width: -1, Height: 2}.Valid())
	assert.False(t, CenterBox{XCenter: math.NaN(), YCenter: 1, Width: 1, Height: 2}.Valid())
}

func TestSetCornerOwnsOneBoundPerAxis(t *testing.T) {
	t.Parallel()

	base := Box{X1: 10, Y1: 20, X2: 110, Y2: 220}
	tests := []struct {
		corner int
		want   Box
	}{
		{0, Box{X1: 5, Y1: 6, X2: 110, Y2: 220}},
		{1, Box{X1: 10, Y1: 6, X2: 5, Y2: 220}},
		{2, Box{X1: 10, Y1: 20, X2: 5, Y2: 6}},
		{3, Box{X1: 5, Y1: 20, X2: 110, Y2: 6}},
	}
	for _, tt := range tests {
		got := base.SetCorner(tt.corner, Pt(5, 6))
		assert.Equal(t, tt.want, got, "corner %d", tt.corner)
		assert.Equal(t, Pt(5, 6), got.Corner(tt.corner))
	}
}

func TestContainsIsStrict(t *testing.T) {
	t.Parallel()

	b := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	assert.True(t, b.Contains(Pt(5, 5)))
	assert.False(t, b.Contains(Pt(0, 5)))
	assert.False(t, b.Contains(Pt(10, 10)))
	assert.True(t, Box{X1: 10, Y1: 10, X2: 0, Y2: 0}.Contains(Pt(5, 5)))
}

func TestClampInside(t *testing.T) {
	t.Parallel()

	bounds := Box{X1: 0, Y1: 0, X2: 100, Y2: 50}

	got := Box{X1: -10, Y1: 40, X2: 20, Y2: 60}.ClampInside(bounds)
	assert.Equal(t, Box{X1: 0, Y1: 30, X2: 30, Y2: 50}, got)

	got = Box{X1: 90, Y1: -5, X2: 120, Y2: 5}.ClampInside(bounds)
	assert.Equal(t, Box{X1: 70, Y1: 0, X2: 100, Y2: 10}, got)

	inside := Box{X1: 10, Y1: 10, X2: 20, Y2: 20}
	assert.Equal(t, inside, inside.ClampInside(bounds))
}

func TestComposeAppliesRightFirst(t *testing.T) {
	t.Parallel()

	tr := Translation(30, -12).Compose(Scale(2.5, 2.5))
	assert.Equal(t, Pt(30+2.5*4, -12+2.5*8), tr.Apply(Pt(4, 8)))

	shifted := tr.Compose(Translation(-10, -20))
	assert.Equal(t, tr.Apply(Pt(0, 0)), shifted.Apply(Pt(10, 20)))
}
