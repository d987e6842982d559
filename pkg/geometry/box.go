package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// ErrDegenerateBox is returned when a box with zero width or height is
// committed. Callers treat it as a no-op rather than a user-facing failure.
var ErrDegenerateBox = errors.New("degenerate box")

// DefaultMinExtent is the smallest width/height a committed box may have.
const DefaultMinExtent = 1e-6

// Box is an axis-aligned rectangle in corner form: (X1,Y1) is the top-left
// corner and (X2,Y2) the bottom-right once normalized. While a gesture is in
// progress the corners may be reversed.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// CenterBox is the center form of a box: center point plus extent.
// It is the canonical encoding handed to the record store.
type CenterBox struct {
	XCenter float64 `json:"x_center"`
	YCenter float64 `json:"y_center"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// BoxFromPoints builds a corner-form box from two opposite corners without
// reordering them.
func BoxFromPoints(a, b Point2D) Box {
	return Box{X1: a.X, Y1: a.Y, X2: b.X, Y2: b.Y}
}

// Normalize returns the box with X1<=X2 and Y1<=Y2.
func (b Box) Normalize() Box {
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	return b
}

// Width returns the absolute horizontal extent.
func (b Box) Width() float64 { return math.Abs(b.X2 - b.X1) }

// Height returns the absolute vertical extent.
func (b Box) Height() float64 { return math.Abs(b.Y2 - b.Y1) }

// Min returns the top-left corner of the normalized box.
func (b Box) Min() Point2D {
	n := b.Normalize()
	return Point2D{X: n.X1, Y: n.Y1}
}

// Max returns the bottom-right corner of the normalized box.
func (b Box) Max() Point2D {
	n := b.Normalize()
	return Point2D{X: n.X2, Y: n.Y2}
}

// Center converts the box to center form. The box is normalized first.
func (b Box) Center() CenterBox {
	n := b.Normalize()
	return CenterBox{
		XCenter: (n.X1 + n.X2) / 2,
		YCenter: (n.Y1 + n.Y2) / 2,
		Width:   n.X2 - n.X1,
		Height:  n.Y2 - n.Y1,
	}
}

// IsDegenerate reports whether the box is narrower or shorter than minExtent.
func (b Box) IsDegenerate(minExtent float64) bool {
	if minExtent <= 0 {
		minExtent = DefaultMinExtent
	}
	return b.Width() < minExtent || b.Height() < minExtent
}

// Valid reports whether all four bounds are finite.
func (b Box) Valid() bool {
	return finite(b.X1) && finite(b.Y1) && finite(b.X2) && finite(b.Y2)
}

// Translate shifts all four bounds by delta.
func (b Box) Translate(delta Point2D) Box {
	return Box{X1: b.X1 + delta.X, Y1: b.Y1 + delta.Y, X2: b.X2 + delta.X, Y2: b.Y2 + delta.Y}
}

// Contains reports whether p lies strictly inside the box.
func (b Box) Contains(p Point2D) bool {
	n := b.Normalize()
	return p.X > n.X1 && p.X < n.X2 && p.Y > n.Y1 && p.Y < n.Y2
}

// Corner returns corner i in the order top-left, top-right, bottom-right,
// bottom-left, read from the raw bounds (no normalization).
func (b Box) Corner(i int) Point2D {
	switch i {
	case 0:
		return Point2D{X: b.X1, Y: b.Y1}
	case 1:
		return Point2D{X: b.X2, Y: b.Y1}
	case 2:
		return Point2D{X: b.X2, Y: b.Y2}
	case 3:
		return Point2D{X: b.X1, Y: b.Y2}
	}
	return Point2D{X: math.NaN(), Y: math.NaN()}
}

// Corners returns all four corners in Corner order.
func (b Box) Corners() [4]Point2D {
	return [4]Point2D{b.Corner(0), b.Corner(1), b.Corner(2), b.Corner(3)}
}

// SetCorner moves corner i to p. Each corner owns one x-bound and one
// y-bound; the other two bounds are untouched.
func (b Box) SetCorner(i int, p Point2D) Box {
	switch i {
	case 0:
		b.X1, b.Y1 = p.X, p.Y
	case 1:
		b.X2, b.Y1 = p.X, p.Y
	case 2:
		b.X2, b.Y2 = p.X, p.Y
	case 3:
		b.X1, b.Y2 = p.X, p.Y
	}
	return b
}

// ClampInside shifts the box so that it lies within bounds, preserving its
// size. A box larger than bounds on an axis is pinned to the bounds' min edge.
func (b Box) ClampInside(bounds Box) Box {
	n := b.Normalize()
	lim := bounds.Normalize()
	var shift Point2D
	if n.X1 < lim.X1 {
		shift.X = lim.X1 - n.X1
	} else if n.X2 > lim.X2 {
		shift.X = math.Max(lim.X2-n.X2, lim.X1-n.X1)
	}
	if n.Y1 < lim.Y1 {
		shift.Y = lim.Y1 - n.Y1
	} else if n.Y2 > lim.Y2 {
		shift.Y = math.Max(lim.Y2-n.Y2, lim.Y1-n.Y1)
	}
	return b.Translate(shift)
}

// ClampPoint limits p to the (normalized) box.
func (b Box) ClampPoint(p Point2D) Point2D {
	n := b.Normalize()
	return Point2D{
		X: math.Max(n.X1, math.Min(p.X, n.X2)),
		Y: math.Max(n.Y1, math.Min(p.Y, n.Y2)),
	}
}

// Corners converts center form back to a normalized corner-form box.
func (c CenterBox) Corners() Box {
	hw, hh := c.Width/2, c.Height/2
	return Box{
		X1: c.XCenter - hw,
		Y1: c.YCenter - hh,
		X2: c.XCenter + hw,
		Y2: c.YCenter + hh,
	}
}

// Valid reports whether the components are finite and the extent is not
// negative.
func (c CenterBox) Valid() bool {
	return finite(c.XCenter) && finite(c.YCenter) && finite(c.Width) && finite(c.Height) &&
		c.Width >= 0 && c.Height >= 0
}

// Array returns the box as [xCenter, yCenter, width, height].
func (c CenterBox) Array() [4]float64 {
	return [4]float64{c.XCenter, c.YCenter, c.Width, c.Height}
}

// CenterBoxFromArray is the inverse of CenterBox.Array.
func CenterBoxFromArray(v [4]float64) CenterBox {
	return CenterBox{XCenter: v[0], YCenter: v[1], Width: v[2], Height: v[3]}
}

// ApproxEqual reports whether two corner-form boxes match within tol
// relative to the larger extent of a (absolute tol for tiny boxes).
func ApproxEqual(a, b Box, tol float64) bool {
	ref := math.Max(math.Max(a.Width(), a.Height()), 1)
	abs := tol * ref
	return scalar.EqualWithinAbs(a.X1, b.X1, abs) &&
		scalar.EqualWithinAbs(a.Y1, b.Y1, abs) &&
		scalar.EqualWithinAbs(a.X2, b.X2, abs) &&
		scalar.EqualWithinAbs(a.Y2, b.Y2, abs)
}

// ApproxEqualPoint reports whether two points match within tol on each axis.
func ApproxEqualPoint(a, b Point2D, tol float64) bool {
	return scalar.EqualWithinAbsOrRel(a.X, b.X, tol, tol) &&
		scalar.EqualWithinAbsOrRel(a.Y, b.Y, tol, tol)
}
