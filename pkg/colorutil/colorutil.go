// Package colorutil provides shared color utilities for the annotator: the
// anomaly palette, hex parsing and alpha helpers.
package colorutil

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Common overlay colors used throughout the application.
var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Cyan   = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// PaletteHex is the anomaly colour cycle, indexed by visible position mod 8.
var PaletteHex = [...]string{
	"#ff5252",
	"#4caf50",
	"#2196f3",
	"#ff9800",
	"#9c27b0",
	"#00bcd4",
	"#8bc34a",
	"#e91e63",
}

var palette = func() [len(PaletteHex)]color.RGBA {
	var p [len(PaletteHex)]color.RGBA
	for i, h := range PaletteHex {
		c, err := ParseHex(h)
		if err != nil {
			panic(err)
		}
		p[i] = c
	}
	return p
}()

// PaletteLen is the number of distinct palette entries.
const PaletteLen = len(PaletteHex)

// PaletteColor returns the palette colour for a visible index. Negative
// indices wrap like positive ones.
func PaletteColor(index int) color.RGBA {
	return palette[PaletteIndex(index)]
}

// PaletteIndex reduces index to [0, PaletteLen).
func PaletteIndex(index int) int {
	i := index % PaletteLen
	if i < 0 {
		i += PaletteLen
	}
	return i
}

// ParseHex parses "#rgb" or "#rrggbb" (leading '#' optional) into an opaque
// colour.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("parse hex colour %q: want 3 or 6 digits", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("parse hex colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Hex formats c as "#rrggbb", ignoring alpha.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// WithOpacity returns c with alpha set from an opacity in [0,1]. The result
// is non-premultiplied, so use color.NRGBA.
func WithOpacity(c color.RGBA, opacity float64) color.NRGBA {
	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(opacity*255 + 0.5)}
}
