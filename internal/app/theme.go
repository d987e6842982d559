package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// Accent colours: orange for actions and focus, cyan for the
// selected anomaly row.
var (
	accentOrange = color.NRGBA{R: 0xFF, G: 0x6B, B: 0x35, A: 0xFF}
	accentCyan   = color.NRGBA{R: 0x00, G: 0xFF, B: 0xFF, A: 0x60}
	canvasGray   = color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xFF}
)

// AnnotatorTheme is always dark so thermal palettes keep their contrast.
// It only overrides accents, the background and the list scrollbars.
type AnnotatorTheme struct{}

var _ fyne.Theme = (*AnnotatorTheme)(nil)

func (t *AnnotatorTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return accentOrange
	case theme.ColorNameSelection:
		return accentCyan
	case theme.ColorNameBackground:
		return canvasGray
	default:
		return theme.DefaultTheme().Color(name, theme.VariantDark)
	}
}

func (t *AnnotatorTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *AnnotatorTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *AnnotatorTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameScrollBar:
		return 14
	case theme.SizeNameScrollBarSmall:
		return 10
	default:
		return theme.DefaultTheme().Size(name)
	}
}
