package app

import (
	"testing"

	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/theme"
	"github.com/stretchr/testify/assert"
)

func TestAnnotatorThemeIsDark(t *testing.T) {
	t.Parallel()
	test.NewApp()

	th := &AnnotatorTheme{}
	assert.Equal(t, accentOrange, th.Color(theme.ColorNamePrimary, theme.VariantLight))
	assert.Equal(t,
		theme.DefaultTheme().Color(theme.ColorNameForeground, theme.VariantDark),
		th.Color(theme.ColorNameForeground, theme.VariantLight))
	assert.Equal(t, float32(14), th.Size(theme.SizeNameScrollBar))
	assert.Equal(t, theme.DefaultTheme().Size(theme.SizeNamePadding), th.Size(theme.SizeNamePadding))
}
