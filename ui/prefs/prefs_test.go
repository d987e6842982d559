package prefs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", prefsFile)
	p := LoadFrom(path)
	assert.False(t, p.Changed())
	assert.Equal(t, 640.0, p.FloatWithFallback(KeyWindowWidth, 640))
	assert.Equal(t, "", p.String(KeyLastInspection))

	p.SetFloat(KeyWindowWidth, 1280)
	p.SetString(KeyLastInspection, "insp-7")
	assert.True(t, p.Changed())
	require.NoError(t, p.Save())
	assert.False(t, p.Changed())

	again := LoadFrom(path)
	assert.Equal(t, 1280.0, again.FloatWithFallback(KeyWindowWidth, 640))
	assert.Equal(t, "insp-7", again.String(KeyLastInspection))

	again.SetString(KeyLastInspection, "insp-7")
	assert.False(t, again.Changed(), "setting the same value is not a change")
}

func TestWrongTypeFallsBack(t *testing.T) {
	t.Parallel()

	p := LoadFrom(filepath.Join(t.TempDir(), prefsFile))
	p.SetString(KeySplitOffset, "wide")
	assert.Equal(t, 0.7, p.FloatWithFallback(KeySplitOffset, 0.7))
	p.SetFloat(KeyLastDir, 3)
	assert.Equal(t, "", p.String(KeyLastDir))
}
