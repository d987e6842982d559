package canvas

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/app"
	"thermal-annotator/internal/config"
	"thermal-annotator/internal/store/sqlite"
	"thermal-annotator/internal/viewport"
	"thermal-annotator/pkg/geometry"
)

func loadedState(t *testing.T) *app.State {
	t.Helper()
	dir := t.TempDir()

	imgPath := filepath.Join(dir, "thermal.png")
	f, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 200, 100))))
	require.NoError(t, f.Close())

	db, err := sqlite.Open(filepath.Join(dir, "canvas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	require.NoError(t, db.PutInspection(ctx, anomaly.Inspection{ID: "insp-1", ImageURL: imgPath}))
	_, err = db.Create(ctx, "insp-1", anomaly.Anomaly{
		ID: "ai-1", Box: geometry.CenterBox{XCenter: 150, YCenter: 50, Width: 20, Height: 10},
		Class: anomaly.ClassLooseJointFaulty, Confidence: 0.8, Origin: anomaly.OriginAI,
	})
	require.NoError(t, err)

	s := app.NewState(config.Default(), db)
	t.Cleanup(s.Close)
	require.NoError(t, s.LoadInspection(ctx, "insp-1"))
	require.NotNil(t, s.Image())
	return s
}

func newCanvas(t *testing.T, s *app.State) *AnnotationCanvas {
	t.Helper()
	test.NewApp()
	// The pointer handlers ask the driver for a canvas to take keyboard focus.
	w := test.NewWindow(widget.NewLabel(""))
	t.Cleanup(w.Close)
	ac := NewAnnotationCanvas(s)
	ac.Resize(fyne.NewSize(200, 100))
	return ac
}

func press(ac *AnnotationCanvas, x, y float32, button desktop.MouseButton) {
	ac.MouseDown(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}, Button: button})
}

func drag(ac *AnnotationCanvas, x, y, dx, dy float32) {
	ac.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}, Dragged: fyne.NewDelta(dx, dy)})
}

func TestDrawBoxWithMouse(t *testing.T) {
	s := loadedState(t)
	ac := newCanvas(t, s)

	var focusCalls int
	ac.OnFocusChange(func(anomaly.Slot, bool) { focusCalls++ })

	press(ac, 20, 20, desktop.MouseButtonPrimary)
	drag(ac, 40, 35, 20, 15)
	drag(ac, 60, 50, 20, 15)
	ac.DragEnd()
	// A trailing MouseUp after DragEnd must not finish a second gesture.
	ac.MouseUp(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(90, 90)}, Button: desktop.MouseButtonPrimary})
	s.Flush()

	list := s.Collection().Anomalies()
	require.Len(t, list, 2)
	drawn := list[1]
	assert.Equal(t, anomaly.OriginUser, drawn.Origin)
	assert.InDelta(t, 40, drawn.Box.XCenter, 1e-9)
	assert.InDelta(t, 35, drawn.Box.YCenter, 1e-9)
	assert.InDelta(t, 40, drawn.Box.Width, 1e-9)
	assert.InDelta(t, 30, drawn.Box.Height, 1e-9)
	assert.NotEmpty(t, drawn.ID)
	assert.GreaterOrEqual(t, focusCalls, 2)
}

func TestWheelZoomAndPan(t *testing.T) {
	s := loadedState(t)
	ac := newCanvas(t, s)

	var factor float64
	ac.OnZoomChange(func(f float64) { factor = f })

	ac.Scrolled(&fyne.ScrollEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(100, 50)}, Scrolled: fyne.NewDelta(0, 1)})
	assert.InDelta(t, viewport.DefaultZoomStep, factor, 1e-9)

	before, err := s.Session().Viewport().Transform()
	require.NoError(t, err)
	press(ac, 100, 50, desktop.MouseButtonSecondary)
	drag(ac, 90, 50, -10, 0)
	ac.MouseUp(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(90, 50)}, Button: desktop.MouseButtonSecondary})
	after, err := s.Session().Viewport().Transform()
	require.NoError(t, err)
	assert.Less(t, after.Offset.X, before.Offset.X)
	assert.Equal(t, 1, s.Collection().Len(), "panning does not draw")

	ac.ResetZoom()
	assert.InDelta(t, 1, factor, 1e-9)
}

func TestKeyboardEditing(t *testing.T) {
	s := loadedState(t)
	ac := newCanvas(t, s)

	slot, ok := s.Collection().SlotByID("ai-1")
	require.True(t, ok)
	require.True(t, s.Session().Focus(slot))

	ac.TypedKey(&fyne.KeyEvent{Name: fyne.KeyEscape})
	_, focused := s.Session().Focused()
	assert.False(t, focused)

	require.True(t, s.Session().Focus(slot))
	ac.TypedKey(&fyne.KeyEvent{Name: fyne.KeyDelete})
	s.Flush()
	assert.Equal(t, 0, s.Collection().Len())
}

func TestDrawWithoutImage(t *testing.T) {
	test.NewApp()
	s := app.NewState(config.Default(), nil)
	ac := NewAnnotationCanvas(s)

	img := ac.draw(8, 4)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())
	press(ac, 1, 1, desktop.MouseButtonPrimary)
	assert.False(t, ac.primary)
}
