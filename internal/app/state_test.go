package app

import (
	"bytes"
	"context"
	"errors"
	goimage "image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/config"
	"thermal-annotator/internal/image"
	"thermal-annotator/internal/store"
	"thermal-annotator/pkg/geometry"
)

type recorder struct {
	mu     sync.Mutex
	events []EventType
}

func (r *recorder) listen(s *State, types ...EventType) {
	for _, et := range types {
		et := et
		s.On(et, func(interface{}) {
			r.mu.Lock()
			r.events = append(r.events, et)
			r.mu.Unlock()
		})
	}
}

func (r *recorder) has(et EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == et {
			return true
		}
	}
	return false
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thermal.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, goimage.NewRGBA(goimage.Rect(0, 0, w, h))))
	require.NoError(t, f.Close())
	return path
}

func newTestState(t *testing.T, imageRef string) (*State, store.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.Store.DatabasePath = filepath.Join(t.TempDir(), "app.db")
	st, closer, err := OpenStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { closer.Close() })

	type putter interface {
		PutInspection(context.Context, anomaly.Inspection) error
	}
	require.NoError(t, st.(putter).PutInspection(context.Background(), anomaly.Inspection{ID: "insp-1", InspectionNo: "INS-1", ImageURL: imageRef}))
	_, err = st.Create(context.Background(), "insp-1", anomaly.Anomaly{
		ID: "ai-1", Box: geometry.CenterBox{XCenter: 50, YCenter: 50, Width: 20, Height: 10}, Class: anomaly.ClassPointOverloadFaulty, Confidence: 0.9, Origin: anomaly.OriginAI,
	})
	require.NoError(t, err)

	s := NewState(cfg, st)
	t.Cleanup(s.Close)
	return s, st
}

func TestLoadInspectionAndDraw(t *testing.T) {
	t.Parallel()

	s, st := newTestState(t, writePNG(t, 200, 100))
	rec := &recorder{}
	rec.listen(s, EventInspectionLoaded, EventImageLoaded, EventAnomaliesChanged)

	require.NoError(t, s.LoadInspection(context.Background(), "insp-1"))
	assert.True(t, rec.has(EventInspectionLoaded))
	assert.True(t, rec.has(EventImageLoaded))
	require.NotNil(t, s.Image())
	assert.Equal(t, 200, s.Image().Width)

	sess := s.Session()
	require.NotNil(t, sess)
	require.True(t, sess.Enabled())
	assert.Equal(t, 1, s.Collection().Len())

	sess.PointerDown(geometry.Pt(100, 200))
	sess.PointerMove(geometry.Pt(200, 300))
	sess.PointerUp(geometry.Pt(300, 400))
	s.Flush()

	assert.True(t, rec.has(EventAnomaliesChanged))
	list, err := st.List(context.Background(), "insp-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, anomaly.OriginUser, list[1].Origin)
	assert.Equal(t, s.Collection().Anomalies()[1].ID, list[1].ID, "the created id reaches the collection")

	var buf bytes.Buffer
	require.NoError(t, s.WriteReport(context.Background(), &buf, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Contains(t, buf.String(), "Anomaly #2")
	assert.Contains(t, buf.String(), "Log Entry #2")

	img, err := s.ExportImage()
	require.NoError(t, err)
	assert.Equal(t, goimage.Rect(0, 0, 200, 100), img.Bounds())
}

func TestImageFailureLeavesSessionDisabled(t *testing.T) {
	t.Parallel()

	s, _ := newTestState(t, filepath.Join(t.TempDir(), "missing.png"))
	var failure error
	s.On(EventImageFailed, func(data interface{}) { failure = data.(error) })

	require.NoError(t, s.LoadInspection(context.Background(), "insp-1"))
	var le *image.LoadError
	require.True(t, errors.As(failure, &le))
	assert.False(t, s.Session().Enabled())
	assert.Nil(t, s.Image())

	_, err := s.ExportImage()
	assert.ErrorIs(t, err, ErrNoInspection)
}

func TestHighlightAndErrors(t *testing.T) {
	t.Parallel()

	s, _ := newTestState(t, "")
	assert.ErrorIs(t, s.Refresh(context.Background()), ErrNoInspection)
	assert.ErrorIs(t, s.LoadImage(context.Background(), "x.png"), ErrNoInspection)
	assert.ErrorIs(t, s.WriteReport(context.Background(), &bytes.Buffer{}, time.Now()), ErrNoInspection)
	assert.Equal(t, "", s.ToggleHighlight("ai-1"))

	err := s.LoadInspection(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.LoadInspection(context.Background(), "insp-1"))
	var got []string
	s.On(EventHighlightChanged, func(data interface{}) { got = append(got, data.(string)) })
	s.ToggleHighlight("ai-1")
	s.ToggleHighlight("ai-1")
	assert.Equal(t, []string{"ai-1", ""}, got)
	require.NoError(t, s.Refresh(context.Background()))

	info, ok := s.Inspection()
	require.True(t, ok)
	assert.Equal(t, "INS-1", info.InspectionNo)
}

// gatedStore holds Create until release is closed.
type gatedStore struct {
	store.Store
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Create(ctx context.Context, inspectionID string, a anomaly.Anomaly) (string, error) {
	close(g.entered)
	<-g.release
	return "user-1", nil
}

func TestCloseWhileCreateCompletes(t *testing.T) {
	t.Parallel()

	_, st := newTestState(t, "")
	gated := &gatedStore{Store: st, entered: make(chan struct{}), release: make(chan struct{})}
	s := NewState(config.Default(), gated)
	s.On(EventAnomaliesChanged, func(interface{}) { _ = s.Collection() })

	ctx := context.Background()
	require.NoError(t, s.LoadInspection(ctx, "insp-1"))
	require.NoError(t, s.LoadImage(ctx, writePNG(t, 200, 100)))

	sess := s.Session()
	sess.PointerDown(geometry.Pt(100, 200))
	sess.PointerMove(geometry.Pt(200, 300))
	sess.PointerUp(geometry.Pt(300, 400))
	<-gated.entered

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	close(gated.release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return while a create was finishing")
	}
	assert.Nil(t, s.Session())
}

func TestEventTypeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "persistence-error", EventPersistenceError.String())
	assert.Equal(t, "unknown", EventType(99).String())
}
