// Package app wires the annotation engine to a record store and an image
// source for one inspection at a time, and publishes what happens as events.
package app

import (
	"context"
	"errors"
	"fmt"
	goimage "image"
	"io"
	"log/slog"
	"sync"
	"time"

	"thermal-annotator/internal/annotate"
	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/config"
	"thermal-annotator/internal/image"
	"thermal-annotator/internal/render"
	"thermal-annotator/internal/report"
	"thermal-annotator/internal/store"
)

// ErrNoInspection is returned before an inspection has been loaded.
var ErrNoInspection = errors.New("no inspection loaded")

// EventType identifies different application events.
type EventType int

const (
	// EventInspectionLoaded carries the anomaly.Inspection.
	EventInspectionLoaded EventType = iota
	// EventImageLoaded carries the *image.Source.
	EventImageLoaded
	// EventImageFailed carries the *image.LoadError.
	EventImageFailed
	// EventAnomaliesChanged fires after any collection change.
	EventAnomaliesChanged
	// EventHighlightChanged carries the highlighted id ("" for none).
	EventHighlightChanged
	// EventPersistenceError carries the *store.PersistenceError.
	EventPersistenceError
	// EventRefreshed carries the refetched []anomaly.Anomaly.
	EventRefreshed
)

func (e EventType) String() string {
	switch e {
	case EventInspectionLoaded:
		return "inspection-loaded"
	case EventImageLoaded:
		return "image-loaded"
	case EventImageFailed:
		return "image-failed"
	case EventAnomaliesChanged:
		return "anomalies-changed"
	case EventHighlightChanged:
		return "highlight-changed"
	case EventPersistenceError:
		return "persistence-error"
	case EventRefreshed:
		return "refreshed"
	default:
		return "unknown"
	}
}

// EventListener is called when an event occurs. Listeners for
// EventAnomaliesChanged, EventPersistenceError and EventRefreshed may run on
// a committer goroutine.
type EventListener func(data interface{})

// State holds the inspection being annotated.
type State struct {
	cfg    config.Config
	store  store.Store
	loader *image.Loader

	mu         sync.RWMutex
	inspection anomaly.Inspection
	loaded     bool
	source     *image.Source
	coll       *anomaly.Collection
	session    *annotate.Session
	committer  *store.Committer

	lmu       sync.RWMutex
	listeners map[EventType][]EventListener
}

// NewState creates application state over st.
func NewState(cfg config.Config, st store.Store) *State {
	return &State{
		cfg:       cfg,
		store:     st,
		loader:    &image.Loader{},
		listeners: make(map[EventType][]EventListener),
	}
}

// SetImageLoader replaces the loader used for inspection images.
func (s *State) SetImageLoader(l *image.Loader) {
	s.loader = l
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.lmu.RLock()
	listeners := s.listeners[event]
	s.lmu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Config returns the configuration the state was created with.
func (s *State) Config() config.Config { return s.cfg }

// LoadInspection fetches the inspection's anomalies and starts a new
// annotation session for it. The previous session is closed. When the
// inspection names an image it is loaded too; an image failure is reported
// through EventImageFailed and leaves the session disabled, it does not fail
// the call.
func (s *State) LoadInspection(ctx context.Context, inspectionID string) error {
	info := anomaly.Inspection{ID: inspectionID}
	if is, ok := s.store.(store.InspectionStore); ok {
		var err error
		if info, err = is.Inspection(ctx, inspectionID); err != nil {
			return store.Wrap(store.OpList, inspectionID, "", err)
		}
	}
	list, err := s.store.List(ctx, inspectionID)
	if err != nil {
		return store.Wrap(store.OpList, inspectionID, "", err)
	}

	coll := anomaly.NewCollection(list)
	coll.OnChange(func() { s.Emit(EventAnomaliesChanged, nil) })
	committer := store.NewCommitter(context.Background(), s.store, inspectionID, coll,
		store.WithTimeout(s.cfg.Store.Timeout),
		store.WithErrorHandler(func(pe *store.PersistenceError) { s.Emit(EventPersistenceError, pe) }),
		store.WithRefreshHandler(func(list []anomaly.Anomaly) { s.Emit(EventRefreshed, list) }),
	)
	session := annotate.NewSession(s.cfg.FrameSize(), coll, committer, s.cfg.SessionOptions())

	s.mu.Lock()
	prevSession, prevCommitter := s.detachLocked()
	s.inspection = info
	s.loaded = true
	s.source = nil
	s.coll = coll
	s.session = session
	s.committer = committer
	s.mu.Unlock()
	closeSession(prevSession, prevCommitter)

	slog.Info("Inspection loaded", "inspection", inspectionID, "anomalies", len(list))
	s.Emit(EventInspectionLoaded, info)

	if info.ImageURL != "" {
		_ = s.LoadImage(ctx, info.ImageURL)
	}
	return nil
}

// LoadImage loads the inspection image and enables the session.
func (s *State) LoadImage(ctx context.Context, ref string) error {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return ErrNoInspection
	}

	src, err := s.loader.Load(ctx, ref)
	if err != nil {
		slog.Error("Failed to load inspection image", "ref", ref, "error", err)
		s.Emit(EventImageFailed, err)
		return err
	}
	if err := session.SetImage(src.Size()); err != nil {
		return fmt.Errorf("image %s: %w", ref, err)
	}

	s.mu.Lock()
	s.source = src
	s.mu.Unlock()

	slog.Info("Image loaded", "ref", ref, "width", src.Width, "height", src.Height)
	s.Emit(EventImageLoaded, src)
	return nil
}

// Inspection returns the loaded inspection.
func (s *State) Inspection() (anomaly.Inspection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inspection, s.loaded
}

// Session returns the active annotation session, or nil.
func (s *State) Session() *annotate.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Collection returns the anomalies of the loaded inspection, or nil.
func (s *State) Collection() *anomaly.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coll
}

// Image returns the loaded image, or nil.
func (s *State) Image() *image.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// ToggleHighlight highlights id, or clears the highlight if id already is.
func (s *State) ToggleHighlight(id string) string {
	coll := s.Collection()
	if coll == nil {
		return ""
	}
	h := coll.ToggleHighlight(id)
	s.Emit(EventHighlightChanged, h)
	return h
}

// Refresh refetches the anomalies from the store.
func (s *State) Refresh(ctx context.Context) error {
	s.mu.RLock()
	c := s.committer
	s.mu.RUnlock()
	if c == nil {
		return ErrNoInspection
	}
	_, err := c.Refresh(ctx)
	return err
}

// Flush waits for outstanding store calls.
func (s *State) Flush() {
	s.mu.RLock()
	c := s.committer
	s.mu.RUnlock()
	if c != nil {
		c.Wait()
	}
}

// WriteReport writes the text report of the loaded inspection, including
// the activity log when the store keeps one.
func (s *State) WriteReport(ctx context.Context, w io.Writer, now time.Time) error {
	info, ok := s.Inspection()
	if !ok {
		return ErrNoInspection
	}
	var log []anomaly.LogEntry
	if ls, ok := s.store.(store.LogStore); ok {
		var err error
		if log, err = ls.Log(ctx, info.ID); err != nil {
			return store.Wrap(store.OpLog, info.ID, "", err)
		}
	}
	return report.WriteText(w, info, s.Collection().Anomalies(), log, now)
}

// ExportImage renders the loaded image at natural size with the current
// anomalies drawn on it.
func (s *State) ExportImage() (*goimage.RGBA, error) {
	s.mu.RLock()
	src, coll := s.source, s.coll
	s.mu.RUnlock()
	if src == nil || coll == nil {
		return nil, ErrNoInspection
	}
	return render.ExportAnnotated(src.Image, coll.Anomalies())
}

// Close ends the session and abandons outstanding store calls.
func (s *State) Close() {
	s.mu.Lock()
	session, committer := s.detachLocked()
	s.mu.Unlock()
	closeSession(session, committer)
}

func (s *State) detachLocked() (*annotate.Session, *store.Committer) {
	session, committer := s.session, s.committer
	s.session = nil
	s.committer = nil
	return session, committer
}

// closeSession waits for the committer's goroutines, whose listeners read
// State, so s.mu must not be held.
func closeSession(session *annotate.Session, committer *store.Committer) {
	if session != nil {
		session.Close()
	}
	if committer != nil {
		committer.Close()
	}
}
