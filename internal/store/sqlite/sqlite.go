// Package sqlite is a local Store backend on an embedded SQLite database.
// The schema is managed with golang-migrate; every write also appends a
// snapshot to the activity log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/store"
	"thermal-annotator/pkg/geometry"
)

// Store persists inspections, anomalies and their activity log.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ store.Store           = (*Store)(nil)
	_ store.LogStore        = (*Store)(nil)
	_ store.InspectionStore = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema. Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: pragmas are per connection and :memory: databases are
	// per connection too.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}
	if err := MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("Opened anomaly database", "path", path)
	return &Store{db: db, now: time.Now}, nil
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// PutInspection creates or replaces the metadata of an inspection.
func (s *Store) PutInspection(ctx context.Context, in anomaly.Inspection) error {
	if in.ID == "" {
		return errors.New("inspection id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inspections (id, inspection_no, transformer_no, inspected_date, status, image_url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			inspection_no = excluded.inspection_no,
			transformer_no = excluded.transformer_no,
			inspected_date = excluded.inspected_date,
			status = excluded.status,
			image_url = excluded.image_url`,
		in.ID, in.InspectionNo, in.TransformerNo, in.InspectedDate, in.Status, in.ImageURL)
	if err != nil {
		return fmt.Errorf("failed to save inspection %s: %w", in.ID, err)
	}
	return nil
}

// Inspection returns the metadata of one inspection.
func (s *Store) Inspection(ctx context.Context, inspectionID string) (anomaly.Inspection, error) {
	var in anomaly.Inspection
	err := s.db.QueryRowContext(ctx, `
		SELECT id, inspection_no, transformer_no, inspected_date, status, image_url
		FROM inspections WHERE id = ?`, inspectionID).
		Scan(&in.ID, &in.InspectionNo, &in.TransformerNo, &in.InspectedDate, &in.Status, &in.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return anomaly.Inspection{}, store.ErrNotFound
	}
	if err != nil {
		return anomaly.Inspection{}, fmt.Errorf("failed to load inspection %s: %w", inspectionID, err)
	}
	return in, nil
}

// Inspections lists every known inspection ordered by id.
func (s *Store) Inspections(ctx context.Context) ([]anomaly.Inspection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inspection_no, transformer_no, inspected_date, status, image_url
		FROM inspections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list inspections: %w", err)
	}
	defer rows.Close()

	var out []anomaly.Inspection
	for rows.Next() {
		var in anomaly.Inspection
		if err := rows.Scan(&in.ID, &in.InspectionNo, &in.TransformerNo, &in.InspectedDate, &in.Status, &in.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Create stores a and returns its id. A fresh uuid is generated unless a
// already carries one (imported detections keep their ids).
func (s *Store) Create(ctx context.Context, inspectionID string, a anomaly.Anomaly) (string, error) {
	if !a.Origin.Valid() {
		return "", fmt.Errorf("invalid origin %q", a.Origin)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireInspection(ctx, tx, inspectionID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO anomalies (id, inspection_id, seq, x_center, y_center, width, height, class, confidence, made_by)
			VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM anomalies WHERE inspection_id = ?), ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, inspectionID, inspectionID,
			a.Box.XCenter, a.Box.YCenter, a.Box.Width, a.Box.Height,
			a.Class, a.Confidence, string(a.Origin))
		if err != nil {
			return fmt.Errorf("failed to insert anomaly: %w", err)
		}
		return s.appendLog(ctx, tx, inspectionID, anomaly.ActionAdded, a)
	})
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

// Update replaces the box and class of an anomaly. Confidence and origin are
// left untouched.
func (s *Store) Update(ctx context.Context, inspectionID, id string, box geometry.CenterBox, class string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE anomalies SET x_center = ?, y_center = ?, width = ?, height = ?, class = ?
			WHERE inspection_id = ? AND id = ?`,
			box.XCenter, box.YCenter, box.Width, box.Height, class, inspectionID, id)
		if err != nil {
			return fmt.Errorf("failed to update anomaly: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		a, err := getAnomaly(ctx, tx, inspectionID, id)
		if err != nil {
			return err
		}
		return s.appendLog(ctx, tx, inspectionID, anomaly.ActionEdited, a)
	})
}

// Delete removes an anomaly, logging its last state.
func (s *Store) Delete(ctx context.Context, inspectionID, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		a, err := getAnomaly(ctx, tx, inspectionID, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM anomalies WHERE inspection_id = ? AND id = ?`, inspectionID, id); err != nil {
			return fmt.Errorf("failed to delete anomaly: %w", err)
		}
		return s.appendLog(ctx, tx, inspectionID, anomaly.ActionDeleted, a)
	})
}

// List returns the anomalies of an inspection in creation order. An unknown
// inspection is ErrNotFound; a known one without anomalies is an empty list.
func (s *Store) List(ctx context.Context, inspectionID string) ([]anomaly.Anomaly, error) {
	if err := requireInspection(ctx, s.db, inspectionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, x_center, y_center, width, height, class, confidence, made_by
		FROM anomalies WHERE inspection_id = ? ORDER BY seq`, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}
	defer rows.Close()

	out := []anomaly.Anomaly{}
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Log returns the activity log of an inspection, oldest first.
func (s *Store) Log(ctx context.Context, inspectionID string) ([]anomaly.LogEntry, error) {
	if err := requireInspection(ctx, s.db, inspectionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT log_id, anomaly_id, action, class, confidence, made_by,
		       x_center, y_center, width, height, logged_at
		FROM anomaly_log WHERE inspection_id = ? ORDER BY rowid`, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read activity log: %w", err)
	}
	defer rows.Close()

	out := []anomaly.LogEntry{}
	for rows.Next() {
		var (
			e              anomaly.LogEntry
			action, origin string
			loggedAt       string
		)
		if err := rows.Scan(&e.LogID, &e.AnomalyID, &action, &e.Class, &e.Confidence, &origin,
			&e.Box.XCenter, &e.Box.YCenter, &e.Box.Width, &e.Box.Height, &loggedAt); err != nil {
			return nil, err
		}
		e.Action = anomaly.Action(action)
		e.Origin = anomaly.Origin(origin)
		e.HasBox = true
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, loggedAt); err != nil {
			return nil, fmt.Errorf("log entry %s: bad timestamp %q", e.LogID, loggedAt)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) appendLog(ctx context.Context, tx *sql.Tx, inspectionID string, action anomaly.Action, a anomaly.Anomaly) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO anomaly_log (log_id, inspection_id, anomaly_id, action, class, confidence, made_by,
		                         x_center, y_center, width, height, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), inspectionID, a.ID, string(action), a.Class, a.Confidence, string(a.Origin),
		a.Box.XCenter, a.Box.YCenter, a.Box.Width, a.Box.Height,
		s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append activity log: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func requireInspection(ctx context.Context, q queryer, inspectionID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM inspections WHERE id = ?`, inspectionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func getAnomaly(ctx context.Context, q queryer, inspectionID, id string) (anomaly.Anomaly, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, x_center, y_center, width, height, class, confidence, made_by
		FROM anomalies WHERE inspection_id = ? AND id = ?`, inspectionID, id)
	a, err := scanAnomaly(row)
	if errors.Is(err, sql.ErrNoRows) {
		return anomaly.Anomaly{}, store.ErrNotFound
	}
	return a, err
}

func scanAnomaly(sc scanner) (anomaly.Anomaly, error) {
	var (
		a      anomaly.Anomaly
		origin string
	)
	if err := sc.Scan(&a.ID, &a.Box.XCenter, &a.Box.YCenter, &a.Box.Width, &a.Box.Height, &a.Class, &a.Confidence, &origin); err != nil {
		return anomaly.Anomaly{}, err
	}
	a.Origin = anomaly.Origin(origin)
	return a, nil
}
