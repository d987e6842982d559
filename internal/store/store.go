// Package store is the persistence adapter between the annotation engine and
// the inspection record store. Backends live in subpackages.
package store

import (
	"context"
	"errors"
	"fmt"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/pkg/geometry"
)

// ErrNotFound is returned when an inspection or anomaly does not exist.
var ErrNotFound = errors.New("not found")

// Store is the minimal record-store contract the engine needs. Boxes are
// center form in natural image pixels.
type Store interface {
	Create(ctx context.Context, inspectionID string, a anomaly.Anomaly) (string, error)
	Update(ctx context.Context, inspectionID, id string, box geometry.CenterBox, class string) error
	Delete(ctx context.Context, inspectionID, id string) error
	List(ctx context.Context, inspectionID string) ([]anomaly.Anomaly, error)
}

// LogStore is implemented by backends that keep the activity log.
type LogStore interface {
	Log(ctx context.Context, inspectionID string) ([]anomaly.LogEntry, error)
}

// InspectionStore is implemented by backends that can describe an
// inspection (report header, image location).
type InspectionStore interface {
	Inspection(ctx context.Context, inspectionID string) (anomaly.Inspection, error)
}

// Op names a store operation in errors.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpList   Op = "list"
	OpLog    Op = "log"
)

// PersistenceError reports a failed store call. The local edit is kept; the
// caller is expected to refetch.
type PersistenceError struct {
	Op           Op
	InspectionID string
	AnomalyID    string
	Err          error
}

func (e *PersistenceError) Error() string {
	if e.AnomalyID != "" {
		return fmt.Sprintf("%s anomaly %s of inspection %s: %v", e.Op, e.AnomalyID, e.InspectionID, e.Err)
	}
	return fmt.Sprintf("%s anomaly of inspection %s: %v", e.Op, e.InspectionID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Wrap returns err as a *PersistenceError, leaving nil and already wrapped
// errors alone.
func Wrap(op Op, inspectionID, anomalyID string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, InspectionID: inspectionID, AnomalyID: anomalyID, Err: err}
}
