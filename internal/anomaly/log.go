package anomaly

import (
	"fmt"
	"strings"
	"time"

	"thermal-annotator/pkg/geometry"
)

// Action is the kind of change recorded in the activity log.
type Action string

const (
	ActionAdded   Action = "added"
	ActionEdited  Action = "edited"
	ActionDeleted Action = "deleted"
)

// ParseAction accepts the canonical action names and the short forms older
// records use (add, edit, update, delete, remove).
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "added", "add", "created", "create":
		return ActionAdded, nil
	case "edited", "edit", "updated", "update":
		return ActionEdited, nil
	case "deleted", "delete", "removed", "remove":
		return ActionDeleted, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// LogEntry is one activity log record, a snapshot of the anomaly at the time
// of the change.
type LogEntry struct {
	LogID      string
	AnomalyID  string
	Class      string
	Action     Action
	Origin     Origin
	Confidence float64
	Box        geometry.CenterBox
	HasBox     bool
	Timestamp  time.Time
}

// NewLogEntry snapshots a for the given action.
func NewLogEntry(action Action, a Anomaly, at time.Time) LogEntry {
	return LogEntry{
		AnomalyID:  a.ID,
		Class:      a.Class,
		Action:     action,
		Origin:     a.Origin,
		Confidence: a.Confidence,
		Box:        a.Box,
		HasBox:     true,
		Timestamp:  at,
	}
}

// Inspection is the metadata of one thermal inspection that the annotator
// needs: the report header and where to load the image from.
type Inspection struct {
	ID            string
	InspectionNo  string
	TransformerNo string
	InspectedDate string
	Status        string
	ImageURL      string
}
