package anomaly

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"thermal-annotator/pkg/geometry"
)

// Wire is the stored/transported form of an anomaly. Box is always center
// form, [xCenter, yCenter, width, height], in natural image pixels.
type Wire struct {
	ID         WireID    `json:"id,omitempty"`
	Box        []float64 `json:"box"`
	Class      *string   `json:"class"`
	Confidence *float64  `json:"confidence,omitempty"`
	MadeBy     string    `json:"madeBy,omitempty"`
}

// WireID accepts either a JSON string or a JSON number and always encodes
// as a string.
type WireID string

func (id *WireID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = WireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = WireID(n.String())
	return nil
}

// DecodeError describes a stored record rejected at the boundary. The
// record is excluded from the collection.
type DecodeError struct {
	Index  int
	ID     string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("decode anomaly %d (id %s): %s", e.Index, e.ID, e.Reason)
	}
	return fmt.Sprintf("decode anomaly %d: %s", e.Index, e.Reason)
}

// DecodeWire validates one wire record and converts it. index is only used
// for error reporting.
func DecodeWire(index int, w Wire) (Anomaly, error) {
	fail := func(format string, args ...any) (Anomaly, error) {
		return Anomaly{}, &DecodeError{Index: index, ID: string(w.ID), Reason: fmt.Sprintf(format, args...)}
	}

	box, err := decodeBox(w.Box)
	if err != nil {
		return fail("%v", err)
	}
	if w.Class == nil || strings.TrimSpace(*w.Class) == "" {
		return fail("missing class")
	}

	conf := 1.0
	if w.Confidence != nil {
		conf = *w.Confidence
		if math.IsNaN(conf) || conf < 0 || conf > 1 {
			return fail("confidence %v outside [0,1]", conf)
		}
	}

	origin := OriginAI
	if w.MadeBy != "" {
		origin, err = ParseOrigin(w.MadeBy)
		if err != nil {
			return fail("%v", err)
		}
	}

	return Anomaly{
		ID:         string(w.ID),
		Box:        box,
		Class:      *w.Class,
		Confidence: conf,
		Origin:     origin,
	}, nil
}

func decodeBox(v []float64) (geometry.CenterBox, error) {
	if v == nil {
		return geometry.CenterBox{}, fmt.Errorf("missing box")
	}
	if len(v) != 4 {
		return geometry.CenterBox{}, fmt.Errorf("box has %d components, want 4", len(v))
	}
	box := geometry.CenterBoxFromArray([4]float64(v))
	if !box.Valid() {
		return geometry.CenterBox{}, fmt.Errorf("box %v is not a finite center-form box", v)
	}
	return box, nil
}

// ParseOrigin maps a madeBy string to an Origin, ignoring case.
func ParseOrigin(s string) (Origin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ai":
		return OriginAI, nil
	case "user":
		return OriginUser, nil
	}
	return "", fmt.Errorf("unknown madeBy %q", s)
}

// EncodeWire converts an anomaly to its wire form.
func EncodeWire(a Anomaly) Wire {
	arr := a.Box.Array()
	class := a.Class
	conf := a.Confidence
	return Wire{
		ID:         WireID(a.ID),
		Box:        arr[:],
		Class:      &class,
		Confidence: &conf,
		MadeBy:     string(a.Origin),
	}
}

// EncodeList converts a slice of anomalies to wire form. A nil input yields
// an empty, non-nil slice so it encodes as [].
func EncodeList(list []Anomaly) []Wire {
	out := make([]Wire, 0, len(list))
	for _, a := range list {
		out = append(out, EncodeWire(a))
	}
	return out
}

// unwrapEmbedded returns the JSON array held in raw. Stored records carry
// list fields either as a JSON array or as a string containing one.
func unwrapEmbedded(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil, nil
	}
	return json.RawMessage(s), nil
}

// DecodeList decodes a list field that may be a JSON array or a string
// holding one. Malformed records are logged and skipped; their errors are
// returned in rejected. err is non-nil only when the container itself
// cannot be parsed.
func DecodeList(raw json.RawMessage) (list []Anomaly, rejected []error, err error) {
	body, err := unwrapEmbedded(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("decode anomalies: %w", err)
	}
	if body == nil {
		return []Anomaly{}, nil, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, nil, fmt.Errorf("decode anomalies: %w", err)
	}

	list = make([]Anomaly, 0, len(records))
	for i, rec := range records {
		var w Wire
		if err := json.Unmarshal(rec, &w); err != nil {
			derr := &DecodeError{Index: i, Reason: err.Error()}
			slog.Warn("Skipping malformed anomaly record", "index", i, "error", derr)
			rejected = append(rejected, derr)
			continue
		}
		a, err := DecodeWire(i, w)
		if err != nil {
			slog.Warn("Skipping malformed anomaly record", "index", i, "id", string(w.ID), "error", err)
			rejected = append(rejected, err)
			continue
		}
		list = append(list, a)
	}
	return list, rejected, nil
}

// WireLogEntry is the wire form of an activity log entry. ID is the
// anomaly id, matching the stored log format.
type WireLogEntry struct {
	LogID      WireID    `json:"logId,omitempty"`
	ID         WireID    `json:"id,omitempty"`
	Class      string    `json:"class"`
	Action     string    `json:"action"`
	MadeBy     string    `json:"madeBy,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Box        []float64 `json:"box,omitempty"`
	Timestamp  string    `json:"timestamp,omitempty"`
}

// EncodeLogEntry converts a log entry to wire form.
func EncodeLogEntry(e LogEntry) WireLogEntry {
	w := WireLogEntry{
		LogID:  WireID(e.LogID),
		ID:     WireID(e.AnomalyID),
		Class:  e.Class,
		Action: string(e.Action),
		MadeBy: string(e.Origin),
	}
	conf := e.Confidence
	w.Confidence = &conf
	if e.HasBox {
		arr := e.Box.Array()
		w.Box = arr[:]
	}
	if !e.Timestamp.IsZero() {
		w.Timestamp = e.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return w
}

// DecodeLogEntry validates one wire log entry. A missing box is allowed; a
// present one must be well formed.
func DecodeLogEntry(index int, w WireLogEntry) (LogEntry, error) {
	fail := func(format string, args ...any) (LogEntry, error) {
		return LogEntry{}, &DecodeError{Index: index, ID: string(w.ID), Reason: fmt.Sprintf(format, args...)}
	}

	action, err := ParseAction(w.Action)
	if err != nil {
		return fail("%v", err)
	}
	e := LogEntry{
		LogID:      string(w.LogID),
		AnomalyID:  string(w.ID),
		Class:      w.Class,
		Action:     action,
		Origin:     OriginAI,
		Confidence: 1,
	}
	if w.MadeBy != "" {
		if e.Origin, err = ParseOrigin(w.MadeBy); err != nil {
			return fail("%v", err)
		}
	}
	if w.Confidence != nil {
		e.Confidence = *w.Confidence
	}
	if w.Box != nil {
		if e.Box, err = decodeBox(w.Box); err != nil {
			return fail("%v", err)
		}
		e.HasBox = true
	}
	if w.Timestamp != "" {
		ts, err := parseTimestamp(w.Timestamp)
		if err != nil {
			return fail("timestamp %q: %v", w.Timestamp, err)
		}
		e.Timestamp = ts
	}
	return e, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return ts, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised time format")
}

// DecodeLogList decodes an activity log field (array or string-encoded
// array), skipping malformed entries the same way DecodeList does.
func DecodeLogList(raw json.RawMessage) ([]LogEntry, []error, error) {
	body, err := unwrapEmbedded(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("decode anomaly log: %w", err)
	}
	if body == nil {
		return []LogEntry{}, nil, nil
	}
	var records []WireLogEntry
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, nil, fmt.Errorf("decode anomaly log: %w", err)
	}

	var rejected []error
	out := make([]LogEntry, 0, len(records))
	for i, w := range records {
		e, err := DecodeLogEntry(i, w)
		if err != nil {
			slog.Warn("Skipping malformed anomaly log entry", "index", i, "error", err)
			rejected = append(rejected, err)
			continue
		}
		out = append(out, e)
	}
	return out, rejected, nil
}

// InspectionRecord is the wire form of an inspection as served by the
// record store. Field names follow the store's JSON.
type InspectionRecord struct {
	ID             WireID          `json:"id"`
	InspectionNo   string          `json:"inspectionNumber,omitempty"`
	TransformerNo  string          `json:"transformerNumber,omitempty"`
	InspectionDate string          `json:"inspectionDate,omitempty"`
	Status         string          `json:"status,omitempty"`
	ImageURL       string          `json:"imageUrl,omitempty"`
	Anomalies      json.RawMessage `json:"anomalies,omitempty"`
	AnomaliesLog   json.RawMessage `json:"anomaliesLog,omitempty"`
}

// Info returns the inspection metadata carried by the record.
func (r InspectionRecord) Info() Inspection {
	return Inspection{
		ID:            string(r.ID),
		InspectionNo:  r.InspectionNo,
		TransformerNo: r.TransformerNo,
		InspectedDate: r.InspectionDate,
		Status:        r.Status,
		ImageURL:      r.ImageURL,
	}
}

// NewInspectionRecord builds the wire record for an inspection together with
// its anomalies and log.
func NewInspectionRecord(info Inspection, list []Anomaly, log []LogEntry) (InspectionRecord, error) {
	anomalies, err := json.Marshal(EncodeList(list))
	if err != nil {
		return InspectionRecord{}, err
	}
	entries := make([]WireLogEntry, 0, len(log))
	for _, e := range log {
		entries = append(entries, EncodeLogEntry(e))
	}
	logJSON, err := json.Marshal(entries)
	if err != nil {
		return InspectionRecord{}, err
	}
	return InspectionRecord{
		ID:             WireID(info.ID),
		InspectionNo:   info.InspectionNo,
		TransformerNo:  info.TransformerNo,
		InspectionDate: info.InspectedDate,
		Status:         info.Status,
		ImageURL:       info.ImageURL,
		Anomalies:      anomalies,
		AnomaliesLog:   logJSON,
	}, nil
}
