// Package report renders inspection anomaly reports: a plain text summary
// with the activity log, and an HTML chart of per-class counts.
package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"thermal-annotator/internal/anomaly"
)

const rule = "=============================="

// ClassStat summarises one anomaly class.
type ClassStat struct {
	Class          string
	Count          int
	MeanConfidence float64
	StdConfidence  float64
}

// Summarize groups the non-Normal anomalies by class, ordered by count then
// class name.
func Summarize(list []anomaly.Anomaly) []ClassStat {
	byClass := make(map[string][]float64)
	for _, a := range list {
		if a.Normal() {
			continue
		}
		byClass[a.Class] = append(byClass[a.Class], a.Confidence)
	}
	out := make([]ClassStat, 0, len(byClass))
	for class, confs := range byClass {
		mean, std := stat.MeanStdDev(confs, nil)
		if len(confs) < 2 {
			std = 0
		}
		out = append(out, ClassStat{Class: class, Count: len(confs), MeanConfidence: mean, StdConfidence: std})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Class < out[j].Class
	})
	return out
}

// FileName is the download name of a text report, e.g.
// "anomalies-INS-001-2025-03-14.txt".
func FileName(in anomaly.Inspection, now time.Time) string {
	id := in.InspectionNo
	if id == "" {
		id = in.ID
	}
	return fmt.Sprintf("anomalies-%s-%s.txt", id, now.UTC().Format("2006-01-02"))
}

// WriteText writes the inspection anomalies report. Normal anomalies and
// their log entries are left out.
func WriteText(w io.Writer, in anomaly.Inspection, list []anomaly.Anomaly, log []anomaly.LogEntry, now time.Time) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) { fmt.Fprintf(bw, format, args...) }

	p("Inspection Anomalies Report\n%s\n\n", rule)
	p("Inspection No: %s\n", orNA(in.InspectionNo))
	p("Transformer No: %s\n", orNA(in.TransformerNo))
	p("Inspection Date: %s\n", orNA(in.InspectedDate))
	p("Status: %s\n", orNA(in.Status))
	p("Generated: %s\n\n", now.Format("02/01/2006, 15:04:05"))

	p("%s\nCURRENT ANOMALIES\n%s\n\n", rule, rule)
	n := 0
	for _, a := range list {
		if a.Normal() {
			continue
		}
		n++
		p("Anomaly #%d\n", n)
		p("  ID: %s\n", orNA(a.ID))
		p("  Class: %s\n", a.Class)
		p("  Confidence: %.2f%%\n", a.Confidence*100)
		p("  Made By: %s\n", a.Origin)
		p("  Bounding Box: %s\n\n", formatBox(a.Box.Array()))
	}
	if n == 0 {
		p("No current anomalies detected.\n\n")
	}

	if stats := Summarize(list); len(stats) > 0 {
		p("%s\nSUMMARY\n%s\n\n", rule, rule)
		for _, s := range stats {
			p("  %s: %d (mean confidence %.2f%%)\n", s.Class, s.Count, s.MeanConfidence*100)
		}
		p("\n")
	}

	p("%s\nACTIVITY LOG\n%s\n\n", rule, rule)
	n = 0
	for _, e := range log {
		if anomaly.IsNormal(e.Class) {
			continue
		}
		n++
		p("Log Entry #%d\n", n)
		p("  Anomaly ID: %s\n", orNA(e.AnomalyID))
		p("  Class: %s\n", orUnknown(e.Class))
		p("  Action: %s\n", orNA(string(e.Action)))
		p("  Made By: %s\n", orUnknown(string(e.Origin)))
		p("  Confidence: %.2f%%\n", e.Confidence*100)
		if e.HasBox {
			p("  Bounding Box: %s\n", formatBox(e.Box.Array()))
		} else {
			p("  Bounding Box: [N/A]\n")
		}
		p("  Timestamp: %s\n\n", formatTimestamp(e.Timestamp))
	}
	if n == 0 {
		p("No activity log entries.\n\n")
	}
	return bw.Flush()
}

func formatBox(v [4]float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%.2f", f)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02 Jan 2006, 15:04")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
