// Package api serves inspection records and anomaly edits over HTTP on top
// of a store backend. It is the service the rest backend talks to.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/store"
)

// Server exposes a store.Store. Log and inspection metadata are served when
// the backend implements the optional store interfaces.
type Server struct {
	store store.Store
}

func NewServer(s store.Store) *Server {
	return &Server{store: s}
}

// Handler returns the API routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.ServeMux())
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/inspections/{id}", s.getInspection)
	mux.HandleFunc("GET /api/inspections/{id}/anomalies", s.listAnomalies)
	mux.HandleFunc("POST /api/inspections/{id}/anomalies", s.createAnomaly)
	mux.HandleFunc("PUT /api/inspections/{id}/anomalies/{aid}", s.updateAnomaly)
	mux.HandleFunc("DELETE /api/inspections/{id}/anomalies/{aid}", s.deleteAnomaly)
	mux.HandleFunc("GET /api/inspections/{id}/anomalies/log", s.anomalyLog)
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lrw.statusCode,
			"duration_ms", float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps backend errors to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	slog.Error("Store call failed", "error", err)
	writeJSONError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) getInspection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	info := anomaly.Inspection{ID: id}
	if is, ok := s.store.(store.InspectionStore); ok {
		var err error
		if info, err = is.Inspection(ctx, id); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	list, err := s.store.List(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var log []anomaly.LogEntry
	if ls, ok := s.store.(store.LogStore); ok {
		if log, err = ls.Log(ctx, id); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	rec, err := anomaly.NewInspectionRecord(info, list, log)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) listAnomalies(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, anomaly.EncodeList(list))
}

func (s *Server) anomalyLog(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.store.(store.LogStore)
	if !ok {
		writeJSONError(w, http.StatusNotImplemented, "activity log not supported by this backend")
		return
	}
	log, err := ls.Log(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]anomaly.WireLogEntry, 0, len(log))
	for _, e := range log {
		out = append(out, anomaly.EncodeLogEntry(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeAnomaly(r *http.Request) (anomaly.Anomaly, error) {
	var req anomaly.Wire
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return anomaly.Anomaly{}, fmt.Errorf("invalid JSON: %v", err)
	}
	// Clients never choose ids.
	req.ID = ""
	return anomaly.DecodeWire(0, req)
}

func (s *Server) createAnomaly(w http.ResponseWriter, r *http.Request) {
	a, err := decodeAnomaly(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.store.Create(r.Context(), r.PathValue("id"), a)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	a.ID = id
	writeJSON(w, http.StatusCreated, anomaly.EncodeWire(a))
}

func (s *Server) updateAnomaly(w http.ResponseWriter, r *http.Request) {
	a, err := decodeAnomaly(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	aid := r.PathValue("aid")
	if err := s.store.Update(r.Context(), r.PathValue("id"), aid, a.Box, a.Class); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteAnomaly(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), r.PathValue("id"), r.PathValue("aid")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
