// Package rest is a Store backend that talks to the inspection record
// service over HTTP.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/store"
	"thermal-annotator/pkg/geometry"
)

// HTTPClient is the subset of *http.Client the backend uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPError is a non-2xx response other than 404.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// Client implements store.Store against the record service.
type Client struct {
	base *url.URL
	http HTTPClient
}

var (
	_ store.Store           = (*Client)(nil)
	_ store.LogStore        = (*Client)(nil)
	_ store.InspectionStore = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// New returns a client for the service at baseURL, e.g.
// "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API URL %q: scheme must be http or https", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.base.String() + "/api/inspections/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return store.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, target, err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

// Record fetches the full inspection record.
func (c *Client) Record(ctx context.Context, inspectionID string) (anomaly.InspectionRecord, error) {
	var rec anomaly.InspectionRecord
	err := c.do(ctx, http.MethodGet, c.endpoint(inspectionID), nil, &rec)
	return rec, err
}

// Inspection returns the metadata of an inspection.
func (c *Client) Inspection(ctx context.Context, inspectionID string) (anomaly.Inspection, error) {
	rec, err := c.Record(ctx, inspectionID)
	if err != nil {
		return anomaly.Inspection{}, err
	}
	return rec.Info(), nil
}

// List fetches the inspection record and decodes its anomalies. Malformed
// records are skipped, not returned as errors.
func (c *Client) List(ctx context.Context, inspectionID string) ([]anomaly.Anomaly, error) {
	rec, err := c.Record(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	list, _, err := anomaly.DecodeList(rec.Anomalies)
	return list, err
}

// Log fetches the inspection record and decodes its activity log.
func (c *Client) Log(ctx context.Context, inspectionID string) ([]anomaly.LogEntry, error) {
	rec, err := c.Record(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	log, _, err := anomaly.DecodeLogList(rec.AnomaliesLog)
	return log, err
}

// Create posts a new anomaly and returns the id the service assigned.
func (c *Client) Create(ctx context.Context, inspectionID string, a anomaly.Anomaly) (string, error) {
	body := anomaly.EncodeWire(a)
	body.ID = ""
	var created anomaly.Wire
	if err := c.do(ctx, http.MethodPost, c.endpoint(inspectionID, "anomalies"), body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("create response carried no id")
	}
	return string(created.ID), nil
}

// Update sends the new box and class of an anomaly.
func (c *Client) Update(ctx context.Context, inspectionID, id string, box geometry.CenterBox, class string) error {
	arr := box.Array()
	body := anomaly.Wire{Box: arr[:], Class: &class}
	return c.do(ctx, http.MethodPut, c.endpoint(inspectionID, "anomalies", id), body, nil)
}

// Delete removes an anomaly.
func (c *Client) Delete(ctx context.Context, inspectionID, id string) error {
	return c.do(ctx, http.MethodDelete, c.endpoint(inspectionID, "anomalies", id), nil, nil)
}
