// Package golive talks to the go-live report backend over HTTP.
package golive

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

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/intility/dadp-mcp-go-live/logging"
	"github.com/intility/dadp-mcp-go-live/metrics"
	"github.com/intility/dadp-mcp-go-live/report"
)

type Client struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	logger    *logrus.Logger
}

type Option func(*Client)

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTransport replaces the round tripper used for every call.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// NewClient returns a client for the backend rooted at baseURL. The timeout
// bounds each call as a whole (connect, send and receive).
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// SubmitReport creates a report on the backend.
func (c *Client) SubmitReport(ctx context.Context, req report.CreateRequest) (*report.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var created report.Report
	if err := c.do(ctx, "submit_report", http.MethodPost, c.baseURL+"/reports", req, &created); err != nil {
		return nil, err
	}
	if err := created.Validate(); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &created, nil
}

// ListReports fetches reports in backend order. An empty status or "all"
// requests every report.
func (c *Client) ListReports(ctx context.Context, status string) ([]report.Report, error) {
	endpoint := c.baseURL + "/reports"
	if status != "" && status != report.FilterAll {
		endpoint += "?" + url.Values{"status": {status}}.Encode()
	}

	var reports []report.Report
	if err := c.do(ctx, "list_reports", http.MethodGet, endpoint, nil, &reports); err != nil {
		return nil, err
	}
	for i := range reports {
		if err := reports[i].Validate(); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("item %d: %w", i, err)}
		}
	}
	if reports == nil {
		reports = []report.Report{}
	}
	return reports, nil
}

func (c *Client) GetReport(ctx context.Context, id string) (*report.Report, error) {
	var r report.Report
	if err := c.do(ctx, "get_report", http.MethodGet, c.baseURL+"/reports/"+url.PathEscape(id), nil, &r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &r, nil
}

// Health checks the backend's /healthz, which lives at the service root
// rather than under the API prefix.
func (c *Client) Health(ctx context.Context) error {
	root := strings.TrimSuffix(c.baseURL, "/api/v1")
	return c.do(ctx, "health", http.MethodGet, root+"/healthz", nil, nil)
}

// do performs one request on a client scoped to this call; its idle
// connections are closed on return so nothing is reused across calls.
func (c *Client) do(ctx context.Context, op, method, endpoint string, in, out any) error {
	start := time.Now()
	requestID := uuid.NewString()
	log := c.logger.WithFields(logrus.Fields{
		"operation":  op,
		"method":     method,
		"url":        endpoint,
		"request_id": requestID,
	})

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	httpClient := c.newHTTPClient()
	defer httpClient.CloseIdleConnections()

	resp, err := httpClient.Do(req)
	if err != nil {
		metrics.ObserveBackend(op, "transport_error", time.Since(start))
		log.WithError(err).Warn("backend request failed")
		return &TransportError{Method: method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveBackend(op, "transport_error", time.Since(start))
		log.WithError(err).Warn("reading backend response failed")
		return &TransportError{Method: method, URL: endpoint, Err: err}
	}

	log = log.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ObserveBackend(op, "http_error", time.Since(start))
		log.Warn("backend returned error status")
		return newHTTPStatusError(method, endpoint, resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			metrics.ObserveBackend(op, "decode_error", time.Since(start))
			log.WithError(err).Warn("backend response did not decode")
			return &DecodeError{Err: err}
		}
	}

	metrics.ObserveBackend(op, "ok", time.Since(start))
	log.Debug("backend request completed")
	return nil
}

func (c *Client) newHTTPClient() *http.Client {
	transport := c.transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	return &http.Client{
		Timeout:   c.timeout,
		Transport: transport,
	}
}
