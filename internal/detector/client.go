// Package detector is a typed client for the max detector's HTTP API.
//
// Every operation runs under its own timeout and returns either its payload
// or a *Failure. The client never retries; retry policy belongs to the
// caller's refresh loop.
package detector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout comfortably exceeds the ~2s a detector scan can block
	// its HTTP server.
	DefaultTimeout = 5 * time.Second

	// DefaultIdentifierField is the BSSID position in the firmware's
	// (ssid, bssid, channel, rssi) scan tuples.
	DefaultIdentifierField = 1

	maxBodyBytes = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	IdentifierField int
	HTTPClient      *http.Client
}

// Client talks to one detector.
type Client struct {
	base    *url.URL
	timeout time.Duration
	idField int
	http    *http.Client
}

// New creates a Client. BaseURL must be an absolute http(s) URL.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("detector: base URL required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("detector: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("detector: unsupported scheme %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, errors.New("detector: base URL has no host")
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.IdentifierField < 0 {
		cfg.IdentifierField = DefaultIdentifierField
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		base:    base,
		timeout: cfg.Timeout,
		idField: cfg.IdentifierField,
		http:    hc,
	}, nil
}

// BaseURL returns the detector's base URL.
func (c *Client) BaseURL() string { return c.base.String() }

// Status returns the detector's running, silent and alarm flags.
func (c *Client) Status(ctx context.Context) (Status, error) {
	const op = "status"
	body, err := c.do(ctx, op, http.MethodGet, "/api/status", nil)
	if err != nil {
		return Status{}, err
	}
	s, err := decodeStatus(body)
	if err != nil {
		return Status{}, malformedFailure(op, err)
	}
	return s, nil
}

// Networks returns the networks seen by the detector's last scan.
func (c *Client) Networks(ctx context.Context) ([]Network, error) {
	const op = "scan result"
	body, err := c.do(ctx, op, http.MethodGet, "/api/scan/result", nil)
	if err != nil {
		return nil, err
	}
	nets, err := decodeNetworks(body, c.idField)
	if err != nil {
		return nil, malformedFailure(op, err)
	}
	return nets, nil
}

// Targets returns the detector's persisted target identifiers in device order.
func (c *Client) Targets(ctx context.Context) ([]string, error) {
	const op = "targets"
	body, err := c.do(ctx, op, http.MethodGet, "/api/target", nil)
	if err != nil {
		return nil, err
	}
	targets, err := decodeTargets(body)
	if err != nil {
		return nil, malformedFailure(op, err)
	}
	return targets, nil
}

// Memory returns the detector's heap statistics.
func (c *Client) Memory(ctx context.Context) (Memory, error) {
	const op = "memory"
	body, err := c.do(ctx, op, http.MethodGet, "/api/memory", nil)
	if err != nil {
		return Memory{}, err
	}
	m, err := decodeMemory(body)
	if err != nil {
		return Memory{}, malformedFailure(op, err)
	}
	return m, nil
}

// StartScan asks the detector to start scanning. The detector decides
// whether a transition happens; starting a running detector is not an error.
func (c *Client) StartScan(ctx context.Context) error {
	return c.post(ctx, "start scan", "/api/scan", url.Values{"scan": {"on"}})
}

// StopScan asks the detector to stop scanning.
func (c *Client) StopScan(ctx context.Context) error {
	return c.post(ctx, "stop scan", "/api/scan", url.Values{"scan": {"off"}})
}

// SetSilent enables or disables silent mode.
func (c *Client) SetSilent(ctx context.Context, on bool) error {
	return c.post(ctx, "set silent", "/api/silent", url.Values{"silent": {onOff(on)}})
}

// AddTarget adds id to the detector's target list.
func (c *Client) AddTarget(ctx context.Context, id string) error {
	return c.post(ctx, "add target", "/api/target", url.Values{"target": {id}})
}

// RemoveTarget removes id from the detector's target list.
func (c *Client) RemoveTarget(ctx context.Context, id string) error {
	_, err := c.do(ctx, "remove target", http.MethodDelete, "/api/target/"+url.PathEscape(id), nil)
	return err
}

func (c *Client) post(ctx context.Context, op, path string, form url.Values) error {
	_, err := c.do(ctx, op, http.MethodPost, path, form)
	return err
}

// do performs one request under the client timeout and returns the body of
// a 2xx response. The body is read inside the deadline so a stalled
// response cannot outlive it.
func (c *Client) do(ctx context.Context, op, method, path string, form url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, transportFailure(op, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportFailure(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, transportFailure(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serverFailure(op, resp.StatusCode)
	}
	if len(data) > maxBodyBytes {
		return nil, malformedFailure(op, fmt.Errorf("body exceeds %d bytes", maxBodyBytes))
	}
	return data, nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
