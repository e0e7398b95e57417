package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bluetray/internal/api"
	"bluetray/internal/device"
)

// apiClient talks to a running daemon.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusServiceUnavailable {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *apiClient) devices(ctx context.Context) ([]device.Record, error) {
	var records []device.Record
	err := c.do(ctx, http.MethodGet, "/api/devices", &records)
	return records, err
}

func (c *apiClient) status(ctx context.Context) (api.StatusResponse, error) {
	var status api.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", &status)
	return status, err
}

// enqueue posts a command and reports whether the daemon queued it.
func (c *apiClient) enqueue(ctx context.Context, path string) (bool, error) {
	var resp api.EnqueueResponse
	if err := c.do(ctx, http.MethodPost, path, &resp); err != nil {
		return false, err
	}
	return resp.Queued, nil
}

func (c *apiClient) refresh(ctx context.Context) (bool, error) {
	return c.enqueue(ctx, "/api/devices/refresh")
}

func (c *apiClient) stopRefresh(ctx context.Context) (bool, error) {
	return c.enqueue(ctx, "/api/devices/refresh/stop")
}

func (c *apiClient) connect(ctx context.Context, addr string) (bool, error) {
	return c.enqueue(ctx, "/api/devices/"+url.PathEscape(addr)+"/connect")
}

func (c *apiClient) disconnect(ctx context.Context, addr string) (bool, error) {
	return c.enqueue(ctx, "/api/devices/"+url.PathEscape(addr)+"/disconnect")
}

// wsURL maps the http(s) base to the daemon's websocket endpoint.
func (c *apiClient) wsURL() (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
