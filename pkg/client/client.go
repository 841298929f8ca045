// Package client talks to a running warden daemon over its HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/warden-sh/warden/internal/controller"
	"github.com/warden-sh/warden/internal/store"
)

// Client provides HTTP client functionality to communicate with the
// warden daemon.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // optional
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8420/api",
		Timeout: 30 * time.Second,
	}
}

// New creates a new daemon API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable reports whether a daemon is listening at the base URL.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("daemon unreachable", "err", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Start asks the daemon to start the service.
func (c *Client) Start(ctx context.Context) error {
	return c.post(ctx, "/start")
}

// Stop asks the daemon to stop the service.
func (c *Client) Stop(ctx context.Context) error {
	return c.post(ctx, "/stop")
}

// Restart asks the daemon to restart the service.
func (c *Client) Restart(ctx context.Context) error {
	return c.post(ctx, "/restart")
}

// Status fetches the current service status.
func (c *Client) Status(ctx context.Context) (controller.Status, error) {
	var st controller.Status
	err := c.getJSON(ctx, "/status", &st)
	return st, err
}

// History fetches the newest lifecycle events, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]store.Event, error) {
	path := "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var events []store.Event
	err := c.getJSON(ctx, path, &events)
	return events, err
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "path", path, "err", err)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return c.handleErrorResponse(resp)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleErrorResponse maps API errors back onto the controller's error
// taxonomy so callers can errors.Is regardless of transport.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode == http.StatusConflict {
		if strings.Contains(er.Error, controller.ErrAlreadyRunning.Error()) {
			return controller.ErrAlreadyRunning
		}
		if strings.Contains(er.Error, controller.ErrNotRunning.Error()) {
			return controller.ErrNotRunning
		}
	}
	c.logger.Debug("api request failed", "status", resp.StatusCode, "err", er.Error)
	return fmt.Errorf("api error: %s", er.Error)
}
