package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client posts messages to a running engine's bridge.
type Client struct {
	base   string
	client *http.Client
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets a custom logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the default client (2s timeout).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// NewClient targets the bridge at baseURL, e.g. "http://127.0.0.1:7788".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: 2 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send delivers msg and reports any failure.
func (c *Client) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bridge: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/message", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bridge: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge: post: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("bridge: %s returned HTTP %d", c.base, resp.StatusCode)
	}
	return nil
}

// Notify sends reloadSettings. Delivery is best effort: with no engine
// listening the failure is logged and dropped.
func (c *Client) Notify(ctx context.Context) {
	if err := c.Send(ctx, Message{Action: ActionReloadSettings}); err != nil {
		c.logger.Warn("bridge: reload notification not delivered", "target", c.base, "error", err)
	}
}

// NotifyConfigurationChanged makes a Client usable as a settings.Notifier.
func (c *Client) NotifyConfigurationChanged() {
	c.Notify(context.Background())
}
