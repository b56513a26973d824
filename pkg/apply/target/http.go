package target

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient talks to a target's management API over HTTP. The read endpoint
// returns the full configuration snapshot; the write endpoint accepts one
// operation per call.
type HTTPClient struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// HTTPClientConfig configures an HTTP target client.
type HTTPClientConfig struct {
	// Name is the target identifier ("opnsense", "ziti", "flexiwan").
	Name string

	// BaseURL is the management API root, e.g. "http://localhost:8081".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds each individual API call. Default: 15 seconds.
	Timeout time.Duration
}

// NewHTTPClient creates a client for one target's management API.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("target name cannot be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("invalid base URL %q for target %s", cfg.BaseURL, cfg.Name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Name implements Client.
func (c *HTTPClient) Name() string { return c.name }

// ReadState implements Client. It fetches /config/state and decodes the
// snapshot. Partial or malformed responses fail the read; the caller decides
// what to do with an unreachable target.
func (c *HTTPClient) ReadState(ctx context.Context) (State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/config/state", nil)
	if err != nil {
		return State{}, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return State{}, fmt.Errorf("read state from %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return State{}, fmt.Errorf("read state from %s: status %d: %s", c.name, resp.StatusCode, body)
	}

	var payload struct {
		Items map[string]string `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return State{}, fmt.Errorf("decode state from %s: %w", c.name, err)
	}
	if payload.Items == nil {
		payload.Items = make(map[string]string)
	}
	return State{Items: payload.Items}, nil
}

// Apply implements Client. Each operation kind maps to its own HTTP method
// on the /config/items endpoint.
func (c *HTTPClient) Apply(ctx context.Context, op Operation) error {
	var method string
	switch op.Kind {
	case "add":
		method = http.MethodPost
	case "modify":
		method = http.MethodPut
	case "remove":
		method = http.MethodDelete
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}

	body, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("encode operation %s %s/%s: %w", op.Kind, op.Resource, op.Name, err)
	}

	endpoint := fmt.Sprintf("%s/config/items/%s/%s", c.baseURL,
		url.PathEscape(op.Resource), url.PathEscape(op.Name))
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s/%s on %s: %w", op.Kind, op.Resource, op.Name, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s/%s on %s: status %d: %s",
			op.Kind, op.Resource, op.Name, c.name, resp.StatusCode, respBody)
	}
	return nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
