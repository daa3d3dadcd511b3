package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// SessionHeader carries the grid session id.
const SessionHeader = "X-Grid-Session"

// GridSummary is one grid served by the server.
type GridSummary struct {
	ID     string `json:"id"`
	Entity string `json:"entity"`
}

// HTTPClient implements Caller using the gridpanel HTTP/JSON API, and adds
// the grid listing and config endpoints only that API serves.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client

	mu      sync.Mutex
	session string
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request. session may be empty; the server then
// assigns one on the first request and the client keeps it.
func NewHTTPClient(baseURL, token, session string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		session:    session,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// Session returns the grid session id.
func (c *HTTPClient) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Call runs a grid endpoint.
func (c *HTTPClient) Call(ctx context.Context, gridID, endpoint string, params map[string]any, result any) error {
	if params == nil {
		params = map[string]any{}
	}
	path := "/v1/grids/" + url.PathEscape(gridID) + "/" + url.PathEscape(endpoint)
	return c.doJSON(ctx, http.MethodPost, path, params, result)
}

// ListGrids returns the grids the server exposes.
func (c *HTTPClient) ListGrids(ctx context.Context) ([]GridSummary, error) {
	var resp struct {
		Grids []GridSummary `json:"grids"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/grids", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Grids, nil
}

// --- Config ---

func (c *HTTPClient) SetConfig(ctx context.Context, key string, value json.RawMessage) (*model.Config, error) {
	body := map[string]json.RawMessage{"value": value}
	var cfg model.Config
	if err := c.doJSON(ctx, http.MethodPut, "/v1/configs/"+url.PathEscape(key), body, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	var cfg model.Config
	if err := c.doJSON(ctx, http.MethodGet, "/v1/configs/"+url.PathEscape(key), nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListConfigs returns the configs under namespace, or all of them when
// namespace is empty.
func (c *HTTPClient) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	path := "/v1/configs"
	if namespace != "" {
		path += "?namespace=" + url.QueryEscape(namespace)
	}
	var resp struct {
		Configs []*model.Config `json:"configs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Configs, nil
}

func (c *HTTPClient) DeleteConfig(ctx context.Context, key string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/configs/"+url.PathEscape(key), nil, nil)
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if sess := c.Session(); sess != "" {
		req.Header.Set(SessionHeader, sess)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if sess := resp.Header.Get(SessionHeader); sess != "" {
		c.mu.Lock()
		if c.session == "" {
			c.session = sess
		}
		c.mu.Unlock()
	}

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
