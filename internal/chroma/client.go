package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"
)

// ErrCollectionNotFound is returned when a named collection does not exist
var ErrCollectionNotFound = errors.New("collection not found")

// APIError is a non-2xx response from the server
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, strings.TrimSpace(e.Body))
}

// notFound covers both the v2 404 and older servers that answer
// "Collection x does not exist" with a 4xx/5xx.
func (e *APIError) notFound() bool {
	return e.StatusCode == http.StatusNotFound || strings.Contains(e.Body, "does not exist")
}

// Collection is a named set of records
type Collection struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Client talks to the ChromaDB v2 REST API
type Client struct {
	baseURL    string
	tenant     string
	database   string
	httpClient *http.Client
}

// Option customises a Client
type Option func(*Client)

// WithTenant selects the tenant and database
func WithTenant(tenant, database string) Option {
	return func(c *Client) {
		if tenant != "" {
			c.tenant = tenant
		}
		if database != "" {
			c.database = database
		}
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tenant:   DefaultTenant,
		database: DefaultDatabase,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Heartbeat returns the server clock in nanoseconds
func (c *Client) Heartbeat(ctx context.Context) (int64, error) {
	var resp struct {
		Nanos int64 `json:"nanosecond heartbeat"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v2/heartbeat", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Nanos, nil
}

// Version returns the server version string
func (c *Client) Version(ctx context.Context) (string, error) {
	var version string
	if err := c.do(ctx, http.MethodGet, "/api/v2/version", nil, &version); err != nil {
		return "", err
	}
	return version, nil
}

// ListCollections returns every collection in the database
func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	var collections []Collection
	if err := c.do(ctx, http.MethodGet, c.collectionsPath(), nil, &collections); err != nil {
		return nil, err
	}
	return collections, nil
}

// GetCollection looks a collection up by name
func (c *Client) GetCollection(ctx context.Context, name string) (*Collection, error) {
	var col Collection
	if err := c.do(ctx, http.MethodGet, c.collectionPath(name), nil, &col); err != nil {
		return nil, wrapNotFound(err, name)
	}
	return &col, nil
}

// CreateCollection creates a new collection; it fails if the name is taken
func (c *Client) CreateCollection(ctx context.Context, name string, metadata map[string]interface{}) (*Collection, error) {
	body := map[string]interface{}{
		"name":          name,
		"get_or_create": false,
	}
	if len(metadata) > 0 {
		body["metadata"] = metadata
	}

	var col Collection
	if err := c.do(ctx, http.MethodPost, c.collectionsPath(), body, &col); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	return &col, nil
}

// DeleteCollection removes a collection by name
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if err := c.do(ctx, http.MethodDelete, c.collectionPath(name), nil, nil); err != nil {
		return wrapNotFound(err, name)
	}
	return nil
}

// Count returns the number of records in a collection
func (c *Client) Count(ctx context.Context, collectionID string) (int, error) {
	var n int
	if err := c.do(ctx, http.MethodGet, c.collectionPath(collectionID)+"/count", nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *Client) collectionsPath() string {
	return fmt.Sprintf("/api/v2/tenants/%s/databases/%s/collections",
		url.PathEscape(c.tenant), url.PathEscape(c.database))
}

func (c *Client) collectionPath(nameOrID string) string {
	return c.collectionsPath() + "/" + url.PathEscape(nameOrID)
}

func wrapNotFound(err error, name string) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.notFound() {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return err
}

// do sends a JSON request and decodes a JSON response into out (if not nil)
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}
