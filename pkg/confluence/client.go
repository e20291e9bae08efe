package confluence

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Client is a Confluence REST API client. It is not safe for
// concurrent use; callers needing concurrent searches should create
// independent clients.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
	authHeader string

	// session is the active search's paging state, nil otherwise.
	session *searchSession

	// exhausted distinguishes a finished search from one never started.
	exhausted bool
}

// NewClient creates a Confluence API client with the given
// configuration. The Basic-auth header is computed once and attached
// to every request.
func NewClient(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	var authHeader string
	if config.Username != "" {
		creds := config.Username + ":" + config.APIToken
		authHeader = "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config:     config,
		logger:     logger.With("component", "confluence-client"),
		authHeader: authHeader,
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// requestID generates a unique identifier for request log correlation.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// Query holds request query parameters. Values are percent-encoded
// when the query string is built.
type Query map[string]string

// Get performs a GET request against the given API path.
func (c *Client) Get(ctx context.Context, path string, query Query) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, nil)
}

// Delete performs a DELETE request against the given API path.
func (c *Client) Delete(ctx context.Context, path string, query Query) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, query, nil, nil)
}

// Put performs a PUT request with value marshaled as the JSON body.
// Extra headers override the defaults for this request only.
func (c *Client) Put(ctx context.Context, path string, query Query, value any, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, query, value, headers)
}

// Post performs a POST request with value marshaled as the JSON body.
// Extra headers override the defaults for this request only.
func (c *Client) Post(ctx context.Context, path string, query Query, value any, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, query, value, headers)
}

// do performs a single HTTP round trip and decodes the response.
func (c *Client) do(ctx context.Context, method, path string, query Query, value any, headers map[string]string) (*Response, error) {
	u, err := c.buildURL(path, query)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if value != nil {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}
	req.Header.Set("Accept", "application/json")
	if value != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	reqID := requestID()
	logger := c.logger.With("request_id", reqID, "method", method, "url", u)
	logger.Debug("sending request")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	contentType := httpResp.Header.Get("Content-Type")
	logger.Debug("received response", "status", httpResp.StatusCode, "content_type", contentType, "bytes", len(respBody))

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		kind := classifyPayload(contentType)
		return nil, &RequestError{
			StatusCode: httpResp.StatusCode,
			Message:    kind.errorMessage(contentType, respBody),
		}
	}

	return decodeResponse(httpResp.StatusCode, contentType, respBody)
}

// buildURL joins the base URL, path and encoded query string.
func (c *Client) buildURL(path string, query Query) (string, error) {
	if c.config.BaseURL == "" {
		return "", fmt.Errorf("no base URL configured")
	}

	u := strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) == 0 {
		return u, nil
	}

	values := make(url.Values, len(query))
	for k, v := range query {
		values.Set(k, v)
	}
	return u + "?" + values.Encode(), nil
}
