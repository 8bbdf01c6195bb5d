package ideogram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"ideobatch/logging"
)

// DefaultBaseURL is the public Ideogram endpoint.
const DefaultBaseURL = "https://api.ideogram.ai"

// maxErrorBody caps how much of a failed reply is kept on APIError.
const maxErrorBody = 64 * 1024

// Client calls the /generate endpoint with a static Api-Key header.
//
// Client is safe for concurrent use; the dispatcher shares one instance
// across all in-flight jobs.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	requestLog *RequestLog
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host (tests, proxies).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client. Request timeouts live here.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRequestLog appends every request/response pair to log.
func WithRequestLog(log *RequestLog) Option {
	return func(c *Client) { c.requestLog = log }
}

// WithLogger sets the structured logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client. The API key is required.
//
// Example:
//
//	client, err := ideogram.NewClient(settings.IdeogramAPIKey,
//	    ideogram.WithHTTPClient(settings.HTTPClient()))
//	resp, err := client.Generate(ctx, ideogram.DefaultParams().Request("a lighthouse at dusk"))
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ideogram: API key is required")
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate posts req and decodes the reply. A non-2xx status returns
// *APIError carrying the status code and body.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(envelope{ImageRequest: req})
	if err != nil {
		return nil, fmt.Errorf("ideogram: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ideogram: build request: %w", err)
	}
	httpReq.Header.Set("Api-Key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("sending generate request",
		zap.String("model", string(req.Model)),
		zap.Stringer("size", req.Size),
		zap.Int("prompt_len", len(req.Prompt)))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ideogram: send request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: httpResp.StatusCode, Body: string(raw)}
		c.logRequest(req, nil, apiErr)
		return nil, apiErr
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("ideogram: decode response: %w", err)
	}

	for _, img := range resp.Data {
		c.logger.Debug("service echoed prompt",
			zap.Int("echo_len", len(img.Prompt)),
			zap.Int("seed", img.Seed),
			zap.Bool("safe", img.IsImageSafe))
	}

	c.logRequest(req, &resp, nil)
	return &resp, nil
}

// logRequest writes to the request log; a failing log never fails the call.
func (c *Client) logRequest(req Request, resp *Response, apiErr *APIError) {
	if c.requestLog == nil {
		return
	}
	if err := c.requestLog.Append(req, resp, apiErr); err != nil {
		c.logger.Warn("failed to append request log", zap.Error(err))
	}
}
