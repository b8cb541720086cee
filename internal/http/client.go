package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/sightline-io/sightline-go/internal/auth"
	"github.com/sightline-io/sightline-go/internal/constants"
	"github.com/sightline-io/sightline-go/pkg/sightline"
)

// Logger receives request and response debug lines.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Request is a transport-level request. Body is marshaled to JSON when set.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
}

// Response is a transport-level response with the body fully read.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig enables retries for failed requests. Only transport
// failures, 5xx responses, and 429 responses are retried.
func WithRetryConfig(retryMax int, retryWaitMin, retryWaitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = retryWaitMin
		c.httpClient.RetryWaitMax = retryWaitMax
	}
}

// WithRetryPOST also retries POST and PATCH requests. Off by default
// because a retried registration may be applied twice.
func WithRetryPOST(enabled bool) Option {
	return func(c *Client) {
		c.retryPOST = enabled
	}
}

// WithTimeout sets the timeout applied to each request attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithResponseCache serves repeated GET requests from the cache manager.
// Other methods always go to the wire.
func WithResponseCache(cache *sightline.CacheManager) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// Client is the HTTP transport under the resource clients. It attaches
// authentication, encodes bodies, and maps error responses to typed errors.
type Client struct {
	baseURL      string
	tokenManager auth.TokenManager
	httpClient   *retryablehttp.Client
	logger       Logger
	debug        bool
	userAgent    string
	retryPOST    bool
	cache        *sightline.CacheManager
}

// NewClient creates a transport client for the given base URL. A nil token
// manager sends unauthenticated requests. Retries are off until enabled
// with WithRetryConfig.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout

	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		tokenManager: tokenManager,
		httpClient:   retryClient,
		userAgent:    constants.DefaultUserAgent,
	}

	retryClient.CheckRetry = client.checkRetry

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// SetTransport replaces the underlying round tripper, for TLS settings.
func (c *Client) SetTransport(transport http.RoundTripper) {
	c.httpClient.HTTPClient.Transport = transport
}

// Do sends the request. Responses with an error status are returned
// together with a typed error so callers can inspect both. A 401 triggers
// one token refresh and resend.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	cacheKey := c.cacheKey(req)
	if cacheKey != "" {
		if body, err := c.cache.Get(ctx, cacheKey); err == nil {
			if c.debug && c.logger != nil {
				c.logger.Debug("response cache hit", map[string]interface{}{
					"method": req.Method,
					"path":   req.Path,
				})
			}

			return &Response{StatusCode: http.StatusOK, Body: body}, nil
		}
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.tokenManager != nil {
		if refreshErr := c.tokenManager.RefreshToken(ctx); refreshErr == nil {
			retried, retryErr := c.send(ctx, req)
			if retryErr != nil {
				return nil, retryErr
			}

			resp = retried
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return resp, statusError(resp)
	}

	if cacheKey != "" && resp.StatusCode == http.StatusOK {
		_ = c.cache.Set(ctx, cacheKey, resp.Body, c.cache.TTLFor(req.Path))
	}

	return resp, nil
}

// cacheKey returns the cache key for the request, or an empty string when
// the request is not cacheable.
func (c *Client) cacheKey(req *Request) string {
	if c.cache == nil || req.Method != http.MethodGet {
		return ""
	}

	var params map[string]string

	if len(req.Query) > 0 {
		params = make(map[string]string, len(req.Query))
		for key, values := range req.Query {
			params[key] = strings.Join(values, ",")
		}
	}

	return c.cache.GetCacheKey(req.Method, req.Path, params)
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post sends a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put sends a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch sends a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// send performs one round trip and reads the body.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var rawBody interface{}

	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}

		rawBody = encoded
	}

	// The method travels in the context so checkRetry can see it even when
	// the attempt failed before a response existed.
	httpReq, err := retryablehttp.NewRequestWithContext(
		context.WithValue(ctx, requestMethodKey{}, req.Method), req.Method, fullURL, rawBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if err := c.setHeaders(ctx, httpReq, req); err != nil {
		return nil, err
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    fullURL,
		})
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(req.Method, fullURL, err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportError(req.Method, fullURL, err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status_code": httpResp.StatusCode,
			"url":         fullURL,
		})
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}, nil
}

// setHeaders attaches auth, content negotiation, and caller headers.
func (c *Client) setHeaders(ctx context.Context, httpReq *retryablehttp.Request, req *Request) error {
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.tokenManager != nil {
		token, err := c.tokenManager.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("getting token: %w", err)
		}

		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return nil
}

type requestMethodKey struct{}

// checkRetry retries transport failures, 5xx responses, and 429 responses.
// Requests with side effects are excluded unless retryPOST is set.
func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if !c.retryPOST {
		if method, ok := ctx.Value(requestMethodKey{}).(string); ok && !idempotentMethod(method) {
			return false, nil
		}
	}

	if err != nil {
		return true, nil
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}

	return false, nil
}

func idempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// statusError maps an error response to the typed error for its status.
func statusError(resp *Response) error {
	detail := parseErrorDetail(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &sightline.NotFoundError{Detail: detail}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &sightline.ServiceUnavailableError{StatusCode: resp.StatusCode, Detail: detail}
	default:
		return &sightline.ClientRequestError{StatusCode: resp.StatusCode, Detail: detail}
	}
}

// parseErrorDetail decodes the API error document, tolerating bodies that
// are not error documents.
func parseErrorDetail(body []byte) *sightline.ErrorView {
	if len(body) == 0 {
		return nil
	}

	view, err := sightline.ParseErrorView(body)
	if err != nil || (view.Code == "" && view.Message == "") {
		return nil
	}

	return view
}

// transportError classifies a network-level failure.
func transportError(method, requestURL string, err error) error {
	var netErr net.Error

	timeout := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())

	return &sightline.TransportError{
		Op:      method,
		URL:     requestURL,
		Err:     err,
		Timeout: timeout,
	}
}
