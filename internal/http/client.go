// Package http is the HTTP transport shared by connections and services. It
// wraps go-retryablehttp so callers can opt into retries, and keeps the full
// response so raw and meta-aware calls can be built on top of it.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http2"

	"github.com/fivetwenty-io/pryv-client/internal/auth"
	"github.com/fivetwenty-io/pryv-client/internal/constants"
	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Request describes one HTTP exchange. Path is either relative to the
// client's base URL or an absolute URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	// SentAt is taken right before the request is handed to the network.
	SentAt time.Time
}

// NotModified reports a 304 answer to a conditional request.
func (r *Response) NotModified() bool {
	return r.StatusCode == http.StatusNotModified
}

// StreamResponse is a response whose body is left for the caller to consume.
type StreamResponse struct {
	StatusCode int
	Headers    http.Header
	Body       io.ReadCloser
	SentAt     time.Time
}

// Client sends requests relative to a base URL.
type Client struct {
	baseURL      string
	tokenManager auth.TokenManager
	httpClient   *retryablehttp.Client
	logger       Logger
	debug        bool
	userAgent    string
	timeout      time.Duration
	enableHTTP2  bool
	interceptors *pryv.InterceptorChain
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig enables retries on 5xx, 429 and connection errors.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = maxRetries
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient.HTTPClient = httpClient
		}
	}
}

// WithTimeout bounds every request, retries included.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTP2 negotiates HTTP/2 over TLS on the underlying transport.
func WithHTTP2(enable bool) Option {
	return func(c *Client) {
		c.enableHTTP2 = enable
	}
}

// WithInterceptors runs chain around every request.
func WithInterceptors(chain *pryv.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// NewClient creates a client for baseURL. tokenManager may be nil.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.Logger = nil
	// Keep the last response instead of retryablehttp's generic "giving up" error.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.RequestLogHook = stampAttempt

	client := &Client{
		baseURL:      baseURL,
		tokenManager: tokenManager,
		httpClient:   retryClient,
		userAgent:    constants.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.timeout > 0 || client.enableHTTP2 {
		client.ownHTTPClient()
	}

	if client.timeout > 0 {
		client.httpClient.HTTPClient.Timeout = client.timeout
	}

	if client.enableHTTP2 {
		client.configureHTTP2()
	}

	if client.logger != nil && client.debug {
		client.httpClient.Logger = &leveledLogger{logger: client.logger}
	}

	return client
}

// BaseURL returns the URL relative paths are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ownHTTPClient copies the underlying client and its transport so timeout and
// HTTP/2 settings never leak into a client shared with other callers.
func (c *Client) ownHTTPClient() {
	shared := c.httpClient.HTTPClient
	if shared == nil {
		shared = &http.Client{}
	}

	owned := *shared

	if transport, ok := owned.Transport.(*http.Transport); ok {
		owned.Transport = transport.Clone()
	}

	c.httpClient.HTTPClient = &owned
}

func (c *Client) configureHTTP2() {
	transport, ok := c.httpClient.HTTPClient.Transport.(*http.Transport)
	if !ok && c.httpClient.HTTPClient.Transport != nil {
		if c.logger != nil {
			c.logger.Warn("HTTP/2 not enabled: custom transport", nil)
		}

		return
	}

	if !ok {
		defaultTransport, isHTTP := http.DefaultTransport.(*http.Transport)
		if !isHTTP {
			return
		}

		transport = defaultTransport.Clone()
		c.httpClient.HTTPClient.Transport = transport
	}

	if _, registered := transport.TLSNextProto["h2"]; registered {
		return
	}

	err := http2.ConfigureTransport(transport)
	if err != nil && c.logger != nil {
		c.logger.Warn("HTTP/2 not enabled", map[string]interface{}{"error": err.Error()})
	}
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post sends a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Do sends req and reads the whole response. A status >= 400 yields both the
// response and a *pryv.TransportError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, intercepted, err := c.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, sentAt, err := c.send(ctx, httpReq, intercepted)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &pryv.TransportError{
			Method:     intercepted.Method,
			URL:        intercepted.URL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("reading response body: %w", err),
		}
	}

	response := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		SentAt:     sentAt,
	}

	err = c.afterResponse(ctx, intercepted, response.StatusCode, response.Headers, body)
	if err != nil {
		return response, err
	}

	return response, statusError(intercepted, response.StatusCode, body)
}

// DoStream sends req and hands back the open body. The caller must close it.
// A status >= 400 is read, closed and returned as a *pryv.TransportError.
func (c *Client) DoStream(ctx context.Context, req *Request) (*StreamResponse, error) {
	httpReq, intercepted, err := c.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, sentAt, err := c.send(ctx, httpReq, intercepted)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()

		_ = c.afterResponse(ctx, intercepted, httpResp.StatusCode, httpResp.Header, body)

		return nil, statusError(intercepted, httpResp.StatusCode, body)
	}

	err = c.afterResponse(ctx, intercepted, httpResp.StatusCode, httpResp.Header, nil)
	if err != nil {
		_ = httpResp.Body.Close()

		return nil, err
	}

	return &StreamResponse{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       httpResp.Body,
		SentAt:     sentAt,
	}, nil
}

func (c *Client) prepare(ctx context.Context, req *Request) (*retryablehttp.Request, *pryv.Request, error) {
	fullURL, err := c.resolveURL(req.Path, req.Query)
	if err != nil {
		return nil, nil, &pryv.TransportError{Method: req.Method, URL: req.Path, Err: err}
	}

	var body []byte

	switch typed := req.Body.(type) {
	case nil:
	case []byte:
		body = typed
	case json.RawMessage:
		body = typed
	default:
		body, err = json.Marshal(typed)
		if err != nil {
			return nil, nil, &pryv.TransportError{
				Method: req.Method,
				URL:    fullURL,
				Err:    fmt.Errorf("encoding request body: %w", err),
			}
		}
	}

	intercepted := &pryv.Request{
		Method:  req.Method,
		URL:     fullURL,
		Headers: make(http.Header),
		Body:    body,
	}

	intercepted.Headers.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	intercepted.Headers.Set(constants.HeaderUserAgent, c.userAgent)

	if body != nil {
		intercepted.Headers.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}

	if c.tokenManager != nil {
		token, tokenErr := c.tokenManager.GetToken(ctx)
		if tokenErr != nil {
			return nil, nil, fmt.Errorf("getting token: %w", tokenErr)
		}

		if token != "" {
			intercepted.Headers.Set(constants.HeaderAuthorization, token)
		}
	}

	for key, value := range req.Headers {
		intercepted.Headers.Set(key, value)
	}

	if c.interceptors != nil {
		err = c.interceptors.ExecuteRequestInterceptors(ctx, intercepted)
		if err != nil {
			return nil, nil, &pryv.TransportError{Method: req.Method, URL: fullURL, Err: err}
		}
	}

	var rawBody interface{}
	if intercepted.Body != nil {
		rawBody = intercepted.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, intercepted.Method, intercepted.URL, rawBody)
	if err != nil {
		return nil, nil, &pryv.TransportError{Method: req.Method, URL: fullURL, Err: err}
	}

	httpReq.Header = intercepted.Headers.Clone()

	return httpReq, intercepted, nil
}

func (c *Client) send(ctx context.Context, httpReq *retryablehttp.Request, intercepted *pryv.Request) (*http.Response, time.Time, error) {
	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": intercepted.Method,
			"url":    intercepted.URL,
		})
	}

	clock := &attemptClock{sentAt: time.Now()}
	httpReq = httpReq.WithContext(context.WithValue(httpReq.Context(), attemptClockKey{}, clock))

	httpResp, err := c.httpClient.Do(httpReq)
	sentAt := clock.sentAt

	if err != nil {
		transportErr := &pryv.TransportError{Method: intercepted.Method, URL: intercepted.URL, Err: err}

		if c.interceptors != nil {
			_ = c.interceptors.ExecuteResponseInterceptors(ctx, intercepted, &pryv.Response{Error: transportErr})
		}

		return nil, sentAt, transportErr
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"method":      intercepted.Method,
			"url":         intercepted.URL,
			"status_code": httpResp.StatusCode,
			"duration":    time.Since(sentAt).String(),
		})
	}

	return httpResp, sentAt, nil
}

type attemptClockKey struct{}

// attemptClock records when the latest attempt of a request went out.
// retryablehttp runs attempts sequentially on the caller's goroutine.
type attemptClock struct {
	sentAt time.Time
}

func stampAttempt(_ retryablehttp.Logger, req *http.Request, _ int) {
	if clock, ok := req.Context().Value(attemptClockKey{}).(*attemptClock); ok {
		clock.sentAt = time.Now()
	}
}

func (c *Client) afterResponse(ctx context.Context, req *pryv.Request, status int, headers http.Header, body []byte) error {
	if c.interceptors == nil {
		return nil
	}

	resp := &pryv.Response{StatusCode: status, Headers: headers, Body: body}
	if status >= http.StatusBadRequest {
		resp.Error = statusError(req, status, body)
	}

	err := c.interceptors.ExecuteResponseInterceptors(ctx, req, resp)
	if err != nil {
		return &pryv.TransportError{Method: req.Method, URL: req.URL, StatusCode: status, Body: body, Err: err}
	}

	return nil
}

func (c *Client) resolveURL(path string, query url.Values) (string, error) {
	target := path
	if !strings.Contains(path, "://") {
		target = strings.TrimSuffix(c.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing request URL: %w", err)
	}

	if len(query) > 0 {
		values := parsed.Query()

		for key, items := range query {
			for _, item := range items {
				values.Add(key, item)
			}
		}

		parsed.RawQuery = values.Encode()
	}

	return parsed.String(), nil
}

func statusError(req *pryv.Request, status int, body []byte) error {
	if status < http.StatusBadRequest {
		return nil
	}

	transportErr := &pryv.TransportError{
		Method:     req.Method,
		URL:        req.URL,
		StatusCode: status,
		Body:       body,
	}

	if apiErr := pryv.ParseResponseError(body); apiErr != nil {
		transportErr.Err = apiErr
	}

	return &statusFailure{TransportError: transportErr}
}

// statusFailure marks the error describing a status >= 400, as opposed to a
// failure raised while handling the response.
type statusFailure struct {
	*pryv.TransportError
}

func (e *statusFailure) Unwrap() error {
	return e.TransportError
}

// IsStatusError reports whether err describes nothing but an error status.
func IsStatusError(err error) bool {
	var failure *statusFailure

	return errors.As(err, &failure)
}

// leveledLogger adapts Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger Logger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, toFields(keysAndValues))
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, toFields(keysAndValues))
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, toFields(keysAndValues))
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, toFields(keysAndValues))
}

func toFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return fields
}
