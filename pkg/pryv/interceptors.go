package pryv

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fivetwenty-io/pryv-client/internal/constants"
)

// Request is the outgoing call as seen by interceptors. Request interceptors
// may rewrite headers and body before it is sent.
type Request struct {
	Method   string
	URL      string
	Headers  http.Header
	Body     []byte
	Metadata map[string]interface{}
}

// Response is what came back for a Request. StatusCode is 0 when no
// response was received, in which case Error holds the transport failure.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Error      error
}

// RequestInterceptor runs before a request is sent. An error aborts the call.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor runs once the call has completed or failed.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// InterceptorChain runs interceptors in the order they were added. A nil
// chain runs nothing.
type InterceptorChain struct {
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

// NewInterceptorChain returns an empty chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// JoinInterceptorChains returns a chain running every chain in turn. Nil
// chains are skipped.
func JoinInterceptorChains(chains ...*InterceptorChain) *InterceptorChain {
	joined := NewInterceptorChain()

	for _, chain := range chains {
		if chain == nil {
			continue
		}

		joined.requestInterceptors = append(joined.requestInterceptors, chain.requestInterceptors...)
		joined.responseInterceptors = append(joined.responseInterceptors, chain.responseInterceptors...)
	}

	return joined
}

// AddRequestInterceptor appends interceptor.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.requestInterceptors = append(c.requestInterceptors, interceptor)
}

// AddResponseInterceptor appends interceptor.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.responseInterceptors = append(c.responseInterceptors, interceptor)
}

// ExecuteRequestInterceptors stops at the first failing interceptor.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *Request) error {
	if c == nil {
		return nil
	}

	for _, interceptor := range c.requestInterceptors {
		err := interceptor(ctx, req)
		if err != nil {
			return fmt.Errorf("request interceptor failed: %w", err)
		}
	}

	return nil
}

// ExecuteResponseInterceptors stops at the first failing interceptor.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *Request, resp *Response) error {
	if c == nil {
		return nil
	}

	for _, interceptor := range c.responseInterceptors {
		err := interceptor(ctx, req, resp)
		if err != nil {
			return fmt.Errorf("response interceptor failed: %w", err)
		}
	}

	return nil
}

// LoggingInterceptor logs each outgoing call with its request id.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		logger.Debug("API Request", callFields(req))

		return nil
	}
}

// LoggingResponseInterceptor logs each completed call. Failed calls are
// logged as errors with the platform error id when the body carries one.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		fields := callFields(req)
		fields["status_code"] = resp.StatusCode
		fields["bytes"] = len(resp.Body)

		if resp.Error == nil {
			logger.Debug("API Response", fields)

			return nil
		}

		fields["error"] = resp.Error.Error()

		if apiErr := ParseResponseError(resp.Body); apiErr != nil {
			fields["error_id"] = apiErr.ID
		}

		logger.Error("API Response Error", fields)

		return nil
	}
}

func callFields(req *Request) map[string]interface{} {
	fields := map[string]interface{}{
		"method": req.Method,
		"url":    req.URL,
	}

	if id := req.Headers.Get(constants.HeaderRequestID); id != "" {
		fields["request_id"] = id
	}

	return fields
}

// HeaderInterceptor sets headers on every request.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		for key, value := range headers {
			req.Headers.Set(key, value)
		}

		return nil
	}
}

// RequestIDInterceptor tags each request with a random X-Request-Id unless
// one is already set, so client and server logs can be correlated.
func RequestIDInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		if req.Headers.Get(constants.HeaderRequestID) == "" {
			req.Headers.Set(constants.HeaderRequestID, uuid.NewString())
		}

		return nil
	}
}

// Route identifies calls for statistics: the method and the URL without its
// query, so "GET https://tom.pryv.me/events?limit=1" counts as
// "GET https://tom.pryv.me/events".
func Route(method, rawURL string) string {
	path, _, _ := strings.Cut(rawURL, "?")

	return method + " " + path
}

// CallStats aggregates the calls made on one route.
type CallStats struct {
	Calls    int64
	Failures int64
	Total    time.Duration
	Slowest  time.Duration
	Last     time.Time
}

// Average is the mean call duration.
func (s CallStats) Average() time.Duration {
	if s.Calls == 0 {
		return 0
	}

	return s.Total / time.Duration(s.Calls)
}

// CallRecorder keeps per-route call statistics. Install it on the chain of a
// connection or service to observe every call they make.
type CallRecorder struct {
	mutex  sync.Mutex
	routes map[string]*CallStats
	onCall func(route string, stats CallStats)
}

// NewCallRecorder returns an empty recorder.
func NewCallRecorder() *CallRecorder {
	return &CallRecorder{routes: make(map[string]*CallStats)}
}

// OnCall registers fn to receive the updated statistics after each call.
func (r *CallRecorder) OnCall(fn func(route string, stats CallStats)) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.onCall = fn
}

// Install adds the recorder to chain.
func (r *CallRecorder) Install(chain *InterceptorChain) {
	chain.AddRequestInterceptor(func(ctx context.Context, req *Request) error {
		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata[constants.MetadataCallStarted] = time.Now()

		return nil
	})

	chain.AddResponseInterceptor(func(ctx context.Context, req *Request, resp *Response) error {
		r.record(req, resp)

		return nil
	})
}

func (r *CallRecorder) record(req *Request, resp *Response) {
	route := Route(req.Method, req.URL)

	r.mutex.Lock()

	stats, ok := r.routes[route]
	if !ok {
		stats = &CallStats{}
		r.routes[route] = stats
	}

	stats.Calls++
	stats.Last = time.Now()

	if started, ok := req.Metadata[constants.MetadataCallStarted].(time.Time); ok {
		elapsed := stats.Last.Sub(started)
		stats.Total += elapsed
		stats.Slowest = max(stats.Slowest, elapsed)
	}

	if resp.Error != nil || resp.StatusCode >= http.StatusBadRequest {
		stats.Failures++
	}

	snapshot := *stats
	onCall := r.onCall

	r.mutex.Unlock()

	if onCall != nil {
		onCall(route, snapshot)
	}
}

// Stats returns the statistics of route, as built by Route.
func (r *CallRecorder) Stats(route string) (CallStats, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stats, ok := r.routes[route]
	if !ok {
		return CallStats{}, false
	}

	return *stats, true
}

// Routes lists the recorded routes in sorted order.
func (r *CallRecorder) Routes() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	routes := make([]string, 0, len(r.routes))
	for route := range r.routes {
		routes = append(routes, route)
	}

	sort.Strings(routes)

	return routes
}

// BreakerState is the state of a CircuitBreaker.
type BreakerState int

const (
	// BreakerClosed lets every call through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown has elapsed.
	BreakerOpen
	// BreakerHalfOpen lets a single trial call through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int
	// Cooldown is how long an open breaker rejects calls.
	Cooldown time.Duration
	// SuccessThreshold is the number of successful trials that closes it again.
	SuccessThreshold int
}

// CircuitBreaker stops calling a platform that keeps failing. A call fails
// when no response arrives or the status is 5xx; platform errors such as
// 4xx answers prove the platform is up and count as successes.
type CircuitBreaker struct {
	mutex       sync.Mutex
	config      CircuitBreakerConfig
	state       BreakerState
	failures    int
	successes   int
	openedAt    time.Time
	trialActive bool
	trialAt     time.Time
}

// NewCircuitBreaker returns a closed breaker. Zero config fields take the
// package defaults.
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	breaker := &CircuitBreaker{
		config: CircuitBreakerConfig{
			Threshold:        constants.CircuitBreakerThreshold,
			Cooldown:         constants.CircuitBreakerCooldown,
			SuccessThreshold: constants.CircuitBreakerSuccessThreshold,
		},
	}

	if config != nil {
		if config.Threshold > 0 {
			breaker.config.Threshold = config.Threshold
		}

		if config.Cooldown > 0 {
			breaker.config.Cooldown = config.Cooldown
		}

		if config.SuccessThreshold > 0 {
			breaker.config.SuccessThreshold = config.SuccessThreshold
		}
	}

	return breaker
}

// State returns the current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.state
}

// Install adds the breaker to chain. Install it first so rejected calls
// never reach the other interceptors.
func (b *CircuitBreaker) Install(chain *InterceptorChain) {
	chain.AddRequestInterceptor(func(ctx context.Context, req *Request) error {
		trial, err := b.admit()
		if err != nil {
			return err
		}

		if trial {
			if req.Metadata == nil {
				req.Metadata = make(map[string]interface{})
			}

			req.Metadata[constants.MetadataBreakerTrial] = true
		}

		return nil
	})

	chain.AddResponseInterceptor(func(ctx context.Context, req *Request, resp *Response) error {
		trial, _ := req.Metadata[constants.MetadataBreakerTrial].(bool)
		failed := (resp.Error != nil && resp.StatusCode == 0) || resp.StatusCode >= http.StatusInternalServerError

		b.record(trial, failed)

		return nil
	})
}

// admit reports whether the call may go out and whether it is the trial
// call of a half-open breaker. A trial that never reports back is replaced
// after one cooldown.
func (b *CircuitBreaker) admit() (bool, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := time.Now()

	switch b.state {
	case BreakerOpen:
		remaining := b.config.Cooldown - now.Sub(b.openedAt)
		if remaining > 0 {
			return false, fmt.Errorf("%w: retry in %s", ErrCircuitBreakerOpen, remaining.Round(time.Millisecond))
		}

		b.state = BreakerHalfOpen
		b.successes = 0
	case BreakerHalfOpen:
		if b.trialActive && now.Sub(b.trialAt) < b.config.Cooldown {
			return false, fmt.Errorf("%w: trial call in progress", ErrCircuitBreakerOpen)
		}
	case BreakerClosed:
		return false, nil
	}

	b.trialActive = true
	b.trialAt = now

	return true, nil
}

func (b *CircuitBreaker) record(trial, failed bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if trial {
		b.trialActive = false
	}

	if failed {
		b.failures++
		if b.state == BreakerHalfOpen || b.failures >= b.config.Threshold {
			b.state = BreakerOpen
			b.openedAt = time.Now()
		}

		return
	}

	switch b.state {
	case BreakerHalfOpen:
		if !trial {
			return
		}

		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = BreakerClosed
			b.failures = 0
		}
	case BreakerClosed:
		b.failures = 0
	case BreakerOpen:
	}
}
