package pryv_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

var errRejected = errors.New("rejected")

type capturingLogger struct {
	messages []string
}

func (l *capturingLogger) Debug(msg string, fields map[string]interface{}) {
	l.messages = append(l.messages, "debug:"+msg)
}

func (l *capturingLogger) Info(msg string, fields map[string]interface{}) {
	l.messages = append(l.messages, "info:"+msg)
}

func (l *capturingLogger) Warn(msg string, fields map[string]interface{}) {
	l.messages = append(l.messages, "warn:"+msg)
}

func (l *capturingLogger) Error(msg string, fields map[string]interface{}) {
	l.messages = append(l.messages, "error:"+msg)
}

func TestInterceptorChain_RequestInterceptors(t *testing.T) {
	t.Parallel()

	chain := pryv.NewInterceptorChain()
	ctx := context.Background()

	var executionOrder []string

	chain.AddRequestInterceptor(func(ctx context.Context, req *pryv.Request) error {
		executionOrder = append(executionOrder, "first")

		return nil
	})

	chain.AddRequestInterceptor(func(ctx context.Context, req *pryv.Request) error {
		executionOrder = append(executionOrder, "second")

		return nil
	})

	req := &pryv.Request{
		Method: "GET",
		URL:    "https://tom.pryv.me/events",
	}

	err := chain.ExecuteRequestInterceptors(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, executionOrder)
}

func TestInterceptorChain_StopsOnError(t *testing.T) {
	t.Parallel()

	chain := pryv.NewInterceptorChain()
	called := false

	chain.AddRequestInterceptor(func(ctx context.Context, req *pryv.Request) error {
		return errRejected
	})

	chain.AddRequestInterceptor(func(ctx context.Context, req *pryv.Request) error {
		called = true

		return nil
	})

	err := chain.ExecuteRequestInterceptors(context.Background(), &pryv.Request{Method: "GET"})
	require.ErrorIs(t, err, errRejected)
	assert.False(t, called)
}

func TestInterceptorChain_ResponseInterceptors(t *testing.T) {
	t.Parallel()

	chain := pryv.NewInterceptorChain()
	ctx := context.Background()

	var executionOrder []string

	chain.AddResponseInterceptor(func(ctx context.Context, req *pryv.Request, resp *pryv.Response) error {
		executionOrder = append(executionOrder, "first")

		return nil
	})

	chain.AddResponseInterceptor(func(ctx context.Context, req *pryv.Request, resp *pryv.Response) error {
		executionOrder = append(executionOrder, "second")

		return nil
	})

	err := chain.ExecuteResponseInterceptors(ctx, &pryv.Request{Method: "GET"}, &pryv.Response{StatusCode: 200})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, executionOrder)
}

func TestHeaderInterceptor(t *testing.T) {
	t.Parallel()

	interceptor := pryv.HeaderInterceptor(map[string]string{
		"X-Custom-Header": "custom-value",
		"X-Request-ID":    "123456",
	})

	req := &pryv.Request{Method: "GET", URL: "https://tom.pryv.me/events"}

	err := interceptor(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "custom-value", req.Headers.Get("X-Custom-Header"))
	assert.Equal(t, "123456", req.Headers.Get("X-Request-ID"))
}

func TestRequestIDInterceptor(t *testing.T) {
	t.Parallel()

	interceptor := pryv.RequestIDInterceptor()
	ctx := context.Background()

	first := &pryv.Request{Method: "GET", URL: "https://tom.pryv.me/events"}
	second := &pryv.Request{Method: "GET", URL: "https://tom.pryv.me/events"}

	require.NoError(t, interceptor(ctx, first))
	require.NoError(t, interceptor(ctx, second))

	id := first.Headers.Get("X-Request-Id")
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, second.Headers.Get("X-Request-Id"))

	preset := &pryv.Request{Headers: http.Header{"X-Request-Id": {"given"}}}
	require.NoError(t, interceptor(ctx, preset))
	assert.Equal(t, "given", preset.Headers.Get("X-Request-Id"))
}

func TestLoggingInterceptors(t *testing.T) {
	t.Parallel()

	logger := &capturingLogger{}
	ctx := context.Background()
	req := &pryv.Request{Method: "GET", URL: "https://tom.pryv.me/events"}

	require.NoError(t, pryv.LoggingInterceptor(logger)(ctx, req))
	require.NoError(t, pryv.LoggingResponseInterceptor(logger)(ctx, req, &pryv.Response{StatusCode: 200}))
	require.NoError(t, pryv.LoggingResponseInterceptor(logger)(ctx, req, &pryv.Response{StatusCode: 500, Error: errRejected}))

	assert.Equal(t, []string{"debug:API Request", "debug:API Response", "error:API Response Error"}, logger.messages)
}

func TestJoinInterceptorChains(t *testing.T) {
	t.Parallel()

	var order []string

	appendStep := func(step string) pryv.RequestInterceptor {
		return func(ctx context.Context, req *pryv.Request) error {
			order = append(order, step)

			return nil
		}
	}

	first := pryv.NewInterceptorChain()
	first.AddRequestInterceptor(appendStep("breaker"))

	second := pryv.NewInterceptorChain()
	second.AddRequestInterceptor(appendStep("caller"))

	joined := pryv.JoinInterceptorChains(first, nil, second)
	require.NoError(t, joined.ExecuteRequestInterceptors(context.Background(), &pryv.Request{}))
	assert.Equal(t, []string{"breaker", "caller"}, order)

	var nilChain *pryv.InterceptorChain

	require.NoError(t, nilChain.ExecuteRequestInterceptors(context.Background(), &pryv.Request{}))
	require.NoError(t, nilChain.ExecuteResponseInterceptors(context.Background(), &pryv.Request{}, &pryv.Response{}))
}

func TestLoggingResponseInterceptor_PlatformError(t *testing.T) {
	t.Parallel()

	var fields map[string]interface{}

	logger := &fieldLogger{record: func(f map[string]interface{}) { fields = f }}
	req := &pryv.Request{
		Method:  "GET",
		URL:     "https://tom.pryv.me/events",
		Headers: http.Header{"X-Request-Id": {"req-1"}},
	}

	err := pryv.LoggingResponseInterceptor(logger)(context.Background(), req, &pryv.Response{
		StatusCode: 403,
		Body:       []byte(`{"error":{"id":"forbidden","message":"Access denied"}}`),
		Error:      errRejected,
	})
	require.NoError(t, err)
	assert.Equal(t, "forbidden", fields["error_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, 403, fields["status_code"])
}

type fieldLogger struct {
	record func(fields map[string]interface{})
}

func (l *fieldLogger) Debug(msg string, fields map[string]interface{}) { l.record(fields) }
func (l *fieldLogger) Info(msg string, fields map[string]interface{})  { l.record(fields) }
func (l *fieldLogger) Warn(msg string, fields map[string]interface{})  { l.record(fields) }
func (l *fieldLogger) Error(msg string, fields map[string]interface{}) { l.record(fields) }

func TestRoute(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "GET https://tom.pryv.me/events", pryv.Route("GET", "https://tom.pryv.me/events?limit=1"))
	assert.Equal(t, "POST https://tom.pryv.me/", pryv.Route("POST", "https://tom.pryv.me/"))
}

func TestCallRecorder(t *testing.T) {
	t.Parallel()

	recorder := pryv.NewCallRecorder()
	chain := pryv.NewInterceptorChain()
	recorder.Install(chain)

	var (
		notifiedRoute string
		notifiedStats pryv.CallStats
	)

	recorder.OnCall(func(route string, stats pryv.CallStats) {
		notifiedRoute = route
		notifiedStats = stats
	})

	ctx := context.Background()
	req := &pryv.Request{Method: "GET", URL: "https://tom.pryv.me/events?limit=10"}

	require.NoError(t, chain.ExecuteRequestInterceptors(ctx, req))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, chain.ExecuteResponseInterceptors(ctx, req, &pryv.Response{StatusCode: 200}))

	assert.Equal(t, "GET https://tom.pryv.me/events", notifiedRoute)
	assert.Equal(t, int64(1), notifiedStats.Calls)
	assert.Equal(t, int64(0), notifiedStats.Failures)
	assert.Positive(t, notifiedStats.Average())
	assert.GreaterOrEqual(t, notifiedStats.Slowest, 10*time.Millisecond)

	other := &pryv.Request{Method: "GET", URL: "https://tom.pryv.me/events?limit=1"}
	require.NoError(t, chain.ExecuteRequestInterceptors(ctx, other))
	require.NoError(t, chain.ExecuteResponseInterceptors(ctx, other, &pryv.Response{StatusCode: 500}))

	stats, ok := recorder.Stats("GET https://tom.pryv.me/events")
	require.True(t, ok)
	assert.Equal(t, int64(2), stats.Calls)
	assert.Equal(t, int64(1), stats.Failures)

	_, ok = recorder.Stats("POST https://tom.pryv.me/")
	assert.False(t, ok)
	assert.Equal(t, []string{"GET https://tom.pryv.me/events"}, recorder.Routes())
	assert.Equal(t, time.Duration(0), pryv.CallStats{}.Average())
}

// breakerCall runs one call through chain and reports the outcome status.
func breakerCall(t *testing.T, chain *pryv.InterceptorChain, status int) error {
	t.Helper()

	ctx := context.Background()
	req := &pryv.Request{Method: "GET", URL: "https://tom.pryv.me/events"}

	err := chain.ExecuteRequestInterceptors(ctx, req)
	if err != nil {
		return err
	}

	require.NoError(t, chain.ExecuteResponseInterceptors(ctx, req, &pryv.Response{StatusCode: status}))

	return nil
}

func TestCircuitBreaker(t *testing.T) {
	t.Parallel()

	breaker := pryv.NewCircuitBreaker(&pryv.CircuitBreakerConfig{
		Threshold:        2,
		Cooldown:         100 * time.Millisecond,
		SuccessThreshold: 1,
	})
	chain := pryv.NewInterceptorChain()
	breaker.Install(chain)

	require.NoError(t, breakerCall(t, chain, 200))
	assert.Equal(t, pryv.BreakerClosed, breaker.State())

	require.NoError(t, breakerCall(t, chain, 500))
	require.NoError(t, breakerCall(t, chain, 502))
	assert.Equal(t, pryv.BreakerOpen, breaker.State())

	err := breakerCall(t, chain, 200)
	require.ErrorIs(t, err, pryv.ErrCircuitBreakerOpen)
	assert.Contains(t, err.Error(), "retry in")

	time.Sleep(150 * time.Millisecond)

	require.NoError(t, breakerCall(t, chain, 200))
	assert.Equal(t, pryv.BreakerClosed, breaker.State())
	assert.Equal(t, "closed", breaker.State().String())
}

func TestCircuitBreaker_SingleTrial(t *testing.T) {
	t.Parallel()

	breaker := pryv.NewCircuitBreaker(&pryv.CircuitBreakerConfig{Threshold: 1, Cooldown: 50 * time.Millisecond})
	chain := pryv.NewInterceptorChain()
	breaker.Install(chain)

	require.NoError(t, breakerCall(t, chain, 503))
	assert.Equal(t, pryv.BreakerOpen, breaker.State())

	time.Sleep(80 * time.Millisecond)

	ctx := context.Background()
	trial := &pryv.Request{Method: "GET", URL: "https://tom.pryv.me/events"}
	require.NoError(t, chain.ExecuteRequestInterceptors(ctx, trial))
	assert.Equal(t, pryv.BreakerHalfOpen, breaker.State())

	err := chain.ExecuteRequestInterceptors(ctx, &pryv.Request{Method: "GET", URL: "https://tom.pryv.me/streams"})
	require.ErrorIs(t, err, pryv.ErrCircuitBreakerOpen)

	require.NoError(t, chain.ExecuteResponseInterceptors(ctx, trial, &pryv.Response{Error: errRejected}))
	assert.Equal(t, pryv.BreakerOpen, breaker.State())
}

func TestCircuitBreaker_PlatformErrorsKeepItClosed(t *testing.T) {
	t.Parallel()

	breaker := pryv.NewCircuitBreaker(nil)
	chain := pryv.NewInterceptorChain()
	breaker.Install(chain)

	for range 10 {
		require.NoError(t, breakerCall(t, chain, 403))
	}

	assert.Equal(t, pryv.BreakerClosed, breaker.State())

	for range 4 {
		require.NoError(t, breakerCall(t, chain, 503))
	}

	assert.Equal(t, pryv.BreakerClosed, breaker.State())

	require.NoError(t, breakerCall(t, chain, 503))
	assert.Equal(t, pryv.BreakerOpen, breaker.State())
	assert.Equal(t, "open", breaker.State().String())
}
