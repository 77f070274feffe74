package pryv

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// MetaClient issues requests whose responses carry meta.serverTime. Every
// successful call feeds the connection's clock-delta estimate.
type MetaClient interface {
	Get(ctx context.Context, path string, query url.Values) (map[string]interface{}, error)
	Post(ctx context.Context, path string, body interface{}, query url.Values) (map[string]interface{}, error)
}

// RawClient issues the same requests without any meta handling.
type RawClient interface {
	GetRaw(ctx context.Context, path string, query url.Values) (*RawResponse, error)
	PostRaw(ctx context.Context, path string, body interface{}, query url.Values) (*RawResponse, error)
}

// BatchClient sends method calls through the batch endpoint.
type BatchClient interface {
	// API sends calls in chunks of at most ChunkSize and returns one result
	// per call, in call order. A failed chunk fails the whole call.
	API(ctx context.Context, calls []MethodCall) ([]interface{}, error)
	ChunkSize() int
	SetChunkSize(size int) error
}

// EventStreamer reads events without buffering the whole response.
type EventStreamer interface {
	// StreamedGetEvent calls onEvent once per event in delivery order and
	// returns the total count once the stream is exhausted.
	StreamedGetEvent(ctx context.Context, query url.Values, onEvent func(Event)) (*StreamResult, error)
}

// Connection is an authenticated handle on one user's API endpoint.
type Connection interface {
	MetaClient
	RawClient
	BatchClient
	EventStreamer

	// DeltaTime is the estimated server time minus client time, in seconds.
	DeltaTime() float64
	// APIEndpoint is the endpoint string with its embedded token.
	APIEndpoint() string
	Endpoint() *APIEndpoint
}

// Service resolves a platform's discovery document and logs users in.
type Service interface {
	Info(ctx context.Context, forceFetch bool) (*ServiceInfo, error)
	InfoSync() *ServiceInfo
	APIEndpointFor(ctx context.Context, username, token string) (*APIEndpoint, error)
	Login(ctx context.Context, username, password, appID, originHeader string) (Connection, error)
	Assets(ctx context.Context, forceFetch bool) (Assets, error)
}

// AssetsLoader builds the asset bundle referenced by assets.definitions.
type AssetsLoader interface {
	LoadAssets(ctx context.Context, definitionsURL string) (Assets, error)
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// TransportConfig holds the HTTP settings shared by connections and services.
type TransportConfig struct {
	// HTTPTimeout bounds a whole request. Zero leaves cancellation to the context.
	HTTPTimeout time.Duration
	// RetryMax is the number of retries for 5xx, 429 and connection errors.
	// Zero, the default, disables retries.
	RetryMax int
	// RetryWaitMin and RetryWaitMax bound the backoff when RetryMax > 0.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Debug enables request/response logging when a Logger is provided.
	Debug bool
	// Logger is an optional structured logger.
	Logger Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// EnableHTTP2 configures the default transport for HTTP/2 over TLS.
	EnableHTTP2 bool
	// HTTPClient replaces the underlying HTTP client.
	HTTPClient *http.Client
	// Interceptors run around every request.
	Interceptors *InterceptorChain
	// Breaker, when set, runs ahead of Interceptors and rejects calls while
	// the platform keeps failing. Connections opened by Service.Login share it.
	Breaker *CircuitBreaker
	// Calls, when set, records per-route statistics after Interceptors.
	Calls *CallRecorder
}

// Config configures a Connection.
type Config struct {
	// APIEndpoint is the user's endpoint, optionally with an embedded token
	// ("https://token@user.example.com/").
	APIEndpoint string
	// Token overrides the token embedded in APIEndpoint.
	Token string
	// ChunkSize is the maximum number of calls per batch request (default 1000).
	ChunkSize int

	TransportConfig
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// ServiceInfoURL is the discovery document URL. It may be empty when
	// Customizations alone describe the platform.
	ServiceInfoURL string
	// Customizations take precedence field by field over the fetched document.
	Customizations *ServiceInfo
	// Cache optionally persists fetched discovery documents across services.
	Cache Cache
	// CacheTTL is the lifetime of persisted documents (default one hour).
	CacheTTL time.Duration
	// AssetsLoader builds asset bundles; the default fetches the definitions as JSON.
	AssetsLoader AssetsLoader
	// ChunkSize is applied to connections returned by Login.
	ChunkSize int

	TransportConfig
}
