package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as service discovery.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits. Retries are disabled unless the caller sets a RetryMax.
const (
	// DefaultRetryMax is the number of retries performed when none is configured.
	DefaultRetryMax = 0

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Batch call limits.
const (
	// DefaultChunkSize is the maximum number of method calls sent in one batch request.
	DefaultChunkSize = 1000
)

// Cache settings.
const (
	// DefaultCacheSize is the maximum number of entries held by the memory cache.
	DefaultCacheSize = 100

	// DefaultServiceInfoTTL is how long a persisted discovery document stays usable.
	DefaultServiceInfoTTL = 1 * time.Hour

	// DefaultNATSBucket is the JetStream key-value bucket used for discovery documents.
	DefaultNATSBucket = "pryv_service_info"

	// ServiceInfoKeyPrefix prefixes discovery document cache keys.
	ServiceInfoKeyPrefix = "serviceinfo."
)

// Platform paths and placeholders.
const (
	// UsernamePlaceholder is substituted in the service info api URL.
	UsernamePlaceholder = "{username}"

	// LoginPath is appended to a user's endpoint to authenticate.
	LoginPath = "auth/login"

	// EventsPath lists events relative to a user's endpoint.
	EventsPath = "events"
)

// HTTP header names and values.
const (
	HeaderAuthorization = "Authorization"
	HeaderAccept        = "Accept"
	HeaderContentType   = "Content-Type"
	HeaderOrigin        = "Origin"
	HeaderUserAgent     = "User-Agent"
	HeaderAllowOrigin   = "Access-Control-Allow-Origin"
	HeaderRequestID     = "X-Request-Id"
	HeaderIfNoneMatch   = "If-None-Match"
	HeaderETag          = "ETag"

	ContentTypeJSON = "application/json"
	AllowAnyOrigin  = "*"

	DefaultUserAgent = "pryv-client-go"
)

// UI and display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"
)

// Format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"
)

// Circuit breaker defaults.
const (
	CircuitBreakerThreshold        = 5
	CircuitBreakerCooldown         = 30 * time.Second
	CircuitBreakerSuccessThreshold = 2
)

// Interceptor metadata keys.
const (
	MetadataCallStarted  = "call_started"
	MetadataBreakerTrial = "breaker_trial"
)
