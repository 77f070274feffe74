package constants

import "errors"

// Configuration errors.
var (
	ErrNoServiceInfoURL  = errors.New("no service info URL configured, use --service-info-url or 'pryv config set service_info_url <url>'")
	ErrNoAPIEndpoint     = errors.New("no API endpoint configured, use --api or 'pryv login'")
	ErrUnknownConfigKey  = errors.New("unknown configuration key")
	ErrAPIConfigNotFound = errors.New("API configuration not found")
)

// Authentication errors.
var (
	ErrNotAuthenticated = errors.New("not authenticated. Use 'pryv login' to authenticate first")
)

// Validation errors.
var (
	ErrInvalidQueryParam = errors.New("invalid query parameter, expected key=value")
	ErrInvalidCallsFile  = errors.New("calls file must contain a JSON array of {method, params}")
)

// File system errors.
var (
	ErrNotRegularFile = errors.New("path is not a regular file")
)
