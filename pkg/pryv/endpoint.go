package pryv

import (
	"fmt"
	"net/url"
	"strings"
)

// APIEndpoint is a user's API base URL split from the credential embedded in it.
// Endpoint always ends with "/"; an empty Token means no credential.
type APIEndpoint struct {
	Endpoint string `json:"endpoint"        yaml:"endpoint"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
}

// String returns the single-string form, e.g. "https://token@user.pryv.me/".
func (e *APIEndpoint) String() string {
	built, err := BuildAPIEndpoint(e.Endpoint, e.Token)
	if err != nil {
		return e.Endpoint
	}

	return built
}

// ParseAPIEndpoint splits "scheme://[token@]host[:port]/[path]" into its
// endpoint and token. Query and fragment are dropped.
func ParseAPIEndpoint(raw string) (*APIEndpoint, error) {
	parsed, err := parseAbsoluteURL(raw)
	if err != nil {
		return nil, err
	}

	var token string
	if parsed.User != nil {
		token = parsed.User.Username()
	}

	parsed.User = nil

	return &APIEndpoint{
		Endpoint: withTrailingSlash(parsed.String()),
		Token:    token,
	}, nil
}

// BuildAPIEndpoint is the inverse of ParseAPIEndpoint: it inserts "token@"
// right after the scheme separator when a token is supplied. Any credential
// already present in endpoint is replaced. Platform tokens are inserted as is;
// characters reserved in URL userinfo ("/", "@", ":", ...) are percent-escaped
// so the result still parses back to the same token.
func BuildAPIEndpoint(endpoint, token string) (string, error) {
	parsed, err := parseAbsoluteURL(endpoint)
	if err != nil {
		return "", err
	}

	parsed.User = nil
	if token != "" {
		parsed.User = url.User(token)
	}

	return withTrailingSlash(parsed.String()), nil
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrMalformedEndpoint, raw, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w %q: not an absolute URL", ErrMalformedEndpoint, raw)
	}

	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""

	return parsed, nil
}

func withTrailingSlash(raw string) string {
	if strings.HasSuffix(raw, "/") {
		return raw
	}

	return raw + "/"
}
