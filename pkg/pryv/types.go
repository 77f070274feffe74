package pryv

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fivetwenty-io/pryv-client/internal/constants"
)

// ServiceInfo is the platform discovery document.
type ServiceInfo struct {
	Register   string     `json:"register,omitempty"   yaml:"register,omitempty"`
	Access     string     `json:"access,omitempty"     yaml:"access,omitempty"`
	API        string     `json:"api,omitempty"        yaml:"api,omitempty"`
	Name       string     `json:"name,omitempty"       yaml:"name,omitempty"`
	Home       string     `json:"home,omitempty"       yaml:"home,omitempty"`
	Support    string     `json:"support,omitempty"    yaml:"support,omitempty"`
	Terms      string     `json:"terms,omitempty"      yaml:"terms,omitempty"`
	EventTypes string     `json:"eventTypes,omitempty" yaml:"eventTypes,omitempty"`
	Assets     *AssetsRef `json:"assets,omitempty"     yaml:"assets,omitempty"`

	// Extra holds fields of the document this package does not model.
	Extra map[string]interface{} `json:"-" yaml:",inline"`
}

// AssetsRef points to the asset bundle definitions.
type AssetsRef struct {
	Definitions string `json:"definitions,omitempty" yaml:"definitions,omitempty"`
}

// serviceInfoFields lists the keys decoded into typed fields.
var serviceInfoFields = map[string]struct{}{
	"register": {}, "access": {}, "api": {}, "name": {}, "home": {},
	"support": {}, "terms": {}, "eventTypes": {}, "assets": {},
}

type plainServiceInfo ServiceInfo

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (s *ServiceInfo) UnmarshalJSON(data []byte) error {
	var decoded plainServiceInfo

	err := json.Unmarshal(data, &decoded)
	if err != nil {
		return fmt.Errorf("decoding service info: %w", err)
	}

	var raw map[string]json.RawMessage

	err = json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("decoding service info: %w", err)
	}

	for key, value := range raw {
		if _, known := serviceInfoFields[key]; known {
			continue
		}

		var extra interface{}

		err = json.Unmarshal(value, &extra)
		if err != nil {
			return fmt.Errorf("decoding service info field %q: %w", key, err)
		}

		if decoded.Extra == nil {
			decoded.Extra = make(map[string]interface{})
		}

		decoded.Extra[key] = extra
	}

	*s = ServiceInfo(decoded)

	return nil
}

// MarshalJSON writes the known fields and Extra as one object.
func (s ServiceInfo) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(plainServiceInfo(s))
	if err != nil {
		return nil, fmt.Errorf("encoding service info: %w", err)
	}

	if len(s.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]interface{}, len(s.Extra)+len(serviceInfoFields))
	for key, value := range s.Extra {
		merged[key] = value
	}

	err = json.Unmarshal(base, &merged)
	if err != nil {
		return nil, fmt.Errorf("encoding service info: %w", err)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encoding service info: %w", err)
	}

	return data, nil
}

// Merge returns a copy of s with every non-empty field of overrides applied on top.
func (s *ServiceInfo) Merge(overrides *ServiceInfo) *ServiceInfo {
	merged := s.Clone()
	if overrides == nil {
		return merged
	}

	overrideString(&merged.Register, overrides.Register)
	overrideString(&merged.Access, overrides.Access)
	overrideString(&merged.API, overrides.API)
	overrideString(&merged.Name, overrides.Name)
	overrideString(&merged.Home, overrides.Home)
	overrideString(&merged.Support, overrides.Support)
	overrideString(&merged.Terms, overrides.Terms)
	overrideString(&merged.EventTypes, overrides.EventTypes)

	if overrides.Assets != nil {
		assets := *overrides.Assets
		merged.Assets = &assets
	}

	for key, value := range overrides.Extra {
		if merged.Extra == nil {
			merged.Extra = make(map[string]interface{}, len(overrides.Extra))
		}

		merged.Extra[key] = value
	}

	return merged
}

// Clone returns a copy that shares no pointers with s.
func (s *ServiceInfo) Clone() *ServiceInfo {
	if s == nil {
		return &ServiceInfo{}
	}

	clone := *s

	if s.Assets != nil {
		assets := *s.Assets
		clone.Assets = &assets
	}

	if s.Extra != nil {
		clone.Extra = make(map[string]interface{}, len(s.Extra))
		for key, value := range s.Extra {
			clone.Extra[key] = value
		}
	}

	return &clone
}

// Validate checks the fields a usable document must carry.
func (s *ServiceInfo) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidServiceInfo)
	}

	return nil
}

// Normalize makes access, api and register end with "/".
func (s *ServiceInfo) Normalize() {
	s.Access = trailingSlash(s.Access)
	s.API = trailingSlash(s.API)
	s.Register = trailingSlash(s.Register)
}

// APIEndpointFor substitutes username in the api URL and attaches token.
func (s *ServiceInfo) APIEndpointFor(username, token string) (*APIEndpoint, error) {
	if s.API == "" {
		return nil, fmt.Errorf("%w: api is required", ErrInvalidServiceInfo)
	}

	apiURL := strings.ReplaceAll(s.API, constants.UsernamePlaceholder, username)

	built, err := BuildAPIEndpoint(apiURL, token)
	if err != nil {
		return nil, fmt.Errorf("building endpoint for %q: %w", username, err)
	}

	return ParseAPIEndpoint(built)
}

func overrideString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func trailingSlash(value string) string {
	if value == "" || strings.HasSuffix(value, "/") {
		return value
	}

	return value + "/"
}

// MethodCall is one logical API call inside a batch.
type MethodCall struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// MarshalJSON sends an empty object when Params is nil.
func (c MethodCall) MarshalJSON() ([]byte, error) {
	params := c.Params
	if params == nil {
		params = map[string]interface{}{}
	}

	data, err := json.Marshal(struct {
		Method string      `json:"method"`
		Params interface{} `json:"params"`
	}{Method: c.Method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding method call %q: %w", c.Method, err)
	}

	return data, nil
}

// Event is a platform event as delivered by the events stream.
type Event map[string]interface{}

// StreamResult summarizes a streamed events read.
type StreamResult struct {
	EventsCount int `json:"eventsCount" yaml:"eventsCount"`
}

// RawResponse is an unfiltered transport response.
type RawResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// JSON decodes the body into v.
func (r *RawResponse) JSON(v interface{}) error {
	err := json.Unmarshal(r.Body, v)
	if err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}

	return nil
}

// Assets is the asset bundle built from the definitions URL. Its content is
// owned by the AssetsLoader that produced it.
type Assets map[string]interface{}
