package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fivetwenty-io/pryv-client/internal/constants"
	"github.com/fivetwenty-io/pryv-client/internal/http"
	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	AppID    string `json:"appId"`
}

type loginResponse struct {
	Token string         `json:"token"`
	Error *pryv.APIError `json:"error,omitempty"`
}

// Login implements pryv.Service.Login. originHeader defaults to the
// platform's register URL.
func (s *Service) Login(ctx context.Context, username, password, appID, originHeader string) (pryv.Connection, error) {
	info, err := s.Info(ctx, false)
	if err != nil {
		return nil, err
	}

	endpoint, err := info.APIEndpointFor(username, "")
	if err != nil {
		return nil, err
	}

	if originHeader == "" {
		originHeader = info.Register
	}

	resp, err := s.httpClient.Do(ctx, &http.Request{
		Method: "POST",
		Path:   endpoint.Endpoint + constants.LoginPath,
		Body:   loginRequest{Username: username, Password: password, AppID: appID},
		Headers: map[string]string{
			constants.HeaderOrigin: originHeader,
		},
	})

	token, loginErr := parseLoginResponse(resp, err)
	if loginErr != nil {
		s.logger.Warn("Login failed", map[string]interface{}{
			"username": username,
			"error":    loginErr.Error(),
		})

		return nil, loginErr
	}

	config := s.connConfig
	config.APIEndpoint = endpoint.Endpoint
	config.Token = token

	conn, err := NewConnection(&config)
	if err != nil {
		return nil, fmt.Errorf("creating connection for %s: %w", username, err)
	}

	s.logger.Info("Logged in", map[string]interface{}{
		"username": username,
		"endpoint": endpoint.Endpoint,
	})

	return conn, nil
}

// parseLoginResponse maps the exchange to a token or an error. Failures
// without any response stay transport errors; a response with neither a
// token nor a structured error is an invalid login response.
func parseLoginResponse(resp *http.Response, err error) (string, error) {
	if err != nil {
		if transportErr, ok := pryv.IsTransportError(err); !ok || transportErr.StatusCode == 0 || resp == nil {
			return "", fmt.Errorf("logging in: %w", err)
		}
	}

	var body loginResponse

	decodeErr := json.Unmarshal(resp.Body, &body)

	switch {
	case decodeErr == nil && body.Error != nil && body.Error.Message != "":
		return "", &pryv.LoginError{Message: body.Error.Message, Cause: body.Error}
	case decodeErr == nil && err == nil && body.Token != "":
		return body.Token, nil
	case err != nil:
		return "", fmt.Errorf("%w: %w", pryv.ErrInvalidLoginResponse, err)
	default:
		return "", fmt.Errorf("%w: status %d", pryv.ErrInvalidLoginResponse, resp.StatusCode)
	}
}
