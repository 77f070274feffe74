package pryv_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

func TestParseResponseError(t *testing.T) {
	t.Parallel()

	apiErr := pryv.ParseResponseError([]byte(`{"error":{"id":"invalid-credentials","message":"Invalid pair"}}`))
	require.NotNil(t, apiErr)
	assert.Equal(t, "invalid-credentials", apiErr.ID)
	assert.Equal(t, "invalid-credentials: Invalid pair", apiErr.Error())

	assert.Nil(t, pryv.ParseResponseError(nil))
	assert.Nil(t, pryv.ParseResponseError([]byte(`not json`)))
	assert.Nil(t, pryv.ParseResponseError([]byte(`{"token":"abc"}`)))
	assert.Nil(t, pryv.ParseResponseError([]byte(`{"error":{"id":"x"}}`)))

	assert.Equal(t, "plain", (&pryv.APIError{Message: "plain"}).Error())
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	t.Run("with status and platform error", func(t *testing.T) {
		t.Parallel()

		cause := &pryv.APIError{ID: "forbidden", Message: "Access denied"}
		err := fmt.Errorf("getting events: %w", &pryv.TransportError{
			Method:     "GET",
			URL:        "https://tom.pryv.me/events",
			StatusCode: 403,
			Err:        cause,
		})

		require.ErrorIs(t, err, pryv.ErrTransport)
		assert.Contains(t, err.Error(), "status 403")

		transportErr, ok := pryv.IsTransportError(err)
		require.True(t, ok)
		assert.Equal(t, cause, transportErr.APIError())

		var apiErr *pryv.APIError

		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "forbidden", apiErr.ID)
	})

	t.Run("without response", func(t *testing.T) {
		t.Parallel()

		netErr := errors.New("connection refused")
		err := &pryv.TransportError{Method: "GET", URL: "https://tom.pryv.me/", Err: netErr}

		assert.Equal(t, "GET https://tom.pryv.me/: connection refused", err.Error())
		require.ErrorIs(t, err, netErr)
		assert.Nil(t, err.APIError())
	})

	t.Run("status only", func(t *testing.T) {
		t.Parallel()

		err := &pryv.TransportError{Method: "POST", URL: "https://tom.pryv.me/", StatusCode: 500}
		assert.Equal(t, "POST https://tom.pryv.me/: status 500", err.Error())
	})

	_, ok := pryv.IsTransportError(errors.New("other"))
	assert.False(t, ok)
}

func TestLoginError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", &pryv.LoginError{Message: "The given username/password pair is invalid."})

	require.ErrorIs(t, err, pryv.ErrLogin)
	assert.True(t, pryv.IsLoginError(err))
	assert.False(t, pryv.IsLoginError(pryv.ErrInvalidLoginResponse))
	assert.NotErrorIs(t, err, pryv.ErrTransport)
	assert.True(t, pryv.IsMissingMeta(fmt.Errorf("x: %w", pryv.ErrMissingMeta)))
}
