package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/pryv-client/internal/client"
	"github.com/fivetwenty-io/pryv-client/pkg/pryv"
)

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestService_Login(t *testing.T) {
	t.Parallel()

	t.Run("token yields a connection", func(t *testing.T) {
		t.Parallel()

		plat := newPlatform(t, true)
		plat.login = func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "POST", request.Method)
			assert.Equal(t, plat.server.URL+"/reg/", request.Header.Get("Origin"))
			assert.Equal(t, "application/json", request.Header.Get("Accept"))

			var body map[string]string

			_ = json.NewDecoder(request.Body).Decode(&body)
			assert.Equal(t, map[string]string{"username": "alice", "password": "secret", "appId": "my-app"}, body)

			writeJSON(writer, http.StatusOK, map[string]interface{}{"token": "abc"})
		}

		config := plat.config()
		config.ChunkSize = 7

		service, err := client.NewService(config)
		require.NoError(t, err)

		conn, err := service.Login(context.Background(), "alice", "secret", "my-app", "")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(conn.APIEndpoint(), "https://abc@"), conn.APIEndpoint())
		assert.Equal(t, "abc", conn.Endpoint().Token)
		assert.Equal(t, strings.Replace(plat.server.URL, "https://", "https://abc@", 1)+"/alice/", conn.APIEndpoint())
		assert.Equal(t, 7, conn.ChunkSize())
	})

	t.Run("explicit origin", func(t *testing.T) {
		t.Parallel()

		plat := newPlatform(t, false)
		plat.login = func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "https://sw.example.com", request.Header.Get("Origin"))
			writeJSON(writer, http.StatusOK, map[string]interface{}{"token": "abc"})
		}

		service, err := client.NewService(plat.config())
		require.NoError(t, err)

		_, err = service.Login(context.Background(), "alice", "secret", "my-app", "https://sw.example.com")
		require.NoError(t, err)
	})

	t.Run("structured error is passed through", func(t *testing.T) {
		t.Parallel()

		plat := newPlatform(t, false)
		plat.login = func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(writer, http.StatusUnauthorized, map[string]interface{}{
				"error": map[string]interface{}{"id": "invalid-credentials", "message": "The given username/password pair is invalid."},
			})
		}

		logger := &recordingLogger{}
		config := plat.config()
		config.Logger = logger

		service, err := client.NewService(config)
		require.NoError(t, err)

		conn, err := service.Login(context.Background(), "alice", "wrong", "my-app", "")
		require.ErrorIs(t, err, pryv.ErrLogin)
		assert.Nil(t, conn)
		assert.True(t, pryv.IsLoginError(err))
		assert.Equal(t, "The given username/password pair is invalid.", err.Error())
		assert.NotEmpty(t, logger.entries("warn"))
	})

	t.Run("success status without token", func(t *testing.T) {
		t.Parallel()

		plat := newPlatform(t, false)
		plat.login = func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(writer, http.StatusOK, map[string]interface{}{"meta": map[string]interface{}{}})
		}

		service, err := client.NewService(plat.config())
		require.NoError(t, err)

		_, err = service.Login(context.Background(), "alice", "secret", "my-app", "")
		require.ErrorIs(t, err, pryv.ErrInvalidLoginResponse)
		assert.False(t, pryv.IsLoginError(err))
	})

	t.Run("error status without structured body", func(t *testing.T) {
		t.Parallel()

		plat := newPlatform(t, false)
		plat.login = func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusBadGateway)
			_, _ = writer.Write([]byte("<html>bad gateway</html>"))
		}

		service, err := client.NewService(plat.config())
		require.NoError(t, err)

		_, err = service.Login(context.Background(), "alice", "secret", "my-app", "")
		require.ErrorIs(t, err, pryv.ErrInvalidLoginResponse)
		require.ErrorIs(t, err, pryv.ErrTransport)

		transportErr, ok := pryv.IsTransportError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadGateway, transportErr.StatusCode)
	})

	t.Run("service info failure", func(t *testing.T) {
		t.Parallel()

		plat := newPlatform(t, false)
		delete(plat.info, "name")

		service, err := client.NewService(plat.config())
		require.NoError(t, err)

		_, err = service.Login(context.Background(), "alice", "secret", "my-app", "")
		require.ErrorIs(t, err, pryv.ErrInvalidServiceInfo)
		assert.Equal(t, 0, plat.hits.count("/alice/auth/login"))
	})
}
