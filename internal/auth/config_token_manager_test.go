package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fivetwenty-io/pryv-client/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPersistFailed = errors.New("disk full")

type recordingPersister struct {
	calls [][3]string
	err   error
}

func (p *recordingPersister) UpdateAPIToken(apiKey, endpoint, token string) error {
	p.calls = append(p.calls, [3]string{apiKey, endpoint, token})

	return p.err
}

func TestStaticTokenManager(t *testing.T) {
	t.Parallel()

	token, err := auth.NewStaticTokenManager("abc").GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestConfigTokenManager(t *testing.T) {
	t.Parallel()

	t.Run("returns initial token", func(t *testing.T) {
		t.Parallel()

		manager := auth.NewConfigTokenManager(&recordingPersister{}, "pryv.me", "https://tom.pryv.me/", "t0")

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "t0", token)
		assert.Equal(t, "https://tom.pryv.me/", manager.Endpoint())
	})

	t.Run("errors without token", func(t *testing.T) {
		t.Parallel()

		manager := auth.NewConfigTokenManager(&recordingPersister{}, "pryv.me", "", "")

		_, err := manager.GetToken(context.Background())
		require.ErrorIs(t, err, auth.ErrNoToken)
	})

	t.Run("persists new token", func(t *testing.T) {
		t.Parallel()

		persister := &recordingPersister{}
		manager := auth.NewConfigTokenManager(persister, "pryv.me", "", "")

		err := manager.SetToken("https://tom.pryv.me/", "t1")
		require.NoError(t, err)

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "t1", token)
		require.Len(t, persister.calls, 1)
		assert.Equal(t, [3]string{"pryv.me", "https://tom.pryv.me/", "t1"}, persister.calls[0])
	})

	t.Run("surfaces persister failure", func(t *testing.T) {
		t.Parallel()

		manager := auth.NewConfigTokenManager(&recordingPersister{err: errPersistFailed}, "pryv.me", "", "")

		err := manager.SetToken("https://tom.pryv.me/", "t1")
		require.ErrorIs(t, err, errPersistFailed)
	})

	t.Run("requires persister", func(t *testing.T) {
		t.Parallel()

		manager := auth.NewConfigTokenManager(nil, "pryv.me", "", "")

		err := manager.SetToken("https://tom.pryv.me/", "t1")
		require.ErrorIs(t, err, auth.ErrNoConfigPersister)
	})
}
