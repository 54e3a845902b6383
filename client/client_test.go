package client

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/dnd/pkg/kv"
	"github.com/andydunstall/dnd/pkg/log"
	"github.com/andydunstall/dnd/server/api"
)

func TestClient(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	store := kv.NewStore()
	s := api.NewServer(store, 4096, nil, log.NewNopLogger())
	go func() {
		require.NoError(t, s.Serve(ln))
	}()
	defer s.Shutdown(context.TODO())

	c, err := NewClient(WithURL("http://" + ln.Addr().String()))
	require.NoError(t, err)
	defer c.Close()

	t.Run("put and get", func(t *testing.T) {
		version, err := c.Put(context.TODO(), "x", json.RawMessage(`{"a":1}`))
		require.NoError(t, err)
		assert.Equal(t, store.Version(), version)

		v, err := c.Get(context.TODO(), "x")
		require.NoError(t, err)
		assert.Equal(t, json.RawMessage(`{"a":1}`), v)
	})

	t.Run("escaped key", func(t *testing.T) {
		_, err := c.Put(context.TODO(), "my key", json.RawMessage(`1`))
		require.NoError(t, err)

		v, ok := store.Get("my key")
		assert.True(t, ok)
		assert.Equal(t, json.RawMessage(`1`), v)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := c.Get(context.TODO(), "unknown")
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := c.Put(context.TODO(), "y", json.RawMessage(`{invalid`))
		assert.ErrorContains(t, err, "value must be valid json")
	})
}

func TestClient_InvalidURL(t *testing.T) {
	_, err := NewClient(WithURL("http://[::1"))
	assert.Error(t, err)
}
