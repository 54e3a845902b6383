package gossip

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketTransport(t *testing.T) {
	t.Run("send and receive", func(t *testing.T) {
		a, err := ListenPacket("127.0.0.1:0")
		require.NoError(t, err)
		defer a.Close()

		b, err := ListenPacket("127.0.0.1:0")
		require.NoError(t, err)
		defer b.Close()

		require.NoError(t, a.SendTo(
			context.Background(), []byte("hello"), b.Addr().String(),
		))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		buf := make([]byte, 64)
		n, from, err := b.RecvFrom(ctx, buf)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(buf[:n]))
		assert.Equal(t, a.Addr().String(), from)
	})

	t.Run("truncates oversized packet", func(t *testing.T) {
		a, err := ListenPacket("127.0.0.1:0")
		require.NoError(t, err)
		defer a.Close()

		b, err := ListenPacket("127.0.0.1:0")
		require.NoError(t, err)
		defer b.Close()

		require.NoError(t, a.SendTo(
			context.Background(), make([]byte, 100), b.Addr().String(),
		))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		buf := make([]byte, 11)
		n, _, err := b.RecvFrom(ctx, buf)
		require.NoError(t, err)
		assert.Equal(t, 11, n)
	})

	t.Run("receive timeout", func(t *testing.T) {
		tr, err := ListenPacket("127.0.0.1:0")
		require.NoError(t, err)
		defer tr.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, _, err = tr.RecvFrom(ctx, make([]byte, 64))
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("receive cancelled", func(t *testing.T) {
		tr, err := ListenPacket("127.0.0.1:0")
		require.NoError(t, err)
		defer tr.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, _, err = tr.RecvFrom(ctx, make([]byte, 64))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("send invalid address", func(t *testing.T) {
		tr, err := ListenPacket("127.0.0.1:0")
		require.NoError(t, err)
		defer tr.Close()

		err = tr.SendTo(context.Background(), []byte("hello"), "invalid")
		assert.Error(t, err)
	})
}
