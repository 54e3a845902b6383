package node

import (
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cmd := &cobra.Command{}
		conf, load := registerFlags(cmd)
		require.NoError(t, cmd.Flags().Parse(nil))

		require.NoError(t, load())
		assert.Len(t, conf.Cluster.NodeID, 8)
		assert.NoError(t, conf.Validate())
	})

	t.Run("config file", func(t *testing.T) {
		f, err := os.CreateTemp("", "dnd")
		require.NoError(t, err)
		defer os.Remove(f.Name())

		_, err = f.WriteString(`
cluster:
  node_id: ${NODE_ID}
kv:
  bind_addr: ${KV_ADDR:127.0.0.1:7000}
`)
		require.NoError(t, err)

		t.Setenv("NODE_ID", "my-node")

		cmd := &cobra.Command{}
		conf, load := registerFlags(cmd)
		require.NoError(t, cmd.Flags().Parse([]string{
			"--config.path", f.Name(),
			"--config.expand-env",
		}))

		require.NoError(t, load())
		assert.Equal(t, "my-node", conf.Cluster.NodeID)
		assert.Equal(t, "127.0.0.1:7000", conf.KV.BindAddr)
		// Flags not set in the file keep their defaults.
		assert.Equal(t, "127.0.0.1:6001", conf.Admin.BindAddr)
	})

	t.Run("missing config file", func(t *testing.T) {
		cmd := &cobra.Command{}
		_, load := registerFlags(cmd)
		require.NoError(t, cmd.Flags().Parse([]string{
			"--config.path", "/does/not/exist.yaml",
		}))

		assert.Error(t, load())
	})
}
