package node

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Args:  cobra.NoArgs,
		Short: "start a new cluster",
		Long: `Start a node as the first member of a new cluster.

The node serves the key-value API on '--kv.bind-addr' and gossips with other
nodes over UDP on '--gossip.bind-addr'. Other nodes join the cluster using
the advertised gossip address of this node.

Examples:
  # Start a node with the default addresses.
  dnd start

  # Start a node gossiping on 10.26.104.14:5000.
  dnd start --gossip.bind-addr 10.26.104.14:5000
`,
	}

	conf, load := registerFlags(cmd)

	cmd.Run = func(cmd *cobra.Command, args []string) {
		if err := load(); err != nil {
			fmt.Println(err.Error())
			os.Exit(1)
		}

		// Starting a new cluster never joins a peer, even if the config
		// file sets one.
		conf.Cluster.Join = ""

		runNode(conf)
	}

	return cmd
}
