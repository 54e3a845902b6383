package node

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewJoinCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join [peer]",
		Args:  cobra.ExactArgs(1),
		Short: "join an existing cluster",
		Long: `Start a node and join an existing cluster.

The peer is the gossip address of any node in the cluster, in the format
<host>:<port>. The node announces itself to that peer, then discovers the
rest of the cluster through gossip.

Examples:
  # Join the cluster of the node gossiping on 10.26.104.14:5000.
  dnd join 10.26.104.14:5000 --gossip.bind-addr 10.26.104.15:5000
`,
	}

	conf, load := registerFlags(cmd)

	cmd.Run = func(cmd *cobra.Command, args []string) {
		if err := load(); err != nil {
			fmt.Println(err.Error())
			os.Exit(1)
		}

		// The peer argument takes precedence over the config file.
		conf.Cluster.Join = args[0]

		runNode(conf)
	}

	return cmd
}
