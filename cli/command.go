package cli

import (
	"github.com/spf13/cobra"

	"github.com/andydunstall/dnd/cli/kv"
	"github.com/andydunstall/dnd/cli/node"
	"github.com/andydunstall/dnd/cli/status"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "dnd [command] (flags)",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Long: `dnd is a distributed key-value store with no central coordinator.

Each node holds a full copy of the store and gossips it to a random peer over
UDP. Nodes accept writes independently, and the cluster converges once every
node has seen the snapshot with the highest version.

Start the first node of a cluster with:

  $ dnd start

Then add a node by joining via the gossip address of any existing node:

  $ dnd join 10.26.104.14:5000

Read and write keys using:

  $ dnd kv put foo '{"bar": 1}'
  $ dnd kv get foo

You can also inspect the status of a node using:

  $ dnd status
`,
	}

	cmd.AddCommand(node.NewStartCommand())
	cmd.AddCommand(node.NewJoinCommand())
	cmd.AddCommand(kv.NewCommand())
	cmd.AddCommand(status.NewCommand())

	return cmd
}

func init() {
	cobra.EnableCommandSorting = false
}
