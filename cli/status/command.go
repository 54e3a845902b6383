package status

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/andydunstall/dnd/server/status/client"
	"github.com/andydunstall/dnd/server/status/config"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "inspect node status",
		Long: `Inspect node status.

Each node exposes a status API on its admin port to inspect the state of the
node, this can be used to answer questions such as:
* What peers does this node know?
* What is the version and contents of this nodes store?

See 'status --help' for the availale commands.

Examples:
  # Inspect the known peers of the node.
  dnd status gossip peers

  # Inspect the store of node 10.26.104.56:6001.
  dnd status store --server.url http://10.26.104.56:6001
`,
	}

	var conf config.Config
	conf.RegisterFlags(cmd.PersistentFlags())

	c := client.NewClient(nil)

	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if err := conf.Validate(); err != nil {
			fmt.Printf("config: %s\n", err.Error())
			os.Exit(1)
		}

		url, _ := url.Parse(conf.Server.URL)
		c.SetURL(url)
	}

	cmd.AddCommand(newGossipCommand(c))
	cmd.AddCommand(newStoreCommand(c))

	return cmd
}
