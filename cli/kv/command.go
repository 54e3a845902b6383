package kv

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/andydunstall/dnd/client"
)

type config struct {
	URL     string
	Timeout time.Duration
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "read and write keys",
		Long: `Read and write keys using a nodes key-value API.

Values are JSON documents. A write to one node is gossiped to the other nodes
in the cluster, so reads from another node may not see the write until the
cluster has converged.

Examples:
  # Set key 'foo' on the local node.
  dnd kv put foo '{"bar": 1}'

  # Get key 'foo' from node 10.26.104.56:6000.
  dnd kv get foo --server.url http://10.26.104.56:6000
`,
	}

	var conf config
	cmd.PersistentFlags().StringVar(
		&conf.URL,
		"server.url",
		"http://localhost:6000",
		`
The URL of the nodes key-value API.`,
	)
	cmd.PersistentFlags().DurationVar(
		&conf.Timeout,
		"timeout",
		time.Second*15,
		`
Timeout for each request.`,
	)

	cmd.AddCommand(newGetCommand(&conf))
	cmd.AddCommand(newPutCommand(&conf))

	return cmd
}

func newClient(conf *config) *client.Client {
	c, err := client.NewClient(
		client.WithURL(conf.URL),
		client.WithTimeout(conf.Timeout),
	)
	if err != nil {
		fmt.Printf("config: %s\n", err.Error())
		os.Exit(1)
	}
	return c
}
