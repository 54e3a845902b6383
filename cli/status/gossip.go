package status

import (
	"fmt"
	"os"
	"sort"

	yaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/andydunstall/dnd/pkg/gossip"
	"github.com/andydunstall/dnd/server/status/client"
)

func newGossipCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gossip",
		Short: "inspect gossip state",
	}

	cmd.AddCommand(newGossipPeersCommand(c))

	return cmd
}

func newGossipPeersCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "inspect known peers",
		Long: `Inspect known peers.

Queries the node for the peers it knows about, including itself.

Examples:
  dnd status gossip peers
`,
	}

	cmd.Run = func(cmd *cobra.Command, args []string) {
		showGossipPeers(c)
	}

	return cmd
}

type gossipPeersOutput struct {
	Local string   `json:"local"`
	Peers []string `json:"peers"`
}

func showGossipPeers(c *client.Client) {
	g := client.NewGossip(c)

	peers, err := g.Peers()
	if err != nil {
		fmt.Printf("failed to get gossip peers: %s\n", err.Error())
		os.Exit(1)
	}

	b, _ := yaml.Marshal(newGossipPeersOutput(peers.Local, peers.Peers))
	fmt.Println(string(b))
}

func newGossipPeersOutput(local gossip.Peer, peers []gossip.Peer) gossipPeersOutput {
	output := gossipPeersOutput{
		Local: local.Addr,
	}
	for _, peer := range peers {
		output.Peers = append(output.Peers, peer.Addr)
	}
	// Sort by address.
	sort.Strings(output.Peers)
	return output
}
