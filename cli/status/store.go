package status

import (
	"encoding/json"
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/andydunstall/dnd/server/status"
	"github.com/andydunstall/dnd/server/status/client"
)

func newStoreCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "inspect the node store",
		Long: `Inspect the node store.

Queries the node for its store version and entries.

Examples:
  dnd status store
`,
	}

	cmd.Run = func(cmd *cobra.Command, args []string) {
		showStore(c)
	}

	return cmd
}

type storeOutput struct {
	Version uint64         `json:"version"`
	Entries map[string]any `json:"entries"`
}

func showStore(c *client.Client) {
	store := client.NewStore(c)

	snapshot, err := store.Snapshot()
	if err != nil {
		fmt.Printf("failed to get store: %s\n", err.Error())
		os.Exit(1)
	}

	b, _ := yaml.Marshal(newStoreOutput(snapshot))
	fmt.Println(string(b))
}

func newStoreOutput(snapshot *status.StoreSnapshot) storeOutput {
	output := storeOutput{
		Version: snapshot.Version,
		Entries: make(map[string]any, len(snapshot.Entries)),
	}
	for k, v := range snapshot.Entries {
		// Values were validated as JSON when written.
		var decoded any
		_ = json.Unmarshal(v, &decoded)
		output.Entries[k] = decoded
	}
	return output
}
