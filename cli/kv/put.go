package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/andydunstall/dnd/client"
)

func newPutCommand(conf *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put [key] [value]",
		Args:  cobra.ExactArgs(2),
		Short: "set the value of a key",
		Long: `Set the value of a key.

The value must be a JSON document. Prints the nodes store version following
the write.

Examples:
  dnd kv put foo '"bar"'
  dnd kv put foo '{"bar": [1, 2, 3]}'
`,
	}

	cmd.Run = func(cmd *cobra.Command, args []string) {
		c := newClient(conf)
		defer c.Close()

		if err := put(cmd.Context(), c, args[0], args[1], os.Stdout); err != nil {
			fmt.Println(err.Error())
			os.Exit(1)
		}
	}

	return cmd
}

func put(ctx context.Context, c *client.Client, key string, value string, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if !json.Valid([]byte(value)) {
		return fmt.Errorf("invalid value: not json: %s", value)
	}

	version, err := c.Put(ctx, key, json.RawMessage(value))
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}

	fmt.Fprintf(w, "version: %d\n", version)
	return nil
}
