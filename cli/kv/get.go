package kv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/andydunstall/dnd/client"
	"github.com/andydunstall/dnd/pkg/kv"
)

func newGetCommand(conf *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [key]",
		Args:  cobra.ExactArgs(1),
		Short: "get the value of a key",
		Long: `Get the value of a key.

Prints the JSON value known by the node. Exits with status 1 if the node
doesn't know the key.

Examples:
  dnd kv get foo
`,
	}

	cmd.Run = func(cmd *cobra.Command, args []string) {
		c := newClient(conf)
		defer c.Close()

		if err := get(cmd.Context(), c, args[0], os.Stdout); err != nil {
			fmt.Println(err.Error())
			os.Exit(1)
		}
	}

	return cmd
}

func get(ctx context.Context, c *client.Client, key string, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	value, err := c.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("not found: %s", key)
	}
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}

	fmt.Fprintln(w, string(value))
	return nil
}
