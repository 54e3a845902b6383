package client

import (
	"encoding/json"
	"fmt"

	"github.com/andydunstall/dnd/server/status"
)

type Store struct {
	client *Client
}

func NewStore(client *Client) *Store {
	return &Store{
		client: client,
	}
}

func (c *Store) Snapshot() (*status.StoreSnapshot, error) {
	r, err := c.client.Request("/status/store")
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var snapshot status.StoreSnapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &snapshot, nil
}
