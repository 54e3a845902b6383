package client

import (
	"encoding/json"
	"fmt"

	"github.com/andydunstall/dnd/server/status"
)

type Gossip struct {
	client *Client
}

func NewGossip(client *Client) *Gossip {
	return &Gossip{
		client: client,
	}
}

func (c *Gossip) Peers() (*status.GossipPeers, error) {
	r, err := c.client.Request("/status/gossip/peers")
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var peers status.GossipPeers
	if err := json.NewDecoder(r).Decode(&peers); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &peers, nil
}
