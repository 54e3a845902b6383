package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/andydunstall/dnd/pkg/gossip"
	"github.com/andydunstall/dnd/pkg/log"
)

type KVConfig struct {
	// BindAddr is the address to bind to listen for incoming HTTP connections.
	BindAddr string `json:"bind_addr" yaml:"bind_addr"`
}

func (c *KVConfig) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("missing bind addr")
	}
	return nil
}

type AdminConfig struct {
	// BindAddr is the address to bind to listen for incoming HTTP connections.
	BindAddr string `json:"bind_addr" yaml:"bind_addr"`
}

func (c *AdminConfig) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("missing bind addr")
	}
	return nil
}

type ClusterConfig struct {
	// NodeID is a unique identifier for this node in the cluster.
	NodeID string `json:"node_id" yaml:"node_id"`

	// Join is the gossip address of a known peer in an existing cluster to
	// join. If empty the node starts a new cluster.
	Join string `json:"join" yaml:"join"`
}

func (c *ClusterConfig) Validate() error {
	if c.Join != "" {
		if _, err := gossip.ParsePeer(c.Join); err != nil {
			return fmt.Errorf("join: %w", err)
		}
	}
	return nil
}

type Config struct {
	KV      KVConfig      `json:"kv" yaml:"kv"`
	Admin   AdminConfig   `json:"admin" yaml:"admin"`
	Gossip  gossip.Config `json:"gossip" yaml:"gossip"`
	Cluster ClusterConfig `json:"cluster" yaml:"cluster"`
	Log     log.Config    `json:"log" yaml:"log"`

	// GracePeriod is the duration to gracefully shutdown the node. During
	// the grace period, listeners are closed and the node waits for active
	// requests to complete.
	GracePeriod time.Duration `json:"grace_period" yaml:"grace_period"`
}

func (c *Config) Validate() error {
	if err := c.KV.Validate(); err != nil {
		return fmt.Errorf("kv: %w", err)
	}
	if err := c.Admin.Validate(); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if err := c.Gossip.Validate(); err != nil {
		return fmt.Errorf("gossip: %w", err)
	}
	if err := c.Cluster.Validate(); err != nil {
		return fmt.Errorf("cluster: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if c.GracePeriod == 0 {
		return fmt.Errorf("missing grace period")
	}

	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		&c.KV.BindAddr,
		"kv.bind-addr",
		"127.0.0.1:6000",
		`
The host/port to listen for incoming key-value HTTP requests.

If the host is unspecified it defaults to all listeners, such as
'--kv.bind-addr :6000' will listen on '0.0.0.0:6000'`,
	)

	fs.StringVar(
		&c.Admin.BindAddr,
		"admin.bind-addr",
		"127.0.0.1:6001",
		`
The host/port to listen for incoming admin connections.

If the host is unspecified it defaults to all listeners, such as
'--admin.bind-addr :6001' will listen on '0.0.0.0:6001'`,
	)

	fs.StringVar(
		&c.Cluster.NodeID,
		"cluster.node-id",
		"",
		`
A unique identifier for the node in the cluster.

By default a random ID will be generated for the node.`,
	)
	fs.StringVar(
		&c.Cluster.Join,
		"cluster.join",
		"",
		`
Gossip address of a known peer in an existing cluster to join, such as
'10.26.104.14:5000'.

The node announces itself to the peer, then discovers the rest of the cluster
through gossip. If empty the node starts a new cluster.`,
	)

	c.Gossip.RegisterFlags(fs)

	c.Log.RegisterFlags(fs)

	fs.DurationVar(
		&c.GracePeriod,
		"grace-period",
		30*time.Second,
		`
Maximum duration after a shutdown signal is received (SIGTERM or
SIGINT) to gracefully shutdown the node before terminating.
This includes handling in-progress HTTP requests.`,
	)
}
