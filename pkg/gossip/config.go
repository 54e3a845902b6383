package gossip

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// RoundPolicy defines how the receive and send operations of a gossip round
// are scheduled.
type RoundPolicy string

const (
	// RoundPolicyBoth runs the receive and send concurrently and waits for
	// both to complete. The receive is bounded by the gossip interval.
	RoundPolicyBoth RoundPolicy = "both"
	// RoundPolicyRace runs the receive and send concurrently and ends the
	// round as soon as either completes with work done, cancelling the
	// other.
	RoundPolicyRace RoundPolicy = "race"
)

type Config struct {
	// BindAddr is the address to bind to listen for gossip traffic.
	BindAddr string `json:"bind_addr" yaml:"bind_addr"`

	// AdvertiseAddr is the address to advertise to other nodes.
	AdvertiseAddr string `json:"advertise_addr" yaml:"advertise_addr"`

	// Interval is the rate to initiate a gossip round.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// MaxPacketSize is the maximum size of any packet sent or received.
	MaxPacketSize int `json:"max_packet_size" yaml:"max_packet_size"`

	// RoundPolicy is how to schedule the operations in each round.
	RoundPolicy RoundPolicy `json:"round_policy" yaml:"round_policy"`

	// JoinAttempts is the number of announcements sent to the known peer
	// when joining a cluster.
	JoinAttempts int `json:"join_attempts" yaml:"join_attempts"`

	// JoinInterval is the delay between join announcements.
	JoinInterval time.Duration `json:"join_interval" yaml:"join_interval"`
}

func (c *Config) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("missing bind addr")
	}
	if c.Interval == 0 {
		return fmt.Errorf("missing interval")
	}
	if c.MaxPacketSize == 0 {
		return fmt.Errorf("missing max packet size")
	}
	if c.MaxPacketSize > maxDatagramSize {
		return fmt.Errorf("max packet size exceeds %d", maxDatagramSize)
	}
	switch c.RoundPolicy {
	case RoundPolicyBoth, RoundPolicyRace:
	case "":
		return fmt.Errorf("missing round policy")
	default:
		return fmt.Errorf("unsupported round policy: %s", c.RoundPolicy)
	}
	if c.JoinAttempts < 0 {
		return fmt.Errorf("join attempts must not be negative")
	}
	if c.JoinAttempts > 0 && c.JoinInterval == 0 {
		return fmt.Errorf("missing join interval")
	}
	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		&c.BindAddr,
		"gossip.bind-addr",
		"127.0.0.1:5000",
		`
The host/port to listen for inter-node gossip traffic.

If the host is unspecified it defaults to all listeners, such as
a bind address ':5000' will listen on '0.0.0.0:5000'`,
	)

	fs.StringVar(
		&c.AdvertiseAddr,
		"gossip.advertise-addr",
		"",
		`
Gossip listen address to advertise to other nodes in the cluster. This is the
address other nodes will used to gossip with the node.

Such as if the listen address is ':5000', the advertised address may be
'10.26.104.45:5000' or 'node1.cluster:5000'.

By default, if the bind address includes an IP to bind to that will be used.
If the bind address does not include an IP (such as ':5000') the nodes
private IP will be used, such as a bind address of ':5000' may have an
advertise address of '10.26.104.14:5000'.`,
	)

	fs.DurationVar(
		&c.Interval,
		"gossip.interval",
		500*time.Millisecond,
		`
The interval to initiate rounds of gossip.

Each gossip round sends the local store to a random known peer, and
merges any store received from another peer.`,
	)

	fs.IntVar(
		&c.MaxPacketSize,
		"gossip.max-packet-size",
		4096,
		`
The maximum size of any packet sent or received.

A round whose message would exceed the limit is skipped, and a received
packet that exceeds the limit is discarded.`,
	)

	fs.StringVar(
		(*string)(&c.RoundPolicy),
		"gossip.round-policy",
		string(RoundPolicyBoth),
		`
How to schedule the receive and send operations of each round.

'both' runs both operations each round and waits for them to complete.

'race' ends the round as soon as either operation completes, cancelling the
other.`,
	)

	fs.IntVar(
		&c.JoinAttempts,
		"gossip.join-attempts",
		4,
		`
The number of announcements to send to the known peer when joining a cluster
before entering the steady state gossip loop.`,
	)

	fs.DurationVar(
		&c.JoinInterval,
		"gossip.join-interval",
		150*time.Millisecond,
		`
The delay between announcements when joining a cluster.`,
	)
}
