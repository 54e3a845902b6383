package gossip

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// Rounds is the total number of gossip rounds.
	Rounds prometheus.Counter

	// MessagesInbound is the total number of messages received and merged,
	// labelled by message type.
	MessagesInbound *prometheus.CounterVec

	// MessagesOutbound is the total number of messages sent, labelled by
	// message type.
	MessagesOutbound *prometheus.CounterVec

	// MalformedMessages is the total number of received packets that were
	// discarded as malformed.
	MalformedMessages prometheus.Counter

	// DroppedMessages is the total number of outbound messages dropped,
	// labelled by reason.
	DroppedMessages *prometheus.CounterVec

	// PacketBytesInbound is the total number of read bytes via a packet
	// connection.
	PacketBytesInbound prometheus.Counter

	// PacketBytesOutbound is the total number of written bytes via a packet
	// connection.
	PacketBytesOutbound prometheus.Counter

	// Peers is the number of known peers, including the local peer.
	Peers prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		Rounds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dnd",
				Subsystem: "gossip",
				Name:      "rounds_total",
				Help:      "Total number of gossip rounds",
			},
		),
		MessagesInbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dnd",
				Subsystem: "gossip",
				Name:      "messages_inbound_total",
				Help:      "Total number of messages received",
			},
			[]string{"type"},
		),
		MessagesOutbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dnd",
				Subsystem: "gossip",
				Name:      "messages_outbound_total",
				Help:      "Total number of messages sent",
			},
			[]string{"type"},
		),
		MalformedMessages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dnd",
				Subsystem: "gossip",
				Name:      "malformed_messages_total",
				Help:      "Total number of malformed packets received",
			},
		),
		DroppedMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dnd",
				Subsystem: "gossip",
				Name:      "dropped_messages_total",
				Help:      "Total number of outbound messages dropped",
			},
			[]string{"reason"},
		),
		PacketBytesInbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dnd",
				Subsystem: "gossip",
				Name:      "packet_bytes_inbound_total",
				Help:      "Total number of read bytes via a packet connection",
			},
		),
		PacketBytesOutbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dnd",
				Subsystem: "gossip",
				Name:      "packet_bytes_outbound_total",
				Help:      "Total number of written bytes via a packet connection",
			},
		),
		Peers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "dnd",
				Subsystem: "gossip",
				Name:      "peers",
				Help:      "Number of known peers",
			},
		),
	}
}

func (m *Metrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.Rounds,
		m.MessagesInbound,
		m.MessagesOutbound,
		m.MalformedMessages,
		m.DroppedMessages,
		m.PacketBytesInbound,
		m.PacketBytesOutbound,
		m.Peers,
	)
}
