package gossip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andydunstall/dnd/pkg/kv"
	"github.com/andydunstall/dnd/pkg/log"
)

// Store is the replicated store gossiped by the node.
type Store interface {
	// Snapshot returns the store version and a copy of all entries.
	Snapshot() (uint64, kv.Entries)

	// Merge applies a remote snapshot, returning whether the snapshot was
	// accepted.
	Merge(version uint64, entries kv.Entries) bool
}

// RoundResult reports the operations that completed in a gossip round.
type RoundResult struct {
	// Received is true if a message was received and merged.
	Received bool
	// Sent is true if a message was sent to a peer.
	Sent bool
}

// Gossip runs the gossip protocol for the local node.
//
// Each round, Gossip receives at most one message and merges it into the
// store and peer registry, and sends the local store and known peers to a
// random peer.
type Gossip struct {
	peers *peerRegistry

	store Store

	transport Transport

	// readBuf is the buffer for received packets. It is one byte larger
	// than the maximum packet size to detect oversized packets. Only one
	// receive runs at a time.
	readBuf []byte

	config *Config

	metrics *Metrics

	logger log.Logger
}

func New(
	local Peer,
	store Store,
	transport Transport,
	config *Config,
	logger log.Logger,
) *Gossip {
	metrics := newMetrics()
	metrics.Peers.Set(1)

	return &Gossip{
		peers:     newPeerRegistry(local),
		store:     store,
		transport: transport,
		readBuf:   make([]byte, config.MaxPacketSize+1),
		config:    config,
		metrics:   metrics,
		logger:    logger.WithSubsystem("gossip"),
	}
}

// LocalPeer returns the peer advertised by the local node.
func (g *Gossip) LocalPeer() Peer {
	return g.peers.Local()
}

// Peers returns the known peers, including the local peer.
func (g *Gossip) Peers() []Peer {
	return g.peers.Peers()
}

func (g *Gossip) Metrics() *Metrics {
	return g.metrics
}

// Start runs the gossip loop as the first node of a new cluster.
//
// Blocks until the context is cancelled.
func (g *Gossip) Start(ctx context.Context) error {
	g.logger.Info(
		"starting cluster",
		zap.String("local", g.peers.Local().Addr),
	)
	return g.run(ctx)
}

// Join announces the local node to the given known peer, then runs the
// gossip loop.
//
// The announcement is sent JoinAttempts times, waiting JoinInterval between
// each, to tolerate packet loss. Failing to send an announcement isn't fatal
// as the node will still be discovered once the known peer hears about it
// from another node, or the local node gossips with it.
//
// Blocks until the context is cancelled.
func (g *Gossip) Join(ctx context.Context, peer Peer) error {
	g.logger.Info(
		"joining cluster",
		zap.String("local", g.peers.Local().Addr),
		zap.String("peer", peer.Addr),
	)

	// The announcement only includes the local peer. The known peer is
	// discovered from its own gossip once it has learned about this node.
	announce := []string{g.peers.Local().Addr}
	for attempt := 1; attempt <= g.config.JoinAttempts; attempt++ {
		if err := g.sendTo(ctx, messageTypeJoin, peer, announce); err != nil {
			g.logSendError(&sendError{t: messageTypeJoin, peer: peer, err: err})
		} else {
			g.logger.Debug(
				"sent join announcement",
				zap.String("peer", peer.Addr),
				zap.Int("attempt", attempt),
			)
		}

		select {
		case <-time.After(g.config.JoinInterval):
		case <-ctx.Done():
			return nil
		}
	}

	return g.run(ctx)
}

func (g *Gossip) run(ctx context.Context) error {
	ticker := time.NewTicker(g.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.Round(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// Round runs a single gossip round using the configured round policy.
func (g *Gossip) Round(ctx context.Context) RoundResult {
	g.metrics.Rounds.Inc()

	var result RoundResult
	if g.config.RoundPolicy == RoundPolicyRace {
		result = g.raceRound(ctx)
	} else {
		result = g.bothRound(ctx)
	}

	g.logger.Debug(
		"round",
		zap.Bool("received", result.Received),
		zap.Bool("sent", result.Sent),
	)

	return result
}

// bothRound runs the receive and send concurrently and waits for both to
// complete. The receive is bounded by the gossip interval so a quiet network
// doesn't stall the send.
func (g *Gossip) bothRound(ctx context.Context) RoundResult {
	recvCtx, cancel := context.WithTimeout(ctx, g.config.Interval)
	defer cancel()

	var result RoundResult
	var group errgroup.Group
	group.Go(func() error {
		received, err := g.receive(recvCtx)
		if err != nil {
			g.logReceiveError(err)
		}
		result.Received = received
		return nil
	})
	group.Go(func() error {
		sent, err := g.send(ctx)
		if err != nil {
			g.logSendError(err)
		}
		result.Sent = sent
		return nil
	})
	_ = group.Wait()

	return result
}

// raceRound runs the receive and send concurrently and ends the round as
// soon as either completes with work done, cancelling the other. If neither
// has work to do, the round ends after the gossip interval.
//
// The round always waits for the cancelled operation to return, so the
// next round never overlaps.
func (g *Gossip) raceRound(ctx context.Context) RoundResult {
	ctx, cancel := context.WithTimeout(ctx, g.config.Interval)
	defer cancel()

	type outcome struct {
		send bool
		done bool
	}
	outcomes := make(chan outcome, 2)

	go func() {
		received, err := g.receive(ctx)
		if err != nil {
			g.logReceiveError(err)
		}
		outcomes <- outcome{send: false, done: received}
	}()
	go func() {
		sent, err := g.send(ctx)
		if err != nil {
			g.logSendError(err)
		}
		outcomes <- outcome{send: true, done: sent}
	}()

	var result RoundResult
	for i := 0; i != 2; i++ {
		o := <-outcomes
		if o.send {
			result.Sent = o.done
		} else {
			result.Received = o.done
		}
		if o.done {
			// Cancel the other operation. If it has already completed
			// this has no effect.
			cancel()
		}
	}
	return result
}

// receive reads one packet and merges its message into the store and peer
// registry.
//
// Returns true if a message was merged. A malformed packet is discarded and
// returns an error wrapping ErrMalformedMessage.
func (g *Gossip) receive(ctx context.Context) (bool, error) {
	n, from, err := g.transport.RecvFrom(ctx, g.readBuf)
	if err != nil {
		return false, err
	}
	g.metrics.PacketBytesInbound.Add(float64(n))

	if n > g.config.MaxPacketSize {
		g.metrics.MalformedMessages.Inc()
		return false, fmt.Errorf(
			"%w: from %s: packet exceeds max packet size",
			ErrMalformedMessage, from,
		)
	}

	t, m, err := decodeMessage(g.readBuf[:n])
	if err != nil {
		g.metrics.MalformedMessages.Inc()
		return false, fmt.Errorf("from %s: %w", from, err)
	}
	g.metrics.MessagesInbound.WithLabelValues(t.String()).Inc()

	g.merge(t, m, from)

	return true, nil
}

// merge applies a received message. The store snapshot is only accepted if
// it is newer than the local store, though the senders known peers are
// always recorded.
func (g *Gossip) merge(t messageType, m *message, from string) {
	entries := make(kv.Entries, len(m.Entries))
	for k, v := range m.Entries {
		entries[k] = v
	}
	accepted := g.store.Merge(m.Version, entries)

	g.logger.Debug(
		"received message",
		zap.String("type", t.String()),
		zap.String("from", from),
		zap.Uint64("version", m.Version),
		zap.Int("entries", len(m.Entries)),
		zap.Bool("accepted", accepted),
	)

	for _, addr := range m.Peers {
		peer := Peer{Addr: addr}
		if g.peers.RecordIfNew(peer) {
			g.logger.Info("discovered peer", zap.String("peer", addr))
			g.metrics.Peers.Set(float64(g.peers.Len()))
		}
	}
}

// send sends the local store and known peers to a random peer.
//
// Returns true if a message was sent. If there are no other known peers the
// send is skipped.
func (g *Gossip) send(ctx context.Context) (bool, *sendError) {
	peer, ok := g.peers.Random()
	if !ok {
		g.logger.Debug("no peers to gossip with")
		return false, nil
	}

	var known []string
	for _, p := range g.peers.Peers() {
		known = append(known, p.Addr)
	}
	if err := g.sendTo(ctx, messageTypeGossip, peer, known); err != nil {
		return false, &sendError{t: messageTypeGossip, peer: peer, err: err}
	}
	return true, nil
}

// sendTo sends the given peers and a snapshot of the local store to peer.
//
// If the snapshot doesn't fit in a packet, only the peers are sent so the
// node still takes part in membership.
func (g *Gossip) sendTo(
	ctx context.Context,
	t messageType,
	peer Peer,
	peers []string,
) error {
	version, entries := g.store.Snapshot()

	m := &message{
		Peers:   peers,
		Version: version,
		Entries: make(map[string][]byte, len(entries)),
	}
	for k, v := range entries {
		m.Entries[k] = v
	}

	b, err := encodeMessage(t, m, g.config.MaxPacketSize)
	if errors.Is(err, ErrPacketTooLarge) {
		g.metrics.DroppedMessages.WithLabelValues("too_large").Inc()
		g.logger.Warn(
			"store exceeds max packet size; sending peers only",
			zap.String("type", t.String()),
			zap.String("peer", peer.Addr),
			zap.Error(err),
		)

		// Version 0 is never newer than the receivers store, so the
		// receiver only records the peers.
		b, err = encodeMessage(t, &message{Peers: peers}, g.config.MaxPacketSize)
	}
	if err != nil {
		return err
	}

	if err := g.transport.SendTo(ctx, b, peer.Addr); err != nil {
		if errors.Is(err, ErrWouldBlock) {
			g.metrics.DroppedMessages.WithLabelValues("would_block").Inc()
		}
		return err
	}

	g.metrics.MessagesOutbound.WithLabelValues(t.String()).Inc()
	g.metrics.PacketBytesOutbound.Add(float64(len(b)))

	return nil
}

func (g *Gossip) logReceiveError(err error) {
	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		// No packet to receive this round.
	case errors.Is(err, ErrMalformedMessage):
		g.logger.Warn("discarded packet", zap.Error(err))
	default:
		g.logger.Warn("receive", zap.Error(err))
	}
}

func (g *Gossip) logSendError(err *sendError) {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
	case errors.Is(err, ErrWouldBlock):
		g.logger.Debug(
			"send would block; dropped",
			zap.String("type", err.t.String()),
			zap.String("peer", err.peer.Addr),
		)
	default:
		g.logger.Warn(
			"send",
			zap.String("type", err.t.String()),
			zap.String("peer", err.peer.Addr),
			zap.Error(err.err),
		)
	}
}

type sendError struct {
	t    messageType
	peer Peer
	err  error
}

func (e *sendError) Error() string {
	return fmt.Sprintf("send %s: %s: %s", e.t, e.peer.Addr, e.err)
}

func (e *sendError) Unwrap() error {
	return e.err
}
