package gossip

import (
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
)

// Peer is a node in the cluster, identified by its advertised gossip
// address.
type Peer struct {
	Addr string `json:"addr"`
}

// ParsePeer parses a peer from a 'host:port' address.
//
// The address is normalized so different spellings of the same address,
// such as '127.0.0.1:05000' and '127.0.0.1:5000', identify the same peer.
func ParsePeer(addr string) (Peer, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return Peer{}, fmt.Errorf("invalid peer address: %w", err)
	}
	if host == "" {
		return Peer{}, fmt.Errorf("invalid peer address: %s: missing host", addr)
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil || n == 0 {
		return Peer{}, fmt.Errorf("invalid peer address: %s: invalid port", addr)
	}

	if ip, err := netip.ParseAddr(host); err == nil {
		host = ip.String()
	} else {
		host = strings.ToLower(host)
	}
	return Peer{Addr: net.JoinHostPort(host, strconv.FormatUint(n, 10))}, nil
}

func (p Peer) String() string {
	return p.Addr
}

// peerRegistry is the set of known peers.
//
// The registry only grows. The local peer is always the first entry and is
// never selected as a gossip target.
type peerRegistry struct {
	local Peer

	// peers contains the known peers in the order they were discovered.
	peers []Peer
	known map[Peer]struct{}

	// mu protects the above fields.
	mu sync.RWMutex
}

func newPeerRegistry(local Peer) *peerRegistry {
	return &peerRegistry{
		local: local,
		peers: []Peer{local},
		known: map[Peer]struct{}{
			local: {},
		},
	}
}

func (r *peerRegistry) Local() Peer {
	return r.local
}

// Peers returns a copy of the known peers, including the local peer.
func (r *peerRegistry) Peers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, len(r.peers))
	copy(peers, r.peers)
	return peers
}

func (r *peerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.peers)
}

// RecordIfNew adds the given peer if it is not already known.
//
// Returns whether the peer was added.
func (r *peerRegistry) RecordIfNew(peer Peer) bool {
	r.mu.RLock()
	_, ok := r.known[peer]
	r.mu.RUnlock()
	if ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check again as the peer may have been added since releasing the
	// read lock.
	if _, ok := r.known[peer]; ok {
		return false
	}
	r.known[peer] = struct{}{}
	r.peers = append(r.peers, peer)
	return true
}

// Random returns a known peer selected uniformly at random, excluding the
// local peer. Returns false if no other peers are known.
func (r *peerRegistry) Random() (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// The local peer is always at index 0.
	if len(r.peers) <= 1 {
		return Peer{}, false
	}
	return r.peers[1+rand.Intn(len(r.peers)-1)], true
}
