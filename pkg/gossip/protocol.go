package gossip

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ugorji/go/codec"
)

var (
	// ErrMalformedMessage is returned when a received packet can't be
	// decoded into a gossip message.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrPacketTooLarge is returned when an encoded message exceeds the
	// maximum packet size.
	ErrPacketTooLarge = errors.New("packet too large")
)

const (
	// maxDatagramSize is the largest UDP payload over IPv4.
	maxDatagramSize = 65507
)

type messageType uint8

const (
	// messageTypeGossip is sent by each gossip round.
	messageTypeGossip messageType = iota + 1
	// messageTypeJoin is sent by a node announcing itself when joining the
	// cluster.
	messageTypeJoin
)

func (t messageType) String() string {
	switch t {
	case messageTypeGossip:
		return "gossip"
	case messageTypeJoin:
		return "join"
	default:
		return "unknown"
	}
}

const (
	supportedVersion uint8 = 0
)

// message is the payload of each gossip packet. It contains the senders
// known peers (including itself) and a snapshot of its store.
//
// Both message types have the same payload, and are handled the same by the
// receiver.
type message struct {
	Peers   []string          `codec:"peers"`
	Version uint64            `codec:"version"`
	Entries map[string][]byte `codec:"entries"`
}

func newHandle() *codec.MsgpackHandle {
	var handle codec.MsgpackHandle
	// Write values using the msgpack bin type rather than str.
	handle.WriteExt = true
	return &handle
}

// encodeMessage encodes the message with a fixed header containing the
// message type and protocol version.
//
// Returns ErrPacketTooLarge if the encoded message exceeds maxPacketSize.
func encodeMessage(t messageType, m *message, maxPacketSize int) ([]byte, error) {
	var buf bytes.Buffer
	_ = buf.WriteByte(uint8(t))
	_ = buf.WriteByte(supportedVersion)

	encoder := codec.NewEncoder(&buf, newHandle())
	if err := encoder.Encode(m); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	if buf.Len() > maxPacketSize {
		return nil, fmt.Errorf(
			"%w: %d > %d", ErrPacketTooLarge, buf.Len(), maxPacketSize,
		)
	}
	return buf.Bytes(), nil
}

// decodeMessage decodes a packet encoded by encodeMessage.
//
// Any packet that can't be decoded, or that contains an invalid peer address
// or non-JSON value, returns an error wrapping ErrMalformedMessage.
func decodeMessage(b []byte) (messageType, *message, error) {
	if len(b) == 0 {
		return 0, nil, fmt.Errorf("%w: empty packet", ErrMalformedMessage)
	}
	if len(b) < 2 {
		return 0, nil, fmt.Errorf("%w: missing header", ErrMalformedMessage)
	}

	t := messageType(b[0])
	if t != messageTypeGossip && t != messageTypeJoin {
		return 0, nil, fmt.Errorf(
			"%w: unknown message type: %d", ErrMalformedMessage, b[0],
		)
	}
	if b[1] != supportedVersion {
		return 0, nil, fmt.Errorf(
			"%w: unsupported version: %d", ErrMalformedMessage, b[1],
		)
	}

	var m message
	decoder := codec.NewDecoderBytes(b[2:], newHandle())
	if err := decoder.Decode(&m); err != nil {
		return 0, nil, fmt.Errorf("%w: decode: %s", ErrMalformedMessage, err)
	}

	for i, addr := range m.Peers {
		peer, err := ParsePeer(addr)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
		}
		m.Peers[i] = peer.Addr
	}
	for k, v := range m.Entries {
		if !json.Valid(v) {
			return 0, nil, fmt.Errorf(
				"%w: invalid value: %s", ErrMalformedMessage, k,
			)
		}
	}

	return t, &m, nil
}
