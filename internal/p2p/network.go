package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"

	"github.com/yourusername/btcverifier/internal/node"
	"github.com/yourusername/btcverifier/internal/tx"
)

const (
	// Protocol IDs
	TxProtocol   = "/btcverifier/tx/1.0.0"
	PingProtocol = "/btcverifier/ping/1.0.0"

	streamTimeout = 10 * time.Second
)

// MessageType represents the type of P2P message
type MessageType string

const (
	MsgTypeNewTx MessageType = "new_tx"
	MsgTypePing  MessageType = "ping"
	MsgTypePong  MessageType = "pong"
)

// Message represents a P2P network message
type Message struct {
	Type      MessageType `json:"type"`
	Data      []byte      `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	From      string      `json:"from"`
}

// Network gossips admitted transactions between verifier nodes
type Network struct {
	host   host.Host
	node   *node.Node
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewNetwork creates a libp2p host on listenAddr and hooks it to n so every
// transaction the node admits is relayed to connected peers.
func NewNetwork(ctx context.Context, n *node.Node, listenAddr string, logger zerolog.Logger) (*Network, error) {
	addr, err := multiaddr.NewMultiaddr(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address: %w", err)
	}

	h, err := libp2p.New(libp2p.ListenAddrs(addr))
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	netCtx, cancel := context.WithCancel(ctx)

	nw := &Network{
		host:   h,
		node:   n,
		logger: logger.With().Str("component", "p2p").Logger(),
		ctx:    netCtx,
		cancel: cancel,
	}

	h.SetStreamHandler(protocol.ID(TxProtocol), nw.handleTxStream)
	h.SetStreamHandler(protocol.ID(PingProtocol), nw.handlePingStream)

	n.OnAdmit(nw.BroadcastTransaction)

	return nw, nil
}

// Start logs the addresses peers can dial
func (n *Network) Start() error {
	for _, addr := range n.Addrs() {
		n.logger.Info().Str("address", addr).Msg("P2P network listening")
	}
	return nil
}

// Addrs returns the full multiaddrs of this host, including its peer ID
func (n *Network) Addrs() []string {
	addrs := make([]string, 0, len(n.host.Addrs()))
	for _, addr := range n.host.Addrs() {
		addrs = append(addrs, fmt.Sprintf("%s/p2p/%s", addr, n.host.ID()))
	}
	return addrs
}

// ID returns the host's peer ID
func (n *Network) ID() peer.ID {
	return n.host.ID()
}

// Stop gracefully shuts down the network
func (n *Network) Stop() error {
	n.cancel()
	return n.host.Close()
}

// ConnectToPeer connects to a peer using its multiaddr
func (n *Network) ConnectToPeer(peerAddr string) error {
	addr, err := multiaddr.NewMultiaddr(peerAddr)
	if err != nil {
		return fmt.Errorf("invalid peer address: %w", err)
	}

	peerInfo, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return fmt.Errorf("failed to parse peer info: %w", err)
	}

	if err := n.host.Connect(n.ctx, *peerInfo); err != nil {
		return fmt.Errorf("failed to connect to peer: %w", err)
	}

	n.logger.Info().Str("peer", peerInfo.ID.String()).Msg("connected to peer")

	return nil
}

// BroadcastTransaction sends a transaction to every connected peer
func (n *Network) BroadcastTransaction(transaction *tx.Transaction) {
	data, err := transaction.Serialize()
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to serialize transaction")
		return
	}

	msg := Message{
		Type:      MsgTypeNewTx,
		Data:      data,
		Timestamp: time.Now(),
		From:      n.host.ID().String(),
	}

	for _, peerID := range n.host.Network().Peers() {
		go func(peerID peer.ID) {
			if err := n.sendMessage(peerID, TxProtocol, msg); err != nil {
				n.logger.Debug().Err(err).Str("peer", peerID.String()).Msg("failed to relay transaction")
			}
		}(peerID)
	}
}

// sendMessage sends a message to a specific peer
func (n *Network) sendMessage(peerID peer.ID, proto string, msg Message) error {
	ctx, cancel := context.WithTimeout(n.ctx, streamTimeout)
	defer cancel()

	stream, err := n.host.NewStream(ctx, peerID, protocol.ID(proto))
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer stream.Close()

	if err := json.NewEncoder(stream).Encode(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// handleTxStream admits transactions relayed by peers
func (n *Network) handleTxStream(stream network.Stream) {
	defer stream.Close()

	from := stream.Conn().RemotePeer().String()

	var msg Message
	if err := json.NewDecoder(stream).Decode(&msg); err != nil {
		n.logger.Debug().Err(err).Str("peer", from).Msg("failed to decode tx message")
		return
	}

	if msg.Type != MsgTypeNewTx {
		return
	}

	transaction, err := tx.DeserializeTransaction(msg.Data)
	if err != nil {
		n.logger.Warn().Err(err).Str("peer", from).Msg("received malformed transaction")
		return
	}

	err = n.node.SubmitTransaction(transaction)
	switch {
	case err == nil:
		n.logger.Debug().Str("tx", transaction.IDHex()).Str("peer", from).Msg("received transaction")
	case errors.Is(err, node.ErrKnownTransaction):
		// already relayed to us by someone else
	default:
		n.logger.Warn().Err(err).Str("tx", transaction.IDHex()).Str("peer", from).Msg("rejected transaction")
	}
}

// handlePingStream answers liveness checks
func (n *Network) handlePingStream(stream network.Stream) {
	defer stream.Close()

	var msg Message
	if err := json.NewDecoder(stream).Decode(&msg); err != nil {
		return
	}

	if msg.Type == MsgTypePing {
		response := Message{
			Type:      MsgTypePong,
			Timestamp: time.Now(),
			From:      n.host.ID().String(),
		}
		json.NewEncoder(stream).Encode(response)
	}
}

// Ping measures the round trip to a connected peer
func (n *Network) Ping(ctx context.Context, peerID peer.ID) (time.Duration, error) {
	stream, err := n.host.NewStream(ctx, peerID, protocol.ID(PingProtocol))
	if err != nil {
		return 0, fmt.Errorf("failed to open stream: %w", err)
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		stream.SetDeadline(deadline)
	}

	start := time.Now()
	msg := Message{
		Type:      MsgTypePing,
		Timestamp: start,
		From:      n.host.ID().String(),
	}
	if err := json.NewEncoder(stream).Encode(msg); err != nil {
		return 0, fmt.Errorf("failed to send ping: %w", err)
	}

	var response Message
	if err := json.NewDecoder(stream).Decode(&response); err != nil {
		return 0, fmt.Errorf("failed to read pong: %w", err)
	}
	if response.Type != MsgTypePong {
		return 0, fmt.Errorf("unexpected reply %q", response.Type)
	}

	return time.Since(start), nil
}

// GetPeerCount returns the number of connected peers
func (n *Network) GetPeerCount() int {
	return len(n.host.Network().Peers())
}

// GetPeers returns a list of connected peer IDs
func (n *Network) GetPeers() []string {
	connected := n.host.Network().Peers()

	peers := make([]string, 0, len(connected))
	for _, p := range connected {
		peers = append(peers, p.String())
	}
	return peers
}
