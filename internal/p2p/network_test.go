package p2p

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/btcverifier/internal/crypto"
	"github.com/yourusername/btcverifier/internal/node"
	"github.com/yourusername/btcverifier/internal/storage"
	"github.com/yourusername/btcverifier/internal/tx"
	"github.com/yourusername/btcverifier/internal/verifier"
)

func newTestNetwork(t *testing.T) (*Network, *node.Node) {
	t.Helper()

	store, err := storage.NewMemStorage()
	if err != nil {
		t.Fatalf("NewMemStorage failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	n, err := node.New(store, node.WithDifficultyBits(4))
	if err != nil {
		t.Fatalf("node.New failed: %v", err)
	}

	network, err := NewNetwork(context.Background(), n, "/ip4/127.0.0.1/tcp/0", zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create network: %v", err)
	}
	t.Cleanup(func() { network.Stop() })

	return network, n
}

func connect(t *testing.T, from, to *Network) {
	t.Helper()

	addrs := to.Addrs()
	if len(addrs) == 0 {
		t.Fatal("host has no listen addresses")
	}

	if err := from.ConnectToPeer(addrs[0]); err != nil {
		t.Fatalf("ConnectToPeer failed: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestNewNetwork(t *testing.T) {
	network, _ := newTestNetwork(t)

	if network.host == nil {
		t.Fatal("Host is nil")
	}
	if err := network.Start(); err != nil {
		t.Errorf("Failed to start network: %v", err)
	}
	if len(network.Addrs()) == 0 {
		t.Error("expected at least one listen address")
	}
	if network.GetPeerCount() != 0 {
		t.Errorf("peer count = %d, want 0", network.GetPeerCount())
	}
}

func TestNewNetworkInvalidAddress(t *testing.T) {
	_, n := newTestNetwork(t)

	if _, err := NewNetwork(context.Background(), n, "not-a-multiaddr", zerolog.Nop()); err == nil {
		t.Error("expected error for invalid listen address")
	}
}

func TestConnectToPeer(t *testing.T) {
	a, _ := newTestNetwork(t)
	b, _ := newTestNetwork(t)

	connect(t, b, a)

	if !waitFor(t, func() bool { return a.GetPeerCount() == 1 && b.GetPeerCount() == 1 }) {
		t.Fatalf("peer counts = %d, %d, want 1, 1", a.GetPeerCount(), b.GetPeerCount())
	}

	if got := b.GetPeers(); len(got) != 1 || got[0] != a.ID().String() {
		t.Errorf("GetPeers = %v, want [%s]", got, a.ID())
	}
}

func TestConnectToPeerInvalidAddress(t *testing.T) {
	network, _ := newTestNetwork(t)

	for _, addr := range []string{"garbage", "/ip4/127.0.0.1/tcp/1"} {
		if err := network.ConnectToPeer(addr); err == nil {
			t.Errorf("ConnectToPeer(%q) succeeded", addr)
		}
	}
}

func TestPing(t *testing.T) {
	a, _ := newTestNetwork(t)
	b, _ := newTestNetwork(t)
	connect(t, b, a)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := b.Ping(ctx, a.ID()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestTransactionGossip(t *testing.T) {
	a, nodeA := newTestNetwork(t)
	b, nodeB := newTestNetwork(t)
	connect(t, b, a)

	if !waitFor(t, func() bool { return a.GetPeerCount() == 1 }) {
		t.Fatal("peers did not connect")
	}

	wallet, _ := crypto.NewWallet()
	call := tx.NewCall(nodeA.ChainID(), 0, nodeA.ContractAddress(), verifier.MethodHashBtcHeader, "68656c6c6f", 100000)
	call.Sign(wallet)

	if err := nodeA.SubmitTransaction(call); err != nil {
		t.Fatalf("SubmitTransaction failed: %v", err)
	}

	if !waitFor(t, func() bool { return nodeB.Info().Pending == 1 }) {
		t.Fatal("transaction did not reach the second node")
	}

	// the echo back to the origin is dropped as a duplicate
	time.Sleep(100 * time.Millisecond)
	if pending := nodeA.Info().Pending; pending != 1 {
		t.Errorf("origin pending = %d, want 1", pending)
	}

	nonce, err := nodeB.Nonce(wallet.GetAddress())
	if err != nil {
		t.Fatalf("Nonce failed: %v", err)
	}
	if nonce != 1 {
		t.Errorf("relayed nonce = %d, want 1", nonce)
	}
}

func TestRelayedTransactionRejected(t *testing.T) {
	a, nodeA := newTestNetwork(t)
	b, nodeB := newTestNetwork(t)
	connect(t, b, a)

	if !waitFor(t, func() bool { return a.GetPeerCount() == 1 }) {
		t.Fatal("peers did not connect")
	}

	// signed for another chain: never admitted, so never relayed back
	wallet, _ := crypto.NewWallet()
	call := tx.NewCall(1, 0, nodeA.ContractAddress(), verifier.MethodHashBtcHeader, "", 100000)
	call.Sign(wallet)

	a.BroadcastTransaction(call)

	time.Sleep(200 * time.Millisecond)
	if pending := nodeB.Info().Pending; pending != 0 {
		t.Errorf("pending = %d, want 0", pending)
	}
}
