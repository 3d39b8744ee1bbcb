package node

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourusername/btcverifier/internal/crypto"
	"github.com/yourusername/btcverifier/internal/merkle"
	"github.com/yourusername/btcverifier/internal/pow"
	"github.com/yourusername/btcverifier/internal/storage"
	"github.com/yourusername/btcverifier/internal/tx"
	"github.com/yourusername/btcverifier/internal/verifier"
)

const (
	helloHex     = "68656c6c6f"
	helloHash256 = "9595c9df90075148eb06860365df33584b75bff782a510c6cd4883a419833d50"
	testGasLimit = 100000
)

func newTestNode(t *testing.T, opts ...Option) *Node {
	t.Helper()

	store, err := storage.NewMemStorage()
	if err != nil {
		t.Fatalf("NewMemStorage failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	n, err := New(store, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	return n
}

func signedCall(n *Node, wallet *crypto.Wallet, nonce uint64, argument string) *tx.Transaction {
	call := tx.NewCall(n.ChainID(), nonce, n.ContractAddress(), verifier.MethodHashBtcHeader, argument, testGasLimit)
	call.Sign(wallet)
	return call
}

func TestNewCreatesGenesis(t *testing.T) {
	n := newTestNode(t)

	info := n.Info()
	if info.Height != 0 {
		t.Errorf("Height = %d, want 0", info.Height)
	}
	if info.ChainID != DefaultChainID {
		t.Errorf("ChainID = %d, want %d", info.ChainID, DefaultChainID)
	}
	if info.ContractAddress != verifier.Address() {
		t.Errorf("ContractAddress = %s, want %s", info.ContractAddress, verifier.Address())
	}

	genesis, err := n.Block(0)
	if err != nil {
		t.Fatalf("Block(0) failed: %v", err)
	}
	if !bytes.Equal(genesis.Hash, info.BestBlockHash) {
		t.Error("genesis is not the chain tip")
	}
	if !pow.IsValidHash(genesis.Hash, genesis.Header.Bits) {
		t.Error("genesis hash does not meet its difficulty")
	}
}

func TestNewLoadsExistingChain(t *testing.T) {
	store, _ := storage.NewMemStorage()
	defer store.Close()

	first, err := New(store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	wallet, _ := crypto.NewWallet()
	if err := first.SubmitTransaction(signedCall(first, wallet, 0, helloHex)); err != nil {
		t.Fatalf("SubmitTransaction failed: %v", err)
	}
	if _, err := first.SealBlock(context.Background()); err != nil {
		t.Fatalf("SealBlock failed: %v", err)
	}

	second, err := New(store)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if second.Info().Height != 1 {
		t.Errorf("reloaded height = %d, want 1", second.Info().Height)
	}

	nonce, _ := second.Nonce(wallet.GetAddress())
	if nonce != 1 {
		t.Errorf("reloaded nonce = %d, want 1", nonce)
	}
}

func TestCall(t *testing.T) {
	n := newTestNode(t)

	got, err := n.Call(verifier.MethodHashBtcHeader, helloHex)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != helloHash256 {
		t.Errorf("Call = %s, want %s", got, helloHash256)
	}

	if _, err := n.Call(verifier.MethodHashBtcHeader, "zz"); !verifier.IsRevert(err) {
		t.Errorf("Call(zz) error = %v, want revert", err)
	}

	if n.Info().Pending != 0 {
		t.Error("view call touched the mempool")
	}
}

func TestSubmitAndSeal(t *testing.T) {
	n := newTestNode(t)
	wallet, _ := crypto.NewWallet()

	good := signedCall(n, wallet, 0, helloHex)
	bad := signedCall(n, wallet, 1, "abc")

	for _, call := range []*tx.Transaction{good, bad} {
		if err := n.SubmitTransaction(call); err != nil {
			t.Fatalf("SubmitTransaction failed: %v", err)
		}
	}

	if _, err := n.Receipt(good.ID); !errors.Is(err, ErrPending) {
		t.Errorf("Receipt before sealing error = %v, want ErrPending", err)
	}

	block, err := n.SealBlock(context.Background())
	if err != nil {
		t.Fatalf("SealBlock failed: %v", err)
	}
	if block == nil {
		t.Fatal("SealBlock returned no block")
	}

	if block.Height != 1 {
		t.Errorf("block height = %d, want 1", block.Height)
	}
	if len(block.TxIDs) != 2 {
		t.Errorf("block has %d txs, want 2", len(block.TxIDs))
	}
	if block.Header.MerkleRoot != merkle.BuildMerkleRoot([][]byte{good.ID, bad.ID}) {
		t.Error("merkle root does not commit to the included transactions")
	}
	if !bytes.Equal(crypto.HashBlockHeader(&block.Header), block.Hash) {
		t.Error("block hash does not match header")
	}

	receipt, err := n.Receipt(good.ID)
	if err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	if !receipt.Succeeded() || receipt.Output != helloHash256 {
		t.Errorf("receipt = %+v, want success with %s", receipt, helloHash256)
	}
	if !bytes.Equal(receipt.BlockHash, block.Hash) || receipt.BlockHeight != 1 {
		t.Error("receipt does not reference the sealing block")
	}
	wantGas := good.IntrinsicGas() + verifier.GasCost(helloHex, false)
	if receipt.GasUsed != wantGas {
		t.Errorf("GasUsed = %d, want %d", receipt.GasUsed, wantGas)
	}

	reverted, err := n.Receipt(bad.ID)
	if err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	if reverted.Status != tx.StatusReverted || reverted.Output != "" {
		t.Errorf("reverted receipt = %+v", reverted)
	}
	if reverted.GasUsed == 0 {
		t.Error("reverted call should still be charged")
	}

	if n.Info().Pending != 0 {
		t.Errorf("Pending = %d after sealing", n.Info().Pending)
	}

	empty, err := n.SealBlock(context.Background())
	if err != nil || empty != nil {
		t.Errorf("SealBlock on empty mempool = %v, %v; want nil, nil", empty, err)
	}
}

func TestSubmitRejections(t *testing.T) {
	n := newTestNode(t)
	wallet, _ := crypto.NewWallet()

	if err := n.SubmitTransaction(signedCall(n, wallet, 0, helloHex)); err != nil {
		t.Fatalf("SubmitTransaction failed: %v", err)
	}

	wrongChain := tx.NewCall(1, 1, n.ContractAddress(), verifier.MethodHashBtcHeader, helloHex, testGasLimit)
	wrongChain.Sign(wallet)

	wrongTarget := tx.NewCall(n.ChainID(), 1, wallet.GetAddress(), verifier.MethodHashBtcHeader, helloHex, testGasLimit)
	wrongTarget.Sign(wallet)

	lowGas := tx.NewCall(n.ChainID(), 1, n.ContractAddress(), verifier.MethodHashBtcHeader, helloHex, 21000)
	lowGas.Sign(wallet)

	tampered := signedCall(n, wallet, 1, helloHex)
	tampered.Argument = "00"

	tests := []struct {
		name string
		call *tx.Transaction
		want error
	}{
		{name: "duplicate nonce", call: signedCall(n, wallet, 0, "00"), want: ErrNonceTooLow},
		{name: "nonce gap", call: signedCall(n, wallet, 5, helloHex), want: ErrNonceTooHigh},
		{name: "wrong chain", call: wrongChain, want: ErrWrongChain},
		{name: "wrong target", call: wrongTarget, want: ErrNoContract},
		{name: "gas below intrinsic", call: lowGas, want: ErrIntrinsicGas},
		{name: "bad signature", call: tampered, want: tx.ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := n.SubmitTransaction(tt.call); !errors.Is(err, tt.want) {
				t.Errorf("SubmitTransaction error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubmitDuplicate(t *testing.T) {
	n := newTestNode(t)
	wallet, _ := crypto.NewWallet()
	call := signedCall(n, wallet, 0, helloHex)

	if err := n.SubmitTransaction(call); err != nil {
		t.Fatalf("SubmitTransaction failed: %v", err)
	}
	if err := n.SubmitTransaction(call); !errors.Is(err, ErrKnownTransaction) {
		t.Errorf("resubmit error = %v, want ErrKnownTransaction", err)
	}

	if _, err := n.SealBlock(context.Background()); err != nil {
		t.Fatalf("SealBlock failed: %v", err)
	}
	if err := n.SubmitTransaction(call); !errors.Is(err, ErrKnownTransaction) {
		t.Errorf("resubmit after inclusion error = %v, want ErrKnownTransaction", err)
	}
}

func TestExecuteOutOfGas(t *testing.T) {
	n := newTestNode(t)
	wallet, _ := crypto.NewWallet()

	call := tx.NewCall(n.ChainID(), 0, n.ContractAddress(), verifier.MethodHashBtcHeader, helloHex, 0)
	call.GasLimit = call.IntrinsicGas() + 1
	call.Sign(wallet)

	receipt := n.Execute(call)
	if receipt.Status != tx.StatusReverted {
		t.Errorf("Status = %d, want reverted", receipt.Status)
	}
	if receipt.GasUsed != call.GasLimit {
		t.Errorf("GasUsed = %d, want the whole limit %d", receipt.GasUsed, call.GasLimit)
	}
}

func TestExecuteUnknownMethod(t *testing.T) {
	n := newTestNode(t)
	wallet, _ := crypto.NewWallet()

	call := tx.NewCall(n.ChainID(), 0, n.ContractAddress(), "transfer", "", testGasLimit)
	call.Sign(wallet)

	receipt := n.Execute(call)
	if receipt.Status != tx.StatusReverted {
		t.Errorf("Status = %d, want reverted", receipt.Status)
	}
	if want := call.IntrinsicGas() + verifier.DispatchGas; receipt.GasUsed != want {
		t.Errorf("GasUsed = %d, want %d", receipt.GasUsed, want)
	}
}

func TestReceiptUnknown(t *testing.T) {
	n := newTestNode(t)

	if _, err := n.Receipt(make([]byte, 32)); !errors.Is(err, ErrUnknownTransaction) {
		t.Errorf("Receipt error = %v, want ErrUnknownTransaction", err)
	}
}

func TestMaxBlockTxs(t *testing.T) {
	n := newTestNode(t, WithMaxBlockTxs(2))
	wallet, _ := crypto.NewWallet()

	for i := uint64(0); i < 3; i++ {
		if err := n.SubmitTransaction(signedCall(n, wallet, i, helloHex)); err != nil {
			t.Fatalf("SubmitTransaction %d failed: %v", i, err)
		}
	}

	block, err := n.SealBlock(context.Background())
	if err != nil {
		t.Fatalf("SealBlock failed: %v", err)
	}
	if len(block.TxIDs) != 2 {
		t.Errorf("block has %d txs, want 2", len(block.TxIDs))
	}
	if n.Info().Pending != 1 {
		t.Errorf("Pending = %d, want 1", n.Info().Pending)
	}

	// The pending tx keeps the sender's next nonce at 3
	if nonce, _ := n.Nonce(wallet.GetAddress()); nonce != 3 {
		t.Errorf("Nonce = %d, want 3", nonce)
	}
}

func TestOnAdmit(t *testing.T) {
	n := newTestNode(t)
	wallet, _ := crypto.NewWallet()

	var seen []*tx.Transaction
	n.OnAdmit(func(transaction *tx.Transaction) {
		seen = append(seen, transaction)
	})

	call := signedCall(n, wallet, 0, helloHex)
	if err := n.SubmitTransaction(call); err != nil {
		t.Fatalf("SubmitTransaction failed: %v", err)
	}
	n.SubmitTransaction(call)

	if len(seen) != 1 || seen[0] != call {
		t.Errorf("OnAdmit saw %d transactions, want exactly the admitted one", len(seen))
	}
}

func TestRun(t *testing.T) {
	n := newTestNode(t, WithBlockInterval(10*time.Millisecond))
	wallet, _ := crypto.NewWallet()

	call := signedCall(n, wallet, 0, helloHex)
	if err := n.SubmitTransaction(call); err != nil {
		t.Fatalf("SubmitTransaction failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := n.Receipt(call.ID); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("transaction was not included")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}

func TestInvalidDifficulty(t *testing.T) {
	store, _ := storage.NewMemStorage()
	defer store.Close()

	if _, err := New(store, WithDifficultyBits(pow.MaxTargetBits+1)); !errors.Is(err, pow.ErrTargetBits) {
		t.Errorf("New error = %v, want ErrTargetBits", err)
	}
}

func TestValidateChain(t *testing.T) {
	n := newTestNode(t, WithDifficultyBits(4))
	wallet, _ := crypto.NewWallet()

	for nonce := uint64(0); nonce < 3; nonce++ {
		if err := n.SubmitTransaction(signedCall(n, wallet, nonce, helloHex)); err != nil {
			t.Fatalf("SubmitTransaction failed: %v", err)
		}
		if _, err := n.SealBlock(context.Background()); err != nil {
			t.Fatalf("SealBlock failed: %v", err)
		}
	}

	if err := n.ValidateChain(); err != nil {
		t.Fatalf("ValidateChain failed on a fresh chain: %v", err)
	}

	block, err := n.Block(2)
	if err != nil {
		t.Fatalf("Block(2) failed: %v", err)
	}
	block.Header.Timestamp++
	if err := n.store.CommitBlock(&storage.Commit{Block: block}); err != nil {
		t.Fatalf("CommitBlock failed: %v", err)
	}

	if err := n.ValidateChain(); !errors.Is(err, ErrInvalidChain) {
		t.Errorf("ValidateChain = %v, want ErrInvalidChain", err)
	}
}

func TestValidateChainCorruptTransaction(t *testing.T) {
	n := newTestNode(t, WithDifficultyBits(4))
	wallet, _ := crypto.NewWallet()

	if err := n.SubmitTransaction(signedCall(n, wallet, 0, helloHex)); err != nil {
		t.Fatalf("SubmitTransaction failed: %v", err)
	}
	block, err := n.SealBlock(context.Background())
	if err != nil {
		t.Fatalf("SealBlock failed: %v", err)
	}

	stored, err := n.store.GetTransaction(block.TxIDs[0])
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	stored.Argument = "00"
	if err := n.store.CommitBlock(&storage.Commit{Block: block, Transactions: []*tx.Transaction{stored}}); err != nil {
		t.Fatalf("CommitBlock failed: %v", err)
	}

	if err := n.ValidateChain(); !errors.Is(err, ErrInvalidChain) {
		t.Errorf("ValidateChain = %v, want ErrInvalidChain", err)
	}
}
