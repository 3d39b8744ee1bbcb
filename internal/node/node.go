package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/btcverifier/internal/crypto"
	"github.com/yourusername/btcverifier/internal/merkle"
	"github.com/yourusername/btcverifier/internal/pow"
	"github.com/yourusername/btcverifier/internal/storage"
	"github.com/yourusername/btcverifier/internal/tx"
	"github.com/yourusername/btcverifier/internal/verifier"
	"github.com/yourusername/btcverifier/pkg/types"
)

// BlockVersion is written into every sealed header
const BlockVersion = 1

var (
	ErrWrongChain         = errors.New("transaction is for a different chain")
	ErrNoContract         = errors.New("no contract at target address")
	ErrNonceTooLow        = errors.New("nonce too low")
	ErrNonceTooHigh       = errors.New("nonce too high")
	ErrIntrinsicGas       = errors.New("gas limit below intrinsic gas")
	ErrKnownTransaction   = errors.New("transaction already known")
	ErrPending            = errors.New("transaction pending")
	ErrUnknownTransaction = errors.New("unknown transaction")
)

// ChainInfo summarises the node's view of the chain
type ChainInfo struct {
	ChainID         uint64
	Height          uint64
	BestBlockHash   []byte
	ContractAddress string
	Pending         int
}

// Node admits call transactions, executes them against the verifier and
// seals them into blocks so submitters get a receipt.
type Node struct {
	opts     Options
	logger   zerolog.Logger
	store    *storage.Storage
	verifier *verifier.Verifier
	contract string

	mu      sync.Mutex
	mempool []*tx.Transaction
	known   map[string]struct{}
	nonces  map[string]uint64 // next nonce per sender, counting the mempool
	tip     []byte
	height  uint64

	sealMu sync.Mutex

	handlersMu sync.RWMutex
	onAdmit    []func(*tx.Transaction)
}

// New opens the chain held in store, creating the genesis block if the store is empty
func New(store *storage.Storage, opts ...Option) (*Node, error) {
	options := NewOptions(opts...)
	if options.DifficultyBits > pow.MaxTargetBits {
		return nil, fmt.Errorf("%w: %d", pow.ErrTargetBits, options.DifficultyBits)
	}

	n := &Node{
		opts:     options,
		logger:   options.Logger.With().Str("component", "node").Logger(),
		store:    store,
		verifier: verifier.New(),
		contract: verifier.Address(),
		known:    make(map[string]struct{}),
		nonces:   make(map[string]uint64),
	}

	tip, err := store.GetChainTip()
	switch {
	case err == nil:
		block, err := store.GetBlock(tip)
		if err != nil {
			return nil, fmt.Errorf("failed to load chain tip: %w", err)
		}
		n.tip = block.Hash
		n.height = block.Height
		n.logger.Info().Uint64("height", n.height).Hex("tip", n.tip).Msg("loaded existing chain")
	case errors.Is(err, storage.ErrNotFound):
		if err := n.createGenesis(); err != nil {
			return nil, fmt.Errorf("failed to create genesis block: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read chain tip: %w", err)
	}

	return n, nil
}

func (n *Node) createGenesis() error {
	header := types.BlockHeader{
		Version:   BlockVersion,
		Timestamp: uint32(time.Now().Unix()),
		Bits:      n.opts.DifficultyBits,
	}

	block, err := n.seal(context.Background(), header, 0, nil)
	if err != nil {
		return err
	}

	if err := n.store.CommitBlock(&storage.Commit{Block: block}); err != nil {
		return err
	}

	n.tip = block.Hash
	n.height = 0
	n.logger.Info().Hex("hash", block.Hash).Msg("created genesis block")

	return nil
}

// ContractAddress is the address the verifier is bound to
func (n *Node) ContractAddress() string {
	return n.contract
}

// ChainID is the id transactions must be signed for
func (n *Node) ChainID() uint64 {
	return n.opts.ChainID
}

// OnAdmit registers a callback run after a transaction enters the mempool
func (n *Node) OnAdmit(handler func(*tx.Transaction)) {
	n.handlersMu.Lock()
	n.onAdmit = append(n.onAdmit, handler)
	n.handlersMu.Unlock()
}

// Call runs a read-only invocation of the verifier
func (n *Node) Call(method, argument string) (string, error) {
	return n.verifier.Invoke(method, argument)
}

// nextNonceLocked returns the nonce the sender's next transaction must carry
func (n *Node) nextNonceLocked(address string) (uint64, error) {
	if nonce, ok := n.nonces[address]; ok {
		return nonce, nil
	}
	return n.store.GetNonce(address)
}

// Nonce returns the next nonce for address, counting pending transactions
func (n *Node) Nonce(address string) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.nextNonceLocked(address)
}

// SubmitTransaction validates a transaction and adds it to the mempool
func (n *Node) SubmitTransaction(transaction *tx.Transaction) error {
	if err := transaction.Verify(); err != nil {
		return err
	}

	if transaction.ChainID != n.opts.ChainID {
		return fmt.Errorf("%w: got %d, want %d", ErrWrongChain, transaction.ChainID, n.opts.ChainID)
	}

	if transaction.To != n.contract {
		return fmt.Errorf("%w: %s", ErrNoContract, transaction.To)
	}

	if intrinsic := transaction.IntrinsicGas(); transaction.GasLimit < intrinsic {
		return fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, transaction.GasLimit, intrinsic)
	}

	id := transaction.IDHex()
	sender := transaction.Sender()

	n.mu.Lock()
	if _, ok := n.known[id]; ok || n.store.HasTransaction(transaction.ID) {
		n.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrKnownTransaction, id)
	}

	expected, err := n.nextNonceLocked(sender)
	if err != nil {
		n.mu.Unlock()
		return err
	}

	switch {
	case transaction.Nonce < expected:
		n.mu.Unlock()
		return fmt.Errorf("%w: have %d, want %d", ErrNonceTooLow, transaction.Nonce, expected)
	case transaction.Nonce > expected:
		n.mu.Unlock()
		return fmt.Errorf("%w: have %d, want %d", ErrNonceTooHigh, transaction.Nonce, expected)
	}

	n.mempool = append(n.mempool, transaction)
	n.known[id] = struct{}{}
	n.nonces[sender] = expected + 1
	pending := len(n.mempool)
	n.mu.Unlock()

	n.logger.Debug().
		Str("tx", id).
		Str("from", sender).
		Uint64("nonce", transaction.Nonce).
		Int("pending", pending).
		Msg("admitted transaction")

	n.handlersMu.RLock()
	handlers := n.onAdmit
	n.handlersMu.RUnlock()

	for _, handler := range handlers {
		handler(transaction)
	}

	return nil
}

// Execute runs a transaction against the verifier and returns its receipt
// without block fields. Gas is charged even when the call reverts.
func (n *Node) Execute(transaction *tx.Transaction) *tx.Receipt {
	receipt := &tx.Receipt{
		TxID:   transaction.ID,
		Status: tx.StatusSuccess,
		From:   transaction.Sender(),
		To:     transaction.To,
	}

	output, err := n.verifier.Invoke(transaction.Method, transaction.Argument)
	reverted := err != nil

	gas := transaction.IntrinsicGas()
	if errors.Is(err, verifier.ErrUnknownMethod) {
		gas += verifier.DispatchGas
	} else {
		gas += verifier.GasCost(transaction.Argument, reverted)
	}

	switch {
	case gas > transaction.GasLimit:
		receipt.Status = tx.StatusReverted
		receipt.GasUsed = transaction.GasLimit
	case reverted:
		receipt.Status = tx.StatusReverted
		receipt.GasUsed = gas
	default:
		receipt.Output = output
		receipt.GasUsed = gas
	}

	return receipt
}

// Receipt returns the receipt of an included transaction
func (n *Node) Receipt(id []byte) (*tx.Receipt, error) {
	receipt, err := n.store.GetReceipt(id)
	if err == nil {
		return receipt, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	n.mu.Lock()
	_, pending := n.known[crypto.EncodeHex(id)]
	n.mu.Unlock()

	if pending {
		return nil, fmt.Errorf("%w: %x", ErrPending, id)
	}
	return nil, fmt.Errorf("%w: %x", ErrUnknownTransaction, id)
}

// Block returns the block at height
func (n *Node) Block(height uint64) (*types.Block, error) {
	return n.store.GetBlockByHeight(height)
}

// Info reports chain id, height and tip
func (n *Node) Info() ChainInfo {
	n.mu.Lock()
	defer n.mu.Unlock()

	return ChainInfo{
		ChainID:         n.opts.ChainID,
		Height:          n.height,
		BestBlockHash:   n.tip,
		ContractAddress: n.contract,
		Pending:         len(n.mempool),
	}
}

// seal mines a header carrying the given transaction IDs
func (n *Node) seal(ctx context.Context, header types.BlockHeader, height uint64, txIDs [][]byte) (*types.Block, error) {
	header.MerkleRoot = merkle.BuildMerkleRoot(txIDs)

	proof, err := pow.NewProofOfWork(&header)
	if err != nil {
		return nil, err
	}

	hash, err := proof.Mine(ctx)
	if err != nil {
		return nil, err
	}

	return &types.Block{
		Header: header,
		Height: height,
		TxIDs:  txIDs,
		Hash:   hash,
	}, nil
}

// SealBlock includes pending transactions in a new block. It returns nil
// when the mempool is empty.
func (n *Node) SealBlock(ctx context.Context) (*types.Block, error) {
	n.sealMu.Lock()
	defer n.sealMu.Unlock()

	n.mu.Lock()
	count := len(n.mempool)
	if count > n.opts.MaxBlockTxs {
		count = n.opts.MaxBlockTxs
	}
	batch := make([]*tx.Transaction, count)
	copy(batch, n.mempool)
	prev := n.tip
	height := n.height + 1
	n.mu.Unlock()

	if len(batch) == 0 {
		return nil, nil
	}

	receipts := make([]*tx.Receipt, len(batch))
	txIDs := make([][]byte, len(batch))
	nonces := make(map[string]uint64)
	for i, transaction := range batch {
		receipts[i] = n.Execute(transaction)
		txIDs[i] = transaction.ID
		nonces[receipts[i].From] = transaction.Nonce + 1
	}

	header := types.BlockHeader{
		Version:   BlockVersion,
		Timestamp: uint32(time.Now().Unix()),
		Bits:      n.opts.DifficultyBits,
	}
	copy(header.PrevBlockHash[:], prev)

	block, err := n.seal(ctx, header, height, txIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to seal block %d: %w", height, err)
	}

	for _, receipt := range receipts {
		receipt.BlockHash = block.Hash
		receipt.BlockHeight = height
	}

	commit := &storage.Commit{
		Block:        block,
		Transactions: batch,
		Receipts:     receipts,
		Nonces:       nonces,
	}
	if err := n.store.CommitBlock(commit); err != nil {
		return nil, err
	}

	// Only the sealer removes from the mempool and it always takes the
	// oldest entries, so the batch is still the prefix.
	n.mu.Lock()
	n.mempool = append([]*tx.Transaction(nil), n.mempool[len(batch):]...)
	for _, transaction := range batch {
		delete(n.known, transaction.IDHex())
	}
	for sender, next := range nonces {
		if n.nonces[sender] <= next {
			delete(n.nonces, sender)
		}
	}
	n.tip = block.Hash
	n.height = height
	n.mu.Unlock()

	n.logger.Info().
		Uint64("height", height).
		Hex("hash", block.Hash).
		Int("txs", len(batch)).
		Uint32("nonce", block.Header.Nonce).
		Msg("sealed block")

	return block, nil
}

// Run seals a block every BlockInterval until ctx is cancelled
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.opts.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := n.SealBlock(ctx); err != nil && ctx.Err() == nil {
				n.logger.Error().Err(err).Msg("sealing failed")
			}
		}
	}
}
