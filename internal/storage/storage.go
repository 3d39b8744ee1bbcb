package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/yourusername/btcverifier/internal/tx"
	"github.com/yourusername/btcverifier/pkg/types"
)

const (
	// Database prefixes
	blockPrefix   = "block_"
	heightPrefix  = "height_"
	txPrefix      = "tx_"
	receiptPrefix = "receipt_"
	noncePrefix   = "nonce_"
	tipKey        = "chain_tip"
)

// ErrNotFound is returned when a key is absent
var ErrNotFound = errors.New("not found")

// Storage represents the LevelDB storage layer
type Storage struct {
	db *leveldb.DB
}

// NewStorage opens (or creates) a database at path
func NewStorage(path string) (*Storage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Storage{db: db}, nil
}

// NewMemStorage opens a database that lives only in memory
func NewMemStorage() (*Storage, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) get(key []byte) ([]byte, error) {
	data, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func heightKey(height uint64) []byte {
	key := make([]byte, len(heightPrefix)+8)
	copy(key, heightPrefix)
	binary.BigEndian.PutUint64(key[len(heightPrefix):], height)
	return key
}

func blockKey(hash []byte) []byte { return append([]byte(blockPrefix), hash...) }

func txKey(id []byte) []byte { return append([]byte(txPrefix), id...) }

func receiptKey(id []byte) []byte { return append([]byte(receiptPrefix), id...) }

func nonceKey(address string) []byte { return []byte(noncePrefix + address) }

// Commit is everything written when a block is sealed
type Commit struct {
	Block        *types.Block
	Transactions []*tx.Transaction
	Receipts     []*tx.Receipt
	Nonces       map[string]uint64
}

// CommitBlock writes a sealed block and its side tables in one batch and
// moves the chain tip to it
func (s *Storage) CommitBlock(c *Commit) error {
	batch := new(leveldb.Batch)

	serialized, err := serializeBlock(c.Block)
	if err != nil {
		return fmt.Errorf("failed to serialize block: %w", err)
	}
	batch.Put(blockKey(c.Block.Hash), serialized)
	batch.Put(heightKey(c.Block.Height), c.Block.Hash)
	batch.Put([]byte(tipKey), c.Block.Hash)

	for _, transaction := range c.Transactions {
		data, err := transaction.Serialize()
		if err != nil {
			return err
		}
		batch.Put(txKey(transaction.ID), data)
	}

	for _, receipt := range c.Receipts {
		data, err := receipt.Serialize()
		if err != nil {
			return err
		}
		batch.Put(receiptKey(receipt.TxID), data)
	}

	for address, nonce := range c.Nonces {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], nonce)
		batch.Put(nonceKey(address), buf[:])
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to commit block %x: %w", c.Block.Hash, err)
	}

	return nil
}

// GetBlock retrieves a block by hash
func (s *Storage) GetBlock(hash []byte) (*types.Block, error) {
	data, err := s.get(blockKey(hash))
	if err != nil {
		return nil, fmt.Errorf("block %x: %w", hash, err)
	}

	block, err := deserializeBlock(data)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize block: %w", err)
	}

	return block, nil
}

// GetBlockByHeight retrieves a block by its height
func (s *Storage) GetBlockByHeight(height uint64) (*types.Block, error) {
	hash, err := s.get(heightKey(height))
	if err != nil {
		return nil, fmt.Errorf("block at height %d: %w", height, err)
	}
	return s.GetBlock(hash)
}

// GetChainTip retrieves the hash of the latest block
func (s *Storage) GetChainTip() ([]byte, error) {
	return s.get([]byte(tipKey))
}

// GetTransaction retrieves an included transaction
func (s *Storage) GetTransaction(id []byte) (*tx.Transaction, error) {
	data, err := s.get(txKey(id))
	if err != nil {
		return nil, fmt.Errorf("transaction %x: %w", id, err)
	}
	return tx.DeserializeTransaction(data)
}

// HasTransaction reports whether a transaction was already included
func (s *Storage) HasTransaction(id []byte) bool {
	exists, _ := s.db.Has(txKey(id), nil)
	return exists
}

// GetReceipt retrieves the receipt of an included transaction
func (s *Storage) GetReceipt(id []byte) (*tx.Receipt, error) {
	data, err := s.get(receiptKey(id))
	if err != nil {
		return nil, fmt.Errorf("receipt %x: %w", id, err)
	}
	return tx.DeserializeReceipt(data)
}

// GetNonce returns the next nonce for address; unknown senders start at 0
func (s *Storage) GetNonce(address string) (uint64, error) {
	data, err := s.get(nonceKey(address))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt nonce for %s", address)
	}
	return binary.BigEndian.Uint64(data), nil
}

// CountReceipts returns the number of stored receipts
func (s *Storage) CountReceipts() (int, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(receiptPrefix)), nil)
	defer iter.Release()

	count := 0
	for iter.Next() {
		count++
	}

	return count, iter.Error()
}

// serializeBlock serializes a block to bytes
func serializeBlock(block *types.Block) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(block); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deserializeBlock deserializes bytes to a block
func deserializeBlock(data []byte) (*types.Block, error) {
	var block types.Block
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&block); err != nil {
		return nil, err
	}
	return &block, nil
}
