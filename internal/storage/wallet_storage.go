package storage

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/yourusername/btcverifier/internal/crypto"
)

const walletPrefix = "wallet_"

// WalletStorage keeps submitter keys on disk
type WalletStorage struct {
	db *leveldb.DB
}

// WalletData represents serializable wallet information
type WalletData struct {
	Address    string
	PrivateKey []byte
	CreatedAt  time.Time
}

// NewWalletStorage creates a new wallet storage instance
func NewWalletStorage(path string) (*WalletStorage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet database: %w", err)
	}

	return &WalletStorage{db: db}, nil
}

// Close closes the wallet database
func (ws *WalletStorage) Close() error {
	return ws.db.Close()
}

// SaveWallet stores a wallet under its address
func (ws *WalletStorage) SaveWallet(wallet *crypto.Wallet) error {
	data := WalletData{
		Address:    wallet.GetAddress(),
		PrivateKey: wallet.PrivateKey.Serialize(),
		CreatedAt:  time.Now().UTC(),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("failed to encode wallet: %w", err)
	}

	if err := ws.db.Put([]byte(walletPrefix+data.Address), buf.Bytes(), nil); err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}

	return nil
}

// GetWallet loads the wallet stored under address
func (ws *WalletStorage) GetWallet(address string) (*crypto.Wallet, error) {
	raw, err := ws.db.Get([]byte(walletPrefix+address), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("wallet %s: %w", address, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var data WalletData
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode wallet: %w", err)
	}

	return crypto.WalletFromHex(crypto.EncodeHex(data.PrivateKey))
}

// ListWallets returns stored wallets in address order, without key material
func (ws *WalletStorage) ListWallets() ([]WalletData, error) {
	iter := ws.db.NewIterator(util.BytesPrefix([]byte(walletPrefix)), nil)
	defer iter.Release()

	var wallets []WalletData
	for iter.Next() {
		var data WalletData
		if err := gob.NewDecoder(bytes.NewReader(iter.Value())).Decode(&data); err != nil {
			return nil, fmt.Errorf("failed to decode wallet %s: %w", iter.Key(), err)
		}
		data.PrivateKey = nil
		wallets = append(wallets, data)
	}

	return wallets, iter.Error()
}

// DeleteWallet removes a wallet from the database
func (ws *WalletStorage) DeleteWallet(address string) error {
	return ws.db.Delete([]byte(walletPrefix+address), nil)
}

// GetWalletPath returns the default wallet storage path
func GetWalletPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./wallets.db"
	}
	return filepath.Join(homeDir, ".btcverifier", "wallets")
}
