package tx

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/yourusername/btcverifier/internal/crypto"
)

const (
	// TxBaseGas is charged for every transaction
	TxBaseGas = 21000

	// Calldata pricing per byte of method name and argument
	TxDataZeroGas    = 4
	TxDataNonZeroGas = 16
)

var (
	ErrUnsigned         = errors.New("transaction is not signed")
	ErrInvalidSignature = errors.New("invalid transaction signature")
	ErrIDMismatch       = errors.New("transaction id does not match contents")
)

// Transaction is a signed request to invoke a verifier method.
// Executing it has no state effect beyond the receipt.
type Transaction struct {
	ID        []byte
	ChainID   uint64
	Nonce     uint64
	From      []byte // Compressed public key of the sender
	To        string // Address of the verifier
	Method    string
	Argument  string
	GasLimit  uint64
	Signature []byte // DER signature over SigHash
}

// NewCall creates an unsigned call transaction
func NewCall(chainID, nonce uint64, to, method, argument string, gasLimit uint64) *Transaction {
	return &Transaction{
		ChainID:  chainID,
		Nonce:    nonce,
		To:       to,
		Method:   method,
		Argument: argument,
		GasLimit: gasLimit,
	}
}

// signingPayload serializes every field covered by the signature.
// Variable-length fields are length-prefixed so distinct transactions
// never share a payload.
func (tx *Transaction) signingPayload() []byte {
	var buf bytes.Buffer

	writeUint64 := func(v uint64) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	}
	writeBytes := func(b []byte) {
		writeUint64(uint64(len(b)))
		buf.Write(b)
	}

	writeUint64(tx.ChainID)
	writeUint64(tx.Nonce)
	writeBytes(tx.From)
	writeBytes([]byte(tx.To))
	writeBytes([]byte(tx.Method))
	writeBytes([]byte(tx.Argument))
	writeUint64(tx.GasLimit)

	return buf.Bytes()
}

// SigHash is the digest the sender signs
func (tx *Transaction) SigHash() []byte {
	return crypto.DoubleHashBytes(tx.signingPayload())
}

// Hash calculates the transaction ID over the signed contents
func (tx *Transaction) Hash() []byte {
	payload := tx.signingPayload()
	payload = append(payload, tx.Signature...)
	return crypto.DoubleHashBytes(payload)
}

// Sign sets From, signs the transaction and assigns its ID
func (tx *Transaction) Sign(wallet *crypto.Wallet) {
	tx.From = wallet.PublicKey
	tx.Signature = wallet.Sign(tx.SigHash())
	tx.ID = tx.Hash()
}

// Verify checks the signature and that ID matches the contents
func (tx *Transaction) Verify() error {
	if len(tx.Signature) == 0 || len(tx.From) == 0 {
		return ErrUnsigned
	}

	if !crypto.VerifySignature(tx.From, tx.SigHash(), tx.Signature) {
		return ErrInvalidSignature
	}

	if !bytes.Equal(tx.ID, tx.Hash()) {
		return ErrIDMismatch
	}

	return nil
}

// Sender returns the address of the signing key
func (tx *Transaction) Sender() string {
	return crypto.GetAddressFromPubKey(tx.From)
}

// IDHex returns the transaction ID as hex
func (tx *Transaction) IDHex() string {
	return crypto.EncodeHex(tx.ID)
}

// IntrinsicGas is the cost charged before execution
func (tx *Transaction) IntrinsicGas() uint64 {
	gas := uint64(TxBaseGas)
	for _, data := range []string{tx.Method, tx.Argument} {
		for i := 0; i < len(data); i++ {
			if data[i] == 0 {
				gas += TxDataZeroGas
			} else {
				gas += TxDataNonZeroGas
			}
		}
	}
	return gas
}

// Serialize serializes the transaction to bytes
func (tx *Transaction) Serialize() ([]byte, error) {
	var buffer bytes.Buffer
	encoder := gob.NewEncoder(&buffer)

	if err := encoder.Encode(tx); err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	return buffer.Bytes(), nil
}

// DeserializeTransaction deserializes bytes to a transaction
func DeserializeTransaction(data []byte) (*Transaction, error) {
	var tx Transaction
	decoder := gob.NewDecoder(bytes.NewReader(data))

	if err := decoder.Decode(&tx); err != nil {
		return nil, fmt.Errorf("failed to deserialize transaction: %w", err)
	}

	return &tx, nil
}
