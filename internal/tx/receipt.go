package tx

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Receipt status values
const (
	StatusReverted uint64 = 0
	StatusSuccess  uint64 = 1
)

// Receipt records the outcome of an included transaction
type Receipt struct {
	TxID        []byte
	BlockHash   []byte
	BlockHeight uint64
	Status      uint64
	Output      string // Return value; empty when reverted
	GasUsed     uint64
	From        string
	To          string
}

// Succeeded reports whether the call returned normally
func (r *Receipt) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Serialize serializes the receipt to bytes
func (r *Receipt) Serialize() ([]byte, error) {
	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(r); err != nil {
		return nil, fmt.Errorf("failed to serialize receipt: %w", err)
	}
	return buffer.Bytes(), nil
}

// DeserializeReceipt deserializes bytes to a receipt
func DeserializeReceipt(data []byte) (*Receipt, error) {
	var r Receipt
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to deserialize receipt: %w", err)
	}
	return &r, nil
}
