package types

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the serialized length of a Bitcoin block header
const HeaderSize = 80

// BlockHeader contains the block metadata, laid out as a Bitcoin header
type BlockHeader struct {
	Version       uint32   // Block version
	PrevBlockHash [32]byte // Previous block hash
	MerkleRoot    [32]byte // Merkle root of included transaction IDs
	Timestamp     uint32   // Unix seconds
	Bits          uint32   // Required leading zero bits of the block hash
	Nonce         uint32   // Nonce for PoW
}

// ErrHeaderSize is returned by Deserialize for input that is not 80 bytes
var ErrHeaderSize = errors.New("block header must be 80 bytes")

// Serialize converts BlockHeader to its 80-byte wire form
func (h *BlockHeader) Serialize() []byte {
	buf := make([]byte, HeaderSize)

	binary.LittleEndian.PutUint32(buf[0:4], h.Version)
	copy(buf[4:36], h.PrevBlockHash[:])
	copy(buf[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[72:76], h.Bits)
	binary.LittleEndian.PutUint32(buf[76:80], h.Nonce)

	return buf
}

// Deserialize reads the 80-byte wire form into h
func (h *BlockHeader) Deserialize(buf []byte) error {
	if len(buf) != HeaderSize {
		return ErrHeaderSize
	}

	h.Version = binary.LittleEndian.Uint32(buf[0:4])
	copy(h.PrevBlockHash[:], buf[4:36])
	copy(h.MerkleRoot[:], buf[36:68])
	h.Timestamp = binary.LittleEndian.Uint32(buf[68:72])
	h.Bits = binary.LittleEndian.Uint32(buf[72:76])
	h.Nonce = binary.LittleEndian.Uint32(buf[76:80])

	return nil
}

// Block is a sealed header plus the IDs of the call transactions it includes.
// The transactions themselves are stored separately, keyed by ID.
type Block struct {
	Header BlockHeader
	Height uint64
	TxIDs  [][]byte
	Hash   []byte // Block hash (cached)
}
