package node

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/yourusername/btcverifier/internal/crypto"
	"github.com/yourusername/btcverifier/internal/merkle"
	"github.com/yourusername/btcverifier/internal/pow"
)

var ErrInvalidChain = errors.New("invalid chain")

// ValidateChain re-checks every stored block from genesis to the tip:
// proof-of-work, hash linkage, merkle root, and that each included
// transaction is stored intact with a receipt.
func (n *Node) ValidateChain() error {
	n.sealMu.Lock()
	defer n.sealMu.Unlock()

	n.mu.Lock()
	height := n.height
	n.mu.Unlock()

	var prevHash []byte
	for i := uint64(0); i <= height; i++ {
		block, err := n.Block(i)
		if err != nil {
			return fmt.Errorf("%w: block %d: %v", ErrInvalidChain, i, err)
		}

		if !bytes.Equal(crypto.HashBlockHeader(&block.Header), block.Hash) {
			return fmt.Errorf("%w: hash mismatch at block %d", ErrInvalidChain, i)
		}

		proof, err := pow.NewProofOfWork(&block.Header)
		if err != nil || !proof.Validate() {
			return fmt.Errorf("%w: invalid PoW at block %d", ErrInvalidChain, i)
		}

		if i > 0 && !bytes.Equal(block.Header.PrevBlockHash[:], prevHash) {
			return fmt.Errorf("%w: broken chain at block %d", ErrInvalidChain, i)
		}

		if merkle.BuildMerkleRoot(block.TxIDs) != block.Header.MerkleRoot {
			return fmt.Errorf("%w: invalid merkle root at block %d", ErrInvalidChain, i)
		}

		for _, id := range block.TxIDs {
			stored, err := n.store.GetTransaction(id)
			if err != nil {
				return fmt.Errorf("%w: missing transaction %x in block %d", ErrInvalidChain, id, i)
			}
			if err := stored.Verify(); err != nil || !bytes.Equal(stored.ID, id) {
				return fmt.Errorf("%w: corrupt transaction %x in block %d", ErrInvalidChain, id, i)
			}
			if _, err := n.store.GetReceipt(id); err != nil {
				return fmt.Errorf("%w: missing receipt %x in block %d", ErrInvalidChain, id, i)
			}
		}

		prevHash = block.Hash
	}

	return nil
}
