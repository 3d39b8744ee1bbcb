package merkle

import (
	"github.com/yourusername/btcverifier/internal/crypto"
)

// hashPair returns Hash256(left || right) without touching either input
func hashPair(left, right []byte) []byte {
	combined := make([]byte, 0, len(left)+len(right))
	combined = append(combined, left...)
	combined = append(combined, right...)
	return crypto.DoubleHashBytes(combined)
}

// nextLevel pairs up a level, duplicating the last node when the count is odd
func nextLevel(level [][]byte) [][]byte {
	if len(level)%2 != 0 {
		level = append(level, level[len(level)-1])
	}

	parents := make([][]byte, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		parents = append(parents, hashPair(level[i], level[i+1]))
	}
	return parents
}

// BuildMerkleRoot constructs a merkle root from transaction IDs.
// A block with no transactions has an all-zero root.
func BuildMerkleRoot(txIDs [][]byte) [32]byte {
	var root [32]byte

	tree := BuildMerkleTree(txIDs)
	if tree == nil {
		return root
	}

	copy(root[:], tree[len(tree)-1][0])
	return root
}

// BuildMerkleTree builds the complete merkle tree and returns all levels
func BuildMerkleTree(txIDs [][]byte) [][][]byte {
	if len(txIDs) == 0 {
		return nil
	}

	level := make([][]byte, len(txIDs))
	copy(level, txIDs)
	tree := [][][]byte{level}

	for len(level) > 1 {
		level = nextLevel(level)
		tree = append(tree, level)
	}

	return tree
}
