package merkle

import (
	"bytes"
	"testing"

	"github.com/yourusername/btcverifier/internal/crypto"
)

func pair(a, b []byte) []byte {
	combined := append(append([]byte{}, a...), b...)
	return crypto.DoubleHashBytes(combined)
}

func TestBuildMerkleRoot_Empty(t *testing.T) {
	root := BuildMerkleRoot([][]byte{})

	if root != ([32]byte{}) {
		t.Error("Empty merkle root should be 32 zero bytes")
	}
}

func TestBuildMerkleRoot_SingleTx(t *testing.T) {
	txID := crypto.DoubleHashBytes([]byte("single transaction"))

	root := BuildMerkleRoot([][]byte{txID})

	if !bytes.Equal(root[:], txID) {
		t.Error("Single tx merkle root should equal the tx ID itself")
	}
}

func TestBuildMerkleRoot_TwoTx(t *testing.T) {
	id1 := crypto.DoubleHashBytes([]byte("transaction 1"))
	id2 := crypto.DoubleHashBytes([]byte("transaction 2"))

	root := BuildMerkleRoot([][]byte{id1, id2})
	expected := pair(id1, id2)

	if !bytes.Equal(root[:], expected) {
		t.Errorf("Two tx merkle root incorrect\nGot:  %x\nWant: %x", root, expected)
	}
}

func TestBuildMerkleRoot_OddNumber(t *testing.T) {
	id1 := crypto.DoubleHashBytes([]byte("tx1"))
	id2 := crypto.DoubleHashBytes([]byte("tx2"))
	id3 := crypto.DoubleHashBytes([]byte("tx3"))

	root := BuildMerkleRoot([][]byte{id1, id2, id3})

	// Level 1: [hash12, hash33], the last ID is duplicated
	expected := pair(pair(id1, id2), pair(id3, id3))

	if !bytes.Equal(root[:], expected) {
		t.Error("Odd number merkle root calculation incorrect")
	}
}

func TestBuildMerkleRoot_DoesNotMutateInput(t *testing.T) {
	ids := make([][]byte, 3)
	originals := make([][]byte, 3)
	for i := range ids {
		// Spare capacity would let a careless append overwrite neighbours
		ids[i] = make([]byte, 32, 64)
		copy(ids[i], crypto.DoubleHashBytes([]byte{byte(i)}))
		originals[i] = append([]byte{}, ids[i]...)
	}

	BuildMerkleRoot(ids)
	BuildMerkleTree(ids)

	for i := range ids {
		if !bytes.Equal(ids[i], originals[i]) {
			t.Errorf("input %d was modified", i)
		}
	}
	if len(ids) != 3 {
		t.Errorf("input length changed to %d", len(ids))
	}
}

func TestBuildMerkleRoot_ChangeSensitivity(t *testing.T) {
	id1 := crypto.DoubleHashBytes([]byte("tx1"))
	id2 := crypto.DoubleHashBytes([]byte("tx2"))

	root1 := BuildMerkleRoot([][]byte{id1, id2})
	root2 := BuildMerkleRoot([][]byte{id1, crypto.DoubleHashBytes([]byte("tx2_modified"))})

	if root1 == root2 {
		t.Error("Merkle root should change when transaction changes")
	}
}

func TestBuildMerkleRoot_OrderMatters(t *testing.T) {
	id1 := crypto.DoubleHashBytes([]byte("tx1"))
	id2 := crypto.DoubleHashBytes([]byte("tx2"))

	if BuildMerkleRoot([][]byte{id1, id2}) == BuildMerkleRoot([][]byte{id2, id1}) {
		t.Error("Merkle root should depend on transaction order")
	}
}

func TestBuildMerkleTree(t *testing.T) {
	ids := make([][]byte, 5)
	for i := range ids {
		ids[i] = crypto.DoubleHashBytes([]byte{byte(i)})
	}

	tree := BuildMerkleTree(ids)

	// 5 -> 3 -> 2 -> 1
	wantSizes := []int{5, 3, 2, 1}
	if len(tree) != len(wantSizes) {
		t.Fatalf("tree has %d levels, want %d", len(tree), len(wantSizes))
	}
	for i, size := range wantSizes {
		if len(tree[i]) != size {
			t.Errorf("level %d has %d nodes, want %d", i, len(tree[i]), size)
		}
	}

	root := BuildMerkleRoot(ids)
	if !bytes.Equal(tree[len(tree)-1][0], root[:]) {
		t.Error("Tree root does not match BuildMerkleRoot")
	}

	if BuildMerkleTree(nil) != nil {
		t.Error("Empty tree should be nil")
	}
}
