package pow

import (
	"context"
	"errors"
	"math"
	"math/big"

	"github.com/yourusername/btcverifier/internal/crypto"
	"github.com/yourusername/btcverifier/pkg/types"
)

const (
	// MaxNonce is the maximum value for nonce
	MaxNonce = math.MaxUint32

	// DefaultTargetBits is the number of leading zero bits a sealed block
	// hash needs. Blocks only order receipts, so sealing is kept cheap.
	DefaultTargetBits = 8

	// MaxTargetBits caps the configurable difficulty
	MaxTargetBits = 32

	// ctxCheckInterval is how many nonces are tried between context checks
	ctxCheckInterval = 1 << 12
)

var (
	ErrNonceExhausted = errors.New("nonce space exhausted")
	ErrTargetBits     = errors.New("target bits out of range")
)

// ProofOfWork seals a block header
type ProofOfWork struct {
	Header *types.BlockHeader
	Target *big.Int
}

// NewProofOfWork creates a new PoW instance for a header
func NewProofOfWork(header *types.BlockHeader) (*ProofOfWork, error) {
	if header.Bits > MaxTargetBits {
		return nil, ErrTargetBits
	}

	return &ProofOfWork{
		Header: header,
		Target: target(header.Bits),
	}, nil
}

// target is 2^(256-bits); a hash must be strictly below it
func target(bits uint32) *big.Int {
	t := big.NewInt(1)
	return t.Lsh(t, uint(256-bits))
}

// Mine searches for a nonce whose header hash is below the target.
// The winning nonce is left in the header.
func (pow *ProofOfWork) Mine(ctx context.Context) ([]byte, error) {
	var hashInt big.Int

	for nonce := uint64(0); nonce <= MaxNonce; nonce++ {
		if nonce%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		pow.Header.Nonce = uint32(nonce)
		hash := crypto.HashBlockHeader(pow.Header)

		hashInt.SetBytes(hash)
		if hashInt.Cmp(pow.Target) == -1 {
			return hash, nil
		}
	}

	return nil, ErrNonceExhausted
}

// Validate checks if the header's proof-of-work is valid
func (pow *ProofOfWork) Validate() bool {
	return IsValidHash(crypto.HashBlockHeader(pow.Header), pow.Header.Bits)
}

// IsValidHash checks if a hash meets the difficulty requirement
func IsValidHash(hash []byte, bits uint32) bool {
	if bits > MaxTargetBits {
		return false
	}

	var hashInt big.Int
	hashInt.SetBytes(hash)

	return hashInt.Cmp(target(bits)) == -1
}
