package crypto

import (
	"encoding/hex"
	"errors"

	"github.com/minio/sha256-simd"

	"github.com/yourusername/btcverifier/pkg/types"
)

// DigestSize is the length of a single SHA-256 digest in bytes
const DigestSize = sha256.Size

// ErrDecode is returned when a header hex string cannot be decoded.
// Odd length and invalid characters are both reported as ErrDecode.
var ErrDecode = errors.New("invalid header hex")

// DecodeError carries the underlying hex decoding failure.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return ErrDecode.Error() + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports any DecodeError as ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// HashBytes returns SHA-256 hash of the input data
func HashBytes(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

// DoubleHash returns SHA-256(SHA-256(data)), the Bitcoin Hash256 digest
func DoubleHash(data []byte) [DigestSize]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// DoubleHashBytes returns double SHA-256 hash (Bitcoin-style)
func DoubleHashBytes(data []byte) []byte {
	hash := DoubleHash(data)
	return hash[:]
}

// DecodeHex decodes a hex string of either case. No partial output is
// returned on failure.
func DecodeHex(s string) ([]byte, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return data, nil
}

// EncodeHex renders data as lowercase hex.
func EncodeHex(data []byte) string {
	return hex.EncodeToString(data)
}

// HashHeader decodes headerHex, applies Hash256 and returns the digest as
// 64 lowercase hex characters in the order it was computed (not the
// reversed display order used by block explorers).
//
// The only failure is ErrDecode. HashHeader has no side effects and may be
// called concurrently.
func HashHeader(headerHex string) (string, error) {
	data, err := DecodeHex(headerHex)
	if err != nil {
		return "", err
	}

	digest := DoubleHash(data)
	return EncodeHex(digest[:]), nil
}

// HashBlockHeader computes the hash of a block header
func HashBlockHeader(header *types.BlockHeader) []byte {
	return DoubleHashBytes(header.Serialize())
}
