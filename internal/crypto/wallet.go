package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

const (
	// Version for address generation
	AddressVersion = 0x00

	// ChecksumLength is the length of address checksum
	ChecksumLength = 4

	// PubKeyHashLength is the length of RIPEMD160(SHA256(pubKey))
	PubKeyHashLength = ripemd160.Size
)

var (
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// Wallet holds the secp256k1 key pair a submitter signs transactions with
type Wallet struct {
	PrivateKey *btcec.PrivateKey
	PublicKey  []byte // compressed, 33 bytes
}

// NewWallet creates a new wallet with a generated key pair
func NewWallet() (*Wallet, error) {
	privateKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	return walletFromKey(privateKey), nil
}

// WalletFromHex restores a wallet from a hex private key. A leading 0x is
// accepted so keys exported from other tooling can be pasted as-is.
func WalletFromHex(hexKey string) (*Wallet, error) {
	if len(hexKey) >= 2 && (hexKey[:2] == "0x" || hexKey[:2] == "0X") {
		hexKey = hexKey[2:]
	}

	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	if len(raw) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidPrivateKey, len(raw), btcec.PrivKeyBytesLen)
	}

	privateKey, _ := btcec.PrivKeyFromBytes(raw)
	if privateKey.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidPrivateKey)
	}

	return walletFromKey(privateKey), nil
}

func walletFromKey(privateKey *btcec.PrivateKey) *Wallet {
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PubKey().SerializeCompressed(),
	}
}

// PrivateKeyHex returns the raw 32-byte private key as hex
func (w *Wallet) PrivateKeyHex() string {
	return hex.EncodeToString(w.PrivateKey.Serialize())
}

// GetAddress generates a Bitcoin-like address from the wallet's public key
func (w *Wallet) GetAddress() string {
	return GetAddressFromPubKey(w.PublicKey)
}

// Sign signs a 32-byte digest and returns a DER-encoded signature
func (w *Wallet) Sign(digest []byte) []byte {
	return ecdsa.Sign(w.PrivateKey, digest).Serialize()
}

// VerifySignature verifies a DER signature over digest against a serialized public key
func VerifySignature(pubKey, digest, signature []byte) bool {
	key, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}

	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}

	return sig.Verify(digest, key)
}

// GetAddressFromPubKey generates an address from a public key
// Address = Base58(version + RIPEMD160(SHA256(pubKey)) + checksum)
func GetAddressFromPubKey(pubKey []byte) string {
	return EncodeAddress(PublicKeyHash(pubKey))
}

// PublicKeyHash returns the RIPEMD160(SHA256(pubKey))
func PublicKeyHash(pubKey []byte) []byte {
	hasher := ripemd160.New()
	hasher.Write(HashBytes(pubKey))
	return hasher.Sum(nil)
}

// EncodeAddress encodes a 20-byte hash into a Base58Check address
func EncodeAddress(pubKeyHash []byte) string {
	payload := make([]byte, 0, 1+len(pubKeyHash)+ChecksumLength)
	payload = append(payload, AddressVersion)
	payload = append(payload, pubKeyHash...)
	payload = append(payload, Checksum(payload)...)

	return base58.Encode(payload)
}

// DecodeAddress decodes a Base58Check address to its 20-byte hash
func DecodeAddress(address string) ([]byte, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	if len(decoded) != 1+PubKeyHashLength+ChecksumLength {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidAddress, len(decoded))
	}

	payload := decoded[:len(decoded)-ChecksumLength]
	if !bytes.Equal(Checksum(payload), decoded[len(decoded)-ChecksumLength:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	if payload[0] != AddressVersion {
		return nil, fmt.Errorf("%w: version %#x", ErrInvalidAddress, payload[0])
	}

	return payload[1:], nil
}

// ValidateAddress reports whether address decodes cleanly
func ValidateAddress(address string) error {
	_, err := DecodeAddress(address)
	return err
}

// Checksum generates a 4-byte checksum for address encoding
func Checksum(payload []byte) []byte {
	return DoubleHashBytes(payload)[:ChecksumLength]
}
