// Package verifier is the publicly invocable surface of the header hasher.
//
// A Verifier holds no state. Methods are dispatched by name so the node can
// execute both read-only calls and signed call transactions against the
// same code path. Decode failures leave the verifier as a Revert with an
// empty payload; callers never see the underlying decode message.
package verifier

import (
	"errors"
	"fmt"
	"sort"

	"github.com/yourusername/btcverifier/internal/crypto"
)

const (
	// MethodHashBtcHeader is the canonical method name.
	MethodHashBtcHeader = "hashBtcHeader"

	methodHashBtcHeaderSnake = "hash_btc_header"

	// Name seeds the fixed address the verifier is bound to.
	Name = "BtcVerifier"
)

// ErrUnknownMethod is returned by Invoke for a method the verifier does not expose.
var ErrUnknownMethod = errors.New("unknown method")

// Revert is the failure marker returned across the call boundary.
// Data is empty for every failure the verifier produces.
type Revert struct {
	Data []byte
}

func (r *Revert) Error() string {
	if len(r.Data) == 0 {
		return "execution reverted"
	}
	return fmt.Sprintf("execution reverted: %x", r.Data)
}

// IsRevert reports whether err is a Revert.
func IsRevert(err error) bool {
	var revert *Revert
	return errors.As(err, &revert)
}

type method func(argument string) (string, error)

// Verifier exposes HashBtcHeader to remote callers.
type Verifier struct {
	methods map[string]method
}

// New returns a Verifier with its method table populated.
func New() *Verifier {
	v := &Verifier{}
	v.methods = map[string]method{
		MethodHashBtcHeader:      v.HashBtcHeader,
		methodHashBtcHeaderSnake: v.HashBtcHeader,
	}
	return v
}

// HashBtcHeader decodes headerHex, hashes it twice with SHA-256 and returns
// the digest as lowercase hex.
func (v *Verifier) HashBtcHeader(headerHex string) (string, error) {
	digest, err := crypto.HashHeader(headerHex)
	if err != nil {
		return "", &Revert{}
	}
	return digest, nil
}

// Invoke dispatches a call by method name.
func (v *Verifier) Invoke(name, argument string) (string, error) {
	m, ok := v.methods[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
	return m(argument)
}

// Methods lists the callable method names.
func (v *Verifier) Methods() []string {
	names := make([]string, 0, len(v.methods))
	for name := range v.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Address is the fixed address of the verifier.
func Address() string {
	return crypto.EncodeAddress(crypto.DoubleHashBytes([]byte(Name))[:crypto.PubKeyHashLength])
}
