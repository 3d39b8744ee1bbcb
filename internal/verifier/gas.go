package verifier

const (
	// Sha256BaseGas and Sha256WordGas price one SHA-256 pass.
	Sha256BaseGas = 60
	Sha256WordGas = 12

	// HexDecodeGas is charged per input character.
	HexDecodeGas = 1

	// DispatchGas covers method lookup.
	DispatchGas = 100
)

func words(n int) uint64 {
	return uint64((n + 31) / 32)
}

func sha256Gas(n int) uint64 {
	return Sha256BaseGas + Sha256WordGas*words(n)
}

// GasCost returns the execution cost of calling HashBtcHeader with argument.
// A call that reverts on decode is charged for dispatch and decoding only.
func GasCost(argument string, reverted bool) uint64 {
	gas := uint64(DispatchGas) + HexDecodeGas*uint64(len(argument))
	if reverted {
		return gas
	}
	return gas + sha256Gas(len(argument)/2) + sha256Gas(32)
}
