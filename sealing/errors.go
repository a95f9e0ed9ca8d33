package sealing

import "errors"

// Sentinel errors an OpenBlock.Push / SubmitSeal implementation returns,
// consumed by the assembler's Push classification and the controller's
// SubmitSeal.
var (
	// ErrInvalidNonce covers both too-low and too-high nonces: both are
	// skipped silently and left for a later block to pick up.
	ErrInvalidNonce    = errors.New("sealing: invalid nonce")
	ErrAlreadyImported = errors.New("sealing: transaction already imported")
	ErrNotAllowed      = errors.New("sealing: transaction not allowed")

	// ErrUnknownSealHash is returned by SubmitSeal when block_hash names no
	// candidate currently held in the work history.
	ErrUnknownSealHash = errors.New("sealing: unknown seal hash")
	// ErrInvalidSeal is returned by SubmitSeal when a candidate was found
	// but the engine rejected the supplied seal.
	ErrInvalidSeal = errors.New("sealing: invalid seal")
)

// GasLimitReachedError is returned by OpenBlock.Push when tx does not fit in
// the remaining gas budget.
type GasLimitReachedError struct {
	GasLimit uint64
	GasUsed  uint64
	Gas      uint64 // the gas the transaction itself would have consumed
}

func (e *GasLimitReachedError) Error() string {
	return "sealing: block gas limit reached"
}
