// Package extwork implements the "external work" consensus engine path:
// SealsInternally returns nil, the engine hands out work packages via the
// sealing core's listener fan-out and accepts completed seals through
// SubmitSeal, never sealing in-process itself. Actual proof-of-work
// verification is a transport/mining-client concern outside this module's
// scope; this package only owns the interface seam.
package extwork

import (
	"errors"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/core/types"
	"github.com/chainforge/sealcore/sealing"
	"github.com/chainforge/sealcore/sealqueue"
)

// Verifier checks an externally produced seal against a block's seal hash.
// Production implementations might verify a PoW nonce/mix-digest pair or
// delegate to an external mining pool's proof; this package only needs the
// contract.
type Verifier interface {
	Verify(sealHash common.Hash, seal [][]byte) error
}

// Engine is a trivial external-sealing engine: it never produces a seal
// itself (GenerateSeal always returns SealNone, and because SealsInternally
// is nil the core calls prepareWork and notifies listeners instead), and
// verifies submitted seals via the injected Verifier.
type Engine struct {
	verifier Verifier
	params   sealing.EngineParams
}

func New(verifier Verifier, params sealing.EngineParams) *Engine {
	return &Engine{verifier: verifier, params: params}
}

// SealsInternally returns nil: this engine never seals in-process.
func (e *Engine) SealsInternally() *bool { return nil }

func (e *Engine) GenerateSeal(*sealqueue.ClosedBlock, *types.Header) sealing.SealProposal {
	return sealing.SealProposal{Kind: sealing.SealNone}
}

func (e *Engine) TrySeal(block *sealqueue.ClosedBlock, seal [][]byte) error {
	if e.verifier == nil {
		return errors.New("extwork: no verifier configured")
	}
	return e.verifier.Verify(block.Header.SealHash(), seal)
}

func (e *Engine) Params() sealing.EngineParams { return e.params }

// SetSigner is a no-op: external engines never sign locally, so there is
// nothing to unlock.
func (e *Engine) SetSigner(sealing.AccountProvider, common.Address, string) error { return nil }

func (e *Engine) CreateAddressScheme(uint64) sealing.AddressScheme { return nil }

// AlwaysValid is a Verifier that accepts any seal, empty included, useful for
// tests exercising the external-work dispatch path without a real PoW
// checker.
type AlwaysValid struct{}

func (AlwaysValid) Verify(common.Hash, [][]byte) error { return nil }
