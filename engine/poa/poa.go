// Package poa implements an internal-sealing proof-of-authority engine
// satisfying sealing.Engine: a fixed candidate set, ranked each round by
// staked weight (package staking), signs in rank order with a mandatory
// per-rank delay so lower-ranked signers only act if a higher rank is absent
// or late.
//
// GenerateSeal is synchronous rather than blocking: instead of sleeping out
// the per-rank delay, it returns SealNone until that delay has elapsed,
// relying on the sealing core's periodic reseal heartbeat to retry. Signing
// and recovery both use secp256k1 (btcsuite/btcd/btcec/v2); SetSigner
// resolves its signing function through an account provider such as
// package accounts' Provider, which holds the same kind of key.
package poa

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	lru "github.com/hashicorp/golang-lru"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/core/types"
	"github.com/chainforge/sealcore/sealing"
	"github.com/chainforge/sealcore/sealqueue"
	"github.com/chainforge/sealcore/staking"
)

// inmemorySignatures bounds the recovered-signer cache.
const inmemorySignatures = 4096

// extraSeal is the fixed compact-signature length this engine's Seal slot
// carries: one 65-byte secp256k1 signature.
const extraSeal = 65

var errUnauthorizedSigner = errors.New("poa: signer not part of the current candidate ranking")

// StakeSource resolves the staked candidate set effective for the block
// built on top of (blockNumber, blockHash), reduced to the single query this
// engine needs. Implementations live with the chain client, which alone
// knows how to read the staking state trie.
type StakeSource interface {
	Stakes(blockNumber uint64, blockHash common.Hash) ([]staking.Stake, error)
}

// Config carries the subset of consensus parameters this engine exposes via
// Params.
type Config struct {
	DustProtectionTransition uint64
	NonceCapIncrement        uint64
	ContainsBugfixHardFork   bool
}

// Engine is the internal-sealing PoA consensus engine.
type Engine struct {
	cfg         Config
	stakeSource StakeSource
	sigCache    *lru.ARCCache

	mu     sync.RWMutex
	signer common.Address
	signFn sealing.SignFn
}

func New(cfg Config, stakeSource StakeSource) *Engine {
	cache, _ := lru.NewARC(inmemorySignatures)
	return &Engine{cfg: cfg, stakeSource: stakeSource, sigCache: cache}
}

var sealsInternallyTrue = true

func (e *Engine) SealsInternally() *bool { return &sealsInternallyTrue }

// SetSigner unlocks address in accounts with password and wires the
// resulting signing function. accounts.ErrNoSigner / accounts.ErrInvalidPassword
// (or whatever sentinel the AccountProvider implementation uses) propagate
// unchanged. Only a signer producing a real secp256k1 signature (e.g.
// accounts.Provider's) is usable here: TrySeal recovers the signer via
// ecrecover-style verification.
func (e *Engine) SetSigner(accounts sealing.AccountProvider, address common.Address, password string) error {
	signFn, err := accounts.SignFn(address, password)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signer = address
	e.signFn = signFn
	return nil
}

func (e *Engine) Params() sealing.EngineParams {
	return sealing.EngineParams{
		DustProtectionTransition: e.cfg.DustProtectionTransition,
		NonceCapIncrement:        e.cfg.NonceCapIncrement,
		ContainsBugfixHardFork:   e.cfg.ContainsBugfixHardFork,
	}
}

// CreateAddressScheme has nothing to contribute beyond the default contract
// address derivation; this engine doesn't alter it.
func (e *Engine) CreateAddressScheme(blockNumber uint64) sealing.AddressScheme { return nil }

func seedFromHash(h common.Hash) int64 {
	b := h.Bytes()
	return new(big.Int).SetBytes(b[:8]).Int64()
}

func (e *Engine) rankOf(parentNumber uint64, parentHash common.Hash, signer common.Address) (int, error) {
	stakes, err := e.stakeSource.Stakes(parentNumber, parentHash)
	if err != nil {
		return 0, err
	}
	ranking := staking.SelectRanking(seedFromHash(parentHash), stakes)
	rank, ok := ranking[signer]
	if !ok {
		return 0, errUnauthorizedSigner
	}
	return rank, nil
}

// GenerateSeal implements the rank-and-delay rule: if the local signer is
// unranked for this round, or its mandatory delay has not yet elapsed, no
// seal is produced and the caller is expected to retry on the next reseal
// tick (the controller's own heartbeat already provides this).
func (e *Engine) GenerateSeal(block *sealqueue.ClosedBlock, parent *types.Header) sealing.SealProposal {
	e.mu.RLock()
	signer, signFn := e.signer, e.signFn
	e.mu.RUnlock()
	if signFn == nil {
		return sealing.SealProposal{Kind: sealing.SealNone}
	}

	rank, err := e.rankOf(parent.Number, parent.Hash(), signer)
	if err != nil {
		return sealing.SealProposal{Kind: sealing.SealNone}
	}

	readyAt := time.Unix(int64(block.Header.Time), 0).Add(staking.Delay(rank))
	if time.Now().Before(readyAt) {
		return sealing.SealProposal{Kind: sealing.SealNone}
	}

	sig, err := signFn(signer, block.Header.SealHash().Bytes())
	if err != nil {
		return sealing.SealProposal{Kind: sealing.SealNone}
	}
	return sealing.SealProposal{Kind: sealing.SealRegular, Seal: [][]byte{sig}}
}

// TrySeal verifies seal is a valid, authorized signature over block's header
// and, if so, attaches it.
func (e *Engine) TrySeal(block *sealqueue.ClosedBlock, seal [][]byte) error {
	if len(seal) != 1 || len(seal[0]) != extraSeal {
		return errors.New("poa: seal must be exactly one 65-byte compact signature")
	}

	signer, err := e.recoverSigner(block.Header, seal[0])
	if err != nil {
		return err
	}

	if _, err := e.rankOf(block.Header.Number-1, block.ParentHash(), signer); err != nil {
		return err
	}

	block.Header.Seal = seal
	return nil
}

func (e *Engine) recoverSigner(header *types.Header, sig []byte) (common.Address, error) {
	hash := header.SealHash()
	if cached, ok := e.sigCache.Get(hash); ok {
		return cached.(common.Address), nil
	}

	pub, _, err := ecdsa.RecoverCompact(sig, hash.Bytes())
	if err != nil {
		return common.Address{}, err
	}
	addr := common.BytesToAddress(common.Keccak256(pub.SerializeUncompressed()[1:])[12:])
	e.sigCache.Add(hash, addr)
	return addr, nil
}

