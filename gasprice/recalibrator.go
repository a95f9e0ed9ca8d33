// Package gasprice implements the gas-price recalibrator: it periodically
// refreshes the pool verifier's minimum gas price and block gas limit.
//
// The pool it mutates is passed to each Recalibrate call and captured by that
// call's goroutine — Go's GC handles the shared ownership a manual refcount
// would otherwise need — with one recalibration in flight at a time.
package gasprice

import (
	"sync"
	"sync/atomic"

	"github.com/elastic/gosigar"
	"github.com/shirou/gopsutil/cpu"

	"github.com/chainforge/sealcore/log"
)

// Pool is the minimal pool surface the recalibrator mutates.
type Pool interface {
	SetVerifierOptions(opts VerifierOptions)
	CurrentWorstGasPrice() uint64
}

// VerifierOptions mirrors sealing.VerifierOptions; duplicated here (rather
// than imported) to keep this package independent of the sealing package —
// Recalibrator is usable standalone and sealing adapts between the two
// identically-shaped structs at the call site.
type VerifierOptions struct {
	MinimalGasPrice uint64
	BlockGasLimit   uint64
	TxGasLimit      uint64
}

// Oracle computes a new minimal gas price given the pool's current worst
// accepted price. Production implementations might sample recent block
// prices; this module only needs the contract.
type Oracle interface {
	Suggest(poolWorstPrice uint64) uint64
}

// StaticOracle always suggests the same floor, useful for tests and chains
// with a fixed minimum gas price policy.
type StaticOracle uint64

func (o StaticOracle) Suggest(uint64) uint64 { return uint64(o) }

// Recalibrator periodically refreshes a pool's admission thresholds.
type Recalibrator struct {
	oracle      Oracle
	txGasLimit  uint64
	running     int32
	lastPrice   uint64
	loadSampled uint32 // atomic bool: whether a host-load sample succeeded at least once
}

func New(oracle Oracle, txGasLimit uint64) *Recalibrator {
	return &Recalibrator{oracle: oracle, txGasLimit: txGasLimit}
}

// Recalibrate hands pool to the gas-pricer; it asynchronously computes a new
// minimum gas price and, on completion, atomically replaces the pool's
// verifier options with {minimal_gas_price: new, block_gas_limit,
// tx_gas_limit: the value given to New}; the pool's current tx gas limit is
// not read, so a pool configured with a different one is overwritten. Only one recalibration runs at a time per
// Recalibrator; a call arriving while one is in flight is dropped rather
// than queued, since only the freshest block gas limit matters.
func (r *Recalibrator) Recalibrate(pool Pool, blockGasLimit uint64) {
	if !atomic.CompareAndSwapInt32(&r.running, 0, 1) {
		log.Debug("gas price recalibration already in flight, skipping")
		return
	}
	go func() {
		defer atomic.StoreInt32(&r.running, 0)

		worst := pool.CurrentWorstGasPrice()
		suggested := r.oracle.Suggest(worst)
		suggested = r.applyLoadBias(suggested)

		pool.SetVerifierOptions(VerifierOptions{
			MinimalGasPrice: suggested,
			BlockGasLimit:   blockGasLimit,
			TxGasLimit:      r.txGasLimit,
		})
		atomic.StoreUint64(&r.lastPrice, suggested)
	}()
}

// LastPrice returns the most recently installed minimal gas price.
func (r *Recalibrator) LastPrice() uint64 { return atomic.LoadUint64(&r.lastPrice) }

var loadSampleOnce sync.Once

// applyLoadBias perturbs suggested by a bounded percentage based on host CPU
// load (a memory sample is also taken, but only its success matters; the
// bias uses CPU load alone): a loaded host nudges the floor up a little, easing
// admission pressure on the pool by discouraging marginal-fee transactions.
// Sampling failures are logged and ignored — pricing must never block on
// telemetry.
func (r *Recalibrator) applyLoadBias(suggested uint64) uint64 {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		log.Debug("gasprice: cpu sample failed, skipping load bias", "err", err)
		return suggested
	}
	mem := gosigar.Mem{}
	if err := mem.Get(); err != nil {
		log.Debug("gasprice: mem sample failed, skipping load bias", "err", err)
		return suggested
	}
	atomic.StoreUint32(&r.loadSampled, 1)

	load := percents[0] / 100
	if load < 0 {
		load = 0
	}
	if load > 1 {
		load = 1
	}
	// Bias bounded to +5% at full load, so a busy host never dominates the
	// oracle's own signal.
	bias := 1.0 + 0.05*load
	return uint64(float64(suggested) * bias)
}

// Sampled reports whether a host-load sample has ever succeeded, i.e.
// whether the bias path has run at least once.
func (r *Recalibrator) Sampled() bool { return atomic.LoadUint32(&r.loadSampled) == 1 }
