// Package config defines the authoring core's configuration surface and
// loads it from TOML.
package config

import (
	"bytes"
	"io"
	"time"

	"github.com/naoina/toml"
)

// PendingSetMode selects whether read-queries about "pending transactions"
// read the pool or the newest work-history entry.
type PendingSetMode int

const (
	AlwaysQueue PendingSetMode = iota
	AlwaysSealing
)

func (m PendingSetMode) String() string {
	if m == AlwaysSealing {
		return "AlwaysSealing"
	}
	return "AlwaysQueue"
}

// PoolLimits bounds the transaction pool's resource usage.
type PoolLimits struct {
	MaxCount     int   `toml:"max_count"`
	MaxPerSender int   `toml:"max_per_sender"`
	MaxMemUsage  int64 `toml:"max_mem_usage"`
}

// VerifierOptions are the pool's current admission thresholds, periodically
// rewritten by the gas-price recalibrator.
type VerifierOptions struct {
	MinimalGasPrice int64  `toml:"minimal_gas_price"`
	BlockGasLimit   uint64 `toml:"block_gas_limit"`
	TxGasLimit      uint64 `toml:"tx_gas_limit"`
}

// Config is the full set of authoring-core tuning knobs.
type Config struct {
	ForceSealing bool `toml:"force_sealing"`

	ResealOnExternalTx bool `toml:"reseal_on_external_tx"`
	ResealOnOwnTx      bool `toml:"reseal_on_own_tx"`
	ResealOnUncle      bool `toml:"reseal_on_uncle"`

	ResealMinPeriod time.Duration `toml:"reseal_min_period"`
	ResealMaxPeriod time.Duration `toml:"reseal_max_period"`

	PendingSet PendingSetMode `toml:"-"`

	WorkQueueSize int `toml:"work_queue_size"`

	EnableResubmission bool `toml:"enable_resubmission"`

	InfinitePendingBlock bool `toml:"infinite_pending_block"`

	RefuseServiceTransactions bool `toml:"refuse_service_transactions"`

	PoolLimits              PoolLimits      `toml:"pool_limits"`
	PoolVerificationOptions VerifierOptions `toml:"pool_verification_options"`
}

// defaultMinimalGasPrice is the default floor a transaction's gas price must
// clear to be admitted to the pool (20 Gwei).
const defaultMinimalGasPrice = 20_000_000_000

// Default returns the documented defaults: reseal_min_period=2s,
// reseal_max_period=120s, work_queue_size=20, enable_resubmission=true,
// pool limits {16384,64,8MiB}.
func Default() Config {
	return Config{
		ForceSealing:         false,
		ResealOnExternalTx:   false,
		ResealOnOwnTx:        true,
		ResealOnUncle:        false,
		ResealMinPeriod:      2 * time.Second,
		ResealMaxPeriod:      120 * time.Second,
		PendingSet:           AlwaysQueue,
		WorkQueueSize:        20,
		EnableResubmission:   true,
		InfinitePendingBlock: false,
		PoolLimits: PoolLimits{
			MaxCount:     16384,
			MaxPerSender: 64,
			MaxMemUsage:  8 * 1024 * 1024,
		},
		PoolVerificationOptions: VerifierOptions{
			MinimalGasPrice: defaultMinimalGasPrice,
			BlockGasLimit:   ^uint64(0),
			TxGasLimit:      ^uint64(0),
		},
	}
}

// Load decodes TOML configuration from r on top of Default().
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(buf.Bytes(), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
