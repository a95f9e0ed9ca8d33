// Package accounts provides the minimal account-provider contract an
// internal-sealing engine needs for its signer requirement: look up an
// address, unlock it with a password, and hand back a signing function.
//
// The keystore itself is a trivial in-memory map (hardware-wallet backends
// such as karalabe/usb and status-im/keycard-go are out of scope here —
// see DESIGN.md). Keys are real secp256k1 keys (btcsuite/btcd/btcec/v2), the
// same curve engine/poa signs and recovers against, so a Provider-backed
// signer is usable by a real internal-sealing engine, not just a placeholder.
package accounts

import (
	"errors"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/sealing"
)

var (
	// ErrNoSigner is returned by SetSigner when the engine requires a
	// signer but the account provider holds no matching account.
	ErrNoSigner = errors.New("accounts: no account for address")
	// ErrInvalidPassword is returned when the supplied password does not
	// unlock the requested account.
	ErrInvalidPassword = errors.New("accounts: invalid password")
)

// SignFn is an alias of sealing.SignFn: the signature Provider.SignFn
// returns must be identical to what sealing.Engine.SetSigner consumes, not
// merely structurally equivalent, for a *Provider to satisfy
// sealing.AccountProvider.
type SignFn = sealing.SignFn

type storedKey struct {
	priv     *btcec.PrivateKey
	password string
}

// Provider is a trivial in-memory account store: address -> (private key,
// password). It exists to exercise the accounts contract end to end, not as
// a production keystore (no encryption at rest, no disk persistence).
type Provider struct {
	mu       sync.Mutex
	accounts map[common.Address]storedKey
}

func NewProvider() *Provider {
	return &Provider{accounts: make(map[common.Address]storedKey)}
}

func addressOf(priv *btcec.PrivateKey) common.Address {
	pub := priv.PubKey().SerializeUncompressed()
	return common.BytesToAddress(common.Keccak256(pub[1:])[12:])
}

// Import registers priv under password, returning its derived address.
func (p *Provider) Import(priv *btcec.PrivateKey, password string) common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	addr := addressOf(priv)
	p.accounts[addr] = storedKey{priv: priv, password: password}
	return addr
}

// SignFn returns a signing closure for address if password matches,
// otherwise an error — ErrNoSigner if the address is unknown,
// ErrInvalidPassword if the password is wrong. The returned function
// produces a compact secp256k1 signature over digest.
func (p *Provider) SignFn(address common.Address, password string) (SignFn, error) {
	p.mu.Lock()
	sk, ok := p.accounts[address]
	p.mu.Unlock()
	if !ok {
		return nil, ErrNoSigner
	}
	if sk.password != password {
		return nil, ErrInvalidPassword
	}
	priv := sk.priv
	return func(account common.Address, digest []byte) ([]byte, error) {
		if account != address {
			return nil, ErrNoSigner
		}
		return ecdsa.SignCompact(priv, digest, false), nil
	}, nil
}
