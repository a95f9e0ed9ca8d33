package poa

import (
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/chainforge/sealcore/accounts"
	"github.com/chainforge/sealcore/common"
	"github.com/chainforge/sealcore/core/types"
	"github.com/chainforge/sealcore/sealing"
	"github.com/chainforge/sealcore/sealqueue"
	"github.com/chainforge/sealcore/staking"
)

type fixedStakes struct{ stakes []staking.Stake }

func (f fixedStakes) Stakes(uint64, common.Hash) ([]staking.Stake, error) { return f.stakes, nil }

const testPassword = "hunter2"

func newTestSigner(t *testing.T) (*accounts.Provider, common.Address) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	provider := accounts.NewProvider()
	addr := provider.Import(priv, testPassword)
	return provider, addr
}

func TestSealRoundTrip(t *testing.T) {
	provider, addr := newTestSigner(t)

	src := fixedStakes{stakes: []staking.Stake{{Address: addr, Point: big.NewInt(100)}}}
	e := New(Config{}, src)
	if err := e.SetSigner(provider, addr, testPassword); err != nil {
		t.Fatalf("SetSigner: %v", err)
	}

	parent := &types.Header{Number: 0}
	header := &types.Header{ParentHash: parent.Hash(), Number: 1, Time: uint64(time.Now().Unix())}
	closed := &sealqueue.ClosedBlock{Header: header, Parent: parent.Hash()}

	proposal := e.GenerateSeal(closed, parent)
	if proposal.Kind != sealing.SealRegular {
		t.Fatalf("expected a regular seal for rank-1 sole candidate, got kind %d", proposal.Kind)
	}

	if err := e.TrySeal(closed, proposal.Seal); err != nil {
		t.Fatalf("TrySeal rejected a valid self-authored seal: %v", err)
	}
}

func TestGenerateSealUnauthorized(t *testing.T) {
	provider, addr := newTestSigner(t)
	_, other := newTestSigner(t)

	src := fixedStakes{stakes: []staking.Stake{{Address: other, Point: big.NewInt(100)}}}
	e := New(Config{}, src)
	if err := e.SetSigner(provider, addr, testPassword); err != nil {
		t.Fatalf("SetSigner: %v", err)
	}

	parent := &types.Header{Number: 0}
	header := &types.Header{ParentHash: parent.Hash(), Number: 1, Time: uint64(time.Now().Unix())}
	closed := &sealqueue.ClosedBlock{Header: header, Parent: parent.Hash()}

	proposal := e.GenerateSeal(closed, parent)
	if proposal.Kind != sealing.SealNone {
		t.Fatalf("expected no seal for an unranked signer, got kind %d", proposal.Kind)
	}
}

func TestSetSignerPropagatesAccountErrors(t *testing.T) {
	provider, addr := newTestSigner(t)
	e := New(Config{}, fixedStakes{})

	err := e.SetSigner(provider, addr, "wrong-password")
	require.ErrorIs(t, err, accounts.ErrInvalidPassword)

	err = e.SetSigner(provider, common.Address{0xaa}, testPassword)
	require.ErrorIs(t, err, accounts.ErrNoSigner)
}
