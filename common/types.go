// Package common holds the small fixed-size value types shared by every
// other package in this module: addresses and hashes.
package common

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const (
	// AddressLength is the expected byte length of an address.
	AddressLength = 20
	// HashLength is the expected byte length of a hash.
	HashLength = 32
)

// Address represents the 20 byte address of an account.
type Address [AddressLength]byte

// BytesToAddress returns an Address from the right-aligned trailing bytes of b.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

func (a Address) Bytes() []byte { return a[:] }

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// Hex is an alias of String, the common Ethereum-style naming for
// hex-encoded identifiers used throughout logging call sites.
func (a Address) Hex() string { return a.String() }

func (a Address) IsZero() bool { return a == Address{} }

// Hash represents a 32 byte Keccak256 hash.
type Hash [HashLength]byte

// BytesToHash returns a Hash from the right-aligned trailing bytes of b.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

// Hex is an alias of String, the common Ethereum-style naming for
// hex-encoded identifiers used throughout logging call sites.
func (h Hash) Hex() string { return h.String() }

func (h Hash) IsZero() bool { return h == Hash{} }

// Keccak256 hashes the concatenation of data using the SHA3/Keccak permutation.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash hashes data and wraps the result as a Hash.
func Keccak256Hash(data ...[]byte) (h Hash) {
	copy(h[:], Keccak256(data...))
	return h
}

// Bloom represents a 2048 bit bloom filter used on block headers.
type Bloom [256]byte

func (b *Bloom) Add(data []byte) {
	h := Keccak256(data)
	for i := 0; i < 3; i++ {
		bitIdx := (uint(h[2*i+1]) + uint(h[2*i])<<8) & 2047
		byteIdx := bitIdx / 8
		bitPos := bitIdx % 8
		b[BloomByteLength-1-byteIdx] |= 1 << bitPos
	}
}

const BloomByteLength = 256

func (b Bloom) String() string { return fmt.Sprintf("%x", b[:]) }
