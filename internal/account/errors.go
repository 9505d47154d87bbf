// Package account implements the multi-chain identity model: crypto types,
// chain accounts, the MetaAccount aggregate and per-chain resolution.
package account

import "errors"

var (
	// ErrUnknownCryptoType is returned for tags or labels outside the known schemes.
	ErrUnknownCryptoType = errors.New("unknown crypto type")

	// ErrInconsistentAccountData is returned when an account id, public key
	// and crypto type do not agree with each other or with the target chain.
	ErrInconsistentAccountData = errors.New("inconsistent account data")

	// ErrEmptyName is returned when a wallet name is blank after trimming.
	ErrEmptyName = errors.New("name is empty")

	// ErrNoAccountForChain signals that a wallet has no identity usable on a
	// chain. It is a valid resolution outcome, offered for callers that need
	// an error value.
	ErrNoAccountForChain = errors.New("no account for chain")

	// ErrMetaAccountNotFound is returned for unknown meta ids.
	ErrMetaAccountNotFound = errors.New("meta account not found")
)
