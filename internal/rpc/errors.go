package rpc

import (
	"errors"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/address"
	"github.com/klingon-exchange/klingvault/internal/chain"
	"github.com/klingon-exchange/klingvault/internal/derivation"
	"github.com/klingon-exchange/klingvault/internal/storage"
	"github.com/klingon-exchange/klingvault/internal/wallet"
	"github.com/klingon-exchange/klingvault/pkg/helpers"
)

// Standard error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Application error codes.
const (
	NotFound          = -32004
	NoAccountForChain = -32010
	WrongPassword     = -32011
)

// errInvalidParams wraps malformed or missing request parameters.
var errInvalidParams = errors.New("invalid params")

var invalidParamsErrors = []error{
	errInvalidParams,
	helpers.ErrInvalidHex,
	account.ErrUnknownCryptoType,
	account.ErrInconsistentAccountData,
	account.ErrEmptyName,
	address.ErrInvalidAddress,
	derivation.ErrInvalidDerivationPath,
	wallet.ErrInvalidMnemonic,
	wallet.ErrInvalidSeed,
	wallet.ErrInvalidKeystore,
	wallet.ErrInvalidPublicKey,
	wallet.ErrIdentityMismatch,
	wallet.ErrUnsupportedDerivation,
	wallet.ErrWeakPassword,
	wallet.ErrInvalidRequest,
}

var notFoundErrors = []error{
	account.ErrMetaAccountNotFound,
	chain.ErrChainNotFound,
	storage.ErrSecretNotFound,
}

// errorCode maps an error kind to its JSON-RPC code.
func errorCode(err error) int {
	switch {
	case errors.Is(err, account.ErrNoAccountForChain):
		return NoAccountForChain
	case errors.Is(err, wallet.ErrWrongPassword):
		return WrongPassword
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return NotFound
		}
	}
	for _, target := range invalidParamsErrors {
		if errors.Is(err, target) {
			return InvalidParams
		}
	}
	return InternalError
}
