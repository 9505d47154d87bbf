package wallet

import "errors"

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidSeed     = errors.New("invalid seed")

	// ErrUnsupportedDerivation is returned for key derivations this wallet
	// cannot perform, such as derived paths on raw ethereum keys.
	ErrUnsupportedDerivation = errors.New("unsupported derivation")

	ErrWeakPassword   = errors.New("weak password")
	ErrInvalidRequest = errors.New("invalid request")

	ErrInvalidKeystore  = errors.New("invalid keystore")
	ErrWrongPassword    = errors.New("wrong password")
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrIdentityMismatch is returned when an account id does not belong
	// to the public key it was supplied with.
	ErrIdentityMismatch = errors.New("account id does not match public key")
)
