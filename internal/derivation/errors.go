package derivation

import (
	"errors"
	"fmt"
)

// ErrInvalidDerivationPath matches every *PathError.
var ErrInvalidDerivationPath = errors.New("invalid derivation path")

// Reason classifies a rejected derivation path.
type Reason string

const (
	ReasonSoftJunction        Reason = "soft junction not allowed for crypto type"
	ReasonPasswordNotAllowed  Reason = "password junction only allowed for mnemonic secrets"
	ReasonMalformedSegment    Reason = "malformed segment"
	ReasonNonNumericSegment   Reason = "segment must be numeric"
	ReasonSegmentOutOfRange   Reason = "segment out of range"
	ReasonUnknownCryptoFamily Reason = "unknown crypto type"
)

// PathError describes why a derivation path was rejected.
type PathError struct {
	Path    string
	Reason  Reason
	Segment string
}

func (e *PathError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("invalid derivation path %q: %s (%q)", e.Path, e.Reason, e.Segment)
	}
	return fmt.Sprintf("invalid derivation path %q: %s", e.Path, e.Reason)
}

// Is lets errors.Is match ErrInvalidDerivationPath.
func (e *PathError) Is(target error) bool {
	return target == ErrInvalidDerivationPath
}
