package derivation

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"golang.org/x/crypto/blake2b"

	"github.com/klingon-exchange/klingvault/pkg/helpers"
)

// ChainCodeLength is the size of a substrate junction chain code.
const ChainCodeLength = 32

// ChainCode returns the substrate chain code of the junction: numeric
// segments encode as a little-endian u64, anything else as a SCALE string.
// Encodings longer than 32 bytes are replaced by their blake2b-256 hash.
func (j Junction) ChainCode() [ChainCodeLength]byte {
	var encoded []byte
	if n, err := strconv.ParseUint(j.Value, 10, 64); err == nil {
		encoded = make([]byte, 8)
		binary.LittleEndian.PutUint64(encoded, n)
	} else {
		encoded = append(helpers.CompactLength(len(j.Value)), j.Value...)
	}

	var cc [ChainCodeLength]byte
	if len(encoded) > ChainCodeLength {
		cc = blake2b.Sum256(encoded)
		return cc
	}
	copy(cc[:], encoded)
	return cc
}

// BIP32 converts an ethereum family path to a go-ethereum derivation path.
// Hard junctions become hardened indexes. The root path converts to the
// default BIP-44 path.
func (p *Path) BIP32() (accounts.DerivationPath, error) {
	if p.Family != FamilyEthereum {
		return nil, fmt.Errorf("%w: BIP-32 conversion requires an ethereum path", ErrInvalidDerivationPath)
	}
	if len(p.Junctions) == 0 {
		return append(accounts.DerivationPath(nil), accounts.DefaultBaseDerivationPath...), nil
	}

	parts := make([]string, 0, len(p.Junctions)+1)
	parts = append(parts, "m")
	for _, j := range p.Junctions {
		if j.Hard {
			parts = append(parts, j.Value+"'")
		} else {
			parts = append(parts, j.Value)
		}
	}
	return accounts.ParseDerivationPath(strings.Join(parts, "/"))
}
