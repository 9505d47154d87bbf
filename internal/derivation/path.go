// Package derivation validates hierarchical key derivation paths.
//
// Substrate paths are a sequence of hard (//seg) and soft (/seg) junctions
// with an optional ///password suffix. Ethereum paths use the same syntax
// with numeric BIP-44 style segments, e.g. //44//60//0/0/0.
package derivation

import (
	"strconv"
	"strings"

	"github.com/klingon-exchange/klingvault/internal/account"
)

// DefaultEthereumPath is the BIP-44 path of the first ethereum account.
const DefaultEthereumPath = "//44//60//0/0/0"

// maxEthereumSegment is the first hardened BIP-32 index.
const maxEthereumSegment = 1 << 31

const passwordSeparator = "///"

// SecretSource is the kind of secret a path is applied to.
type SecretSource int

const (
	SourceMnemonic SecretSource = iota
	SourceSeed
	SourceKeystore
)

func (s SecretSource) String() string {
	switch s {
	case SourceMnemonic:
		return "mnemonic"
	case SourceSeed:
		return "seed"
	case SourceKeystore:
		return "keystore"
	default:
		return "unknown"
	}
}

// Family selects the path grammar.
type Family int

const (
	FamilySubstrate Family = iota
	FamilyEthereum
)

// FamilyOf returns the grammar family of a crypto type.
func FamilyOf(ct account.CryptoType) Family {
	if ct.IsEthereumCompatible() {
		return FamilyEthereum
	}
	return FamilySubstrate
}

// Junction is one path segment.
type Junction struct {
	Value string
	Hard  bool
}

func (j Junction) String() string {
	if j.Hard {
		return "//" + j.Value
	}
	return "/" + j.Value
}

// Path is a validated derivation path.
type Path struct {
	raw         string
	Family      Family
	CryptoType  account.CryptoType
	Junctions   []Junction
	Password    string
	HasPassword bool
}

// Raw returns the string the path was validated from.
func (p *Path) Raw() string { return p.raw }

// IsRoot reports whether the path selects the root key.
func (p *Path) IsRoot() bool {
	return len(p.Junctions) == 0 && !p.HasPassword
}

// String returns the canonical form of the path.
func (p *Path) String() string {
	var b strings.Builder
	for _, j := range p.Junctions {
		b.WriteString(j.String())
	}
	if p.HasPassword {
		b.WriteString(passwordSeparator)
		b.WriteString(p.Password)
	}
	return b.String()
}

// Validate parses path against the grammar of ct and the rules of src.
// The empty path is always valid.
func Validate(path string, ct account.CryptoType, src SecretSource) (*Path, error) {
	if !ct.IsValid() {
		return nil, &PathError{Path: path, Reason: ReasonUnknownCryptoFamily}
	}

	p := &Path{raw: path, Family: FamilyOf(ct), CryptoType: ct}
	if path == "" {
		return p, nil
	}

	body := path
	if i := strings.Index(path, passwordSeparator); i >= 0 {
		body = path[:i]
		p.Password = path[i+len(passwordSeparator):]
		p.HasPassword = true
		if p.Password == "" {
			return nil, &PathError{Path: path, Reason: ReasonMalformedSegment, Segment: passwordSeparator}
		}
	}

	junctions, err := splitJunctions(path, body)
	if err != nil {
		return nil, err
	}

	for _, j := range junctions {
		switch p.Family {
		case FamilySubstrate:
			if !j.Hard && ct != account.SR25519 {
				return nil, &PathError{Path: path, Reason: ReasonSoftJunction, Segment: j.String()}
			}
		case FamilyEthereum:
			if !isDecimal(j.Value) {
				return nil, &PathError{Path: path, Reason: ReasonNonNumericSegment, Segment: j.String()}
			}
			n, err := strconv.ParseUint(j.Value, 10, 64)
			if err != nil || n >= maxEthereumSegment {
				return nil, &PathError{Path: path, Reason: ReasonSegmentOutOfRange, Segment: j.String()}
			}
		}
	}

	if p.HasPassword && src != SourceMnemonic {
		return nil, &PathError{Path: path, Reason: ReasonPasswordNotAllowed, Segment: passwordSeparator + p.Password}
	}

	p.Junctions = junctions
	return p, nil
}

// IsValid reports whether Validate would accept the path.
func IsValid(path string, ct account.CryptoType, src SecretSource) bool {
	_, err := Validate(path, ct, src)
	return err == nil
}

func splitJunctions(path, body string) ([]Junction, error) {
	var out []Junction
	for i := 0; i < len(body); {
		if body[i] != '/' {
			return nil, &PathError{Path: path, Reason: ReasonMalformedSegment, Segment: body[i:]}
		}
		hard := strings.HasPrefix(body[i:], "//")
		if hard {
			i += 2
		} else {
			i++
		}

		end := strings.IndexByte(body[i:], '/')
		if end < 0 {
			end = len(body) - i
		}
		seg := body[i : i+end]
		if seg == "" {
			return nil, &PathError{Path: path, Reason: ReasonMalformedSegment, Segment: body[:i]}
		}
		out = append(out, Junction{Value: seg, Hard: hard})
		i += end
	}
	return out, nil
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
