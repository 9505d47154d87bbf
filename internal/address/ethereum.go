package address

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

func encodeEthereum(accountID []byte, checksum bool) (string, error) {
	if len(accountID) != EthereumAccountIDLength {
		return "", &AddressError{
			Reason: ReasonLength,
			Detail: fmt.Sprintf("account id has %d bytes, want %d", len(accountID), EthereumAccountIDLength),
		}
	}
	if !checksum {
		return "0x" + hex.EncodeToString(accountID), nil
	}
	// common.Address.Hex applies EIP-55.
	return common.BytesToAddress(accountID).Hex(), nil
}

func decodeEthereum(addr string) ([]byte, error) {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return nil, &AddressError{Address: addr, Reason: ReasonEncoding, Detail: "missing 0x prefix"}
	}
	digits := addr[2:]
	if len(digits) != 2*EthereumAccountIDLength {
		return nil, &AddressError{
			Address: addr,
			Reason:  ReasonLength,
			Detail:  fmt.Sprintf("%d hex digits, want %d", len(digits), 2*EthereumAccountIDLength),
		}
	}

	raw, err := hex.DecodeString(digits)
	if err != nil {
		return nil, &AddressError{Address: addr, Reason: ReasonEncoding, Detail: err.Error()}
	}

	// Single-case addresses carry no checksum.
	if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) {
		if common.BytesToAddress(raw).Hex()[2:] != digits {
			return nil, &AddressError{Address: addr, Reason: ReasonChecksum}
		}
	}
	return raw, nil
}
