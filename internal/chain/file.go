package chain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/klingon-exchange/klingvault/internal/address"
)

// fileChain is the YAML shape of one entry in a chain list file.
type fileChain struct {
	ID            string  `yaml:"id"`
	Name          string  `yaml:"name"`
	EthereumBased bool    `yaml:"ethereum_based"`
	AddressPrefix *uint16 `yaml:"address_prefix,omitempty"`
	Checksum      *bool   `yaml:"checksum,omitempty"`
	Testnet       bool    `yaml:"testnet,omitempty"`
}

type chainFile struct {
	Chains []fileChain `yaml:"chains"`
}

// ParseList decodes a YAML chain list.
func ParseList(data []byte) ([]Chain, error) {
	var f chainFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse chain list: %w", err)
	}

	chains := make([]Chain, 0, len(f.Chains))
	for i, fc := range f.Chains {
		c := Chain{
			ID:              fc.ID,
			Name:            fc.Name,
			IsEthereumBased: fc.EthereumBased,
			Testnet:         fc.Testnet,
		}
		if fc.EthereumBased {
			if fc.AddressPrefix != nil {
				return nil, fmt.Errorf("chain %d (%s): address_prefix is not allowed for ethereum-based chains", i, fc.ID)
			}
			c.Format = address.Ethereum()
			if fc.Checksum != nil {
				c.Format.Checksum = *fc.Checksum
			}
		} else {
			if fc.AddressPrefix == nil {
				return nil, fmt.Errorf("chain %d (%s): address_prefix is required for substrate chains", i, fc.ID)
			}
			c.Format = address.Substrate(*fc.AddressPrefix)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("chain %d: %w", i, err)
		}
		chains = append(chains, c)
	}
	return chains, nil
}

// LoadFile reads a YAML chain list from disk.
func LoadFile(path string) ([]Chain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain list: %w", err)
	}
	return ParseList(data)
}

// Merge returns base with overrides applied: entries sharing an id are
// replaced in place, new ids are appended.
func Merge(base, overrides []Chain) []Chain {
	out := make([]Chain, len(base))
	copy(out, base)
	index := make(map[string]int, len(out))
	for i, c := range out {
		index[c.ID] = i
	}
	for _, c := range overrides {
		if i, ok := index[c.ID]; ok {
			out[i] = c
			continue
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	return out
}
