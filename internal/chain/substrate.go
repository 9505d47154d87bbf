package chain

import "github.com/klingon-exchange/klingvault/internal/address"

func init() {
	// ==========================================================================
	// Relay chains
	// ==========================================================================

	mustRegister(Chain{
		ID:     "91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3",
		Name:   "Polkadot",
		Format: address.Substrate(0),
	})

	mustRegister(Chain{
		ID:     "b0a8d493285c2df73290dfb7e61f870f17b41801197a149ca93654499ea3dafe",
		Name:   "Kusama",
		Format: address.Substrate(2),
	})

	mustRegister(Chain{
		ID:      "e143f23803ac50e8f6f8e62695d1ce9e4e1d68aa36c1cd2cfd15340213f3423e",
		Name:    "Westend",
		Format:  address.Substrate(42),
		Testnet: true,
	})

	// ==========================================================================
	// Parachains
	// ==========================================================================

	mustRegister(Chain{
		ID:     "9eb76c5184c4ab8679d2d5d819fdf90b9c001403e9e17da2e14b6d8aec4029c6",
		Name:   "Astar",
		Format: address.Substrate(5),
	})

	mustRegister(Chain{
		ID:     "fc41b9bd8ef8fe53d58c7ea67c794c7ec9a73daf05e6d54b14ff6342c99ba64c",
		Name:   "Acala",
		Format: address.Substrate(10),
	})
}
