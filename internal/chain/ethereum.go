package chain

import "github.com/klingon-exchange/klingvault/internal/address"

func init() {
	// ==========================================================================
	// Ethereum-based parachains (20-byte accounts, hex addresses)
	// ==========================================================================

	mustRegister(Chain{
		ID:              "fe58ea77779b7abda7da4ec526d14db9b1e9cd40a217c34892af80a9108b2e5d",
		Name:            "Moonbeam",
		IsEthereumBased: true,
		Format:          address.Ethereum(),
	})

	mustRegister(Chain{
		ID:              "401a1f9dca3da46f5c4091016c8a2f26dcea05865116b286f60f668207d1474b",
		Name:            "Moonriver",
		IsEthereumBased: true,
		Format:          address.Ethereum(),
	})

	// ==========================================================================
	// Ethereum
	// ==========================================================================

	mustRegister(Chain{
		ID:              "eip155:1",
		Name:            "Ethereum",
		IsEthereumBased: true,
		Format:          address.Ethereum(),
	})
}
