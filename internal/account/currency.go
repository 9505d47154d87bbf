package account

// Currency is the fiat currency preference of a wallet.
type Currency struct {
	ID         int    `json:"id"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Icon       string `json:"icon,omitempty"`
	IsSelected bool   `json:"is_selected"`
}

// DefaultCurrency returns the preference used when none was stored.
func DefaultCurrency() Currency {
	return Currency{
		ID:         0,
		Symbol:     "$",
		Name:       "USD",
		Icon:       "usd",
		IsSelected: true,
	}
}

// IsZero reports whether the currency was never set.
func (c Currency) IsZero() bool {
	return c == Currency{}
}
