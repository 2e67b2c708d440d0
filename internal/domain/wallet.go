package domain

// Network selects the chain environment all wallet calls operate on.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// WalletAddress is one deposit address as returned by the wallet service.
type WalletAddress struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Network string `json:"network"`
}

// WalletBalance is one balance entry as returned by the wallet service.
// Chain and Symbol are both optional on the wire; at least one is set.
type WalletBalance struct {
	Chain   string  `json:"chain,omitempty"`
	Symbol  string  `json:"symbol,omitempty"`
	Balance float64 `json:"balance"`
	Network string  `json:"network"`
}

// WalletToken is a normalized per-chain balance record, the unit the
// payment flow reasons about.
type WalletToken struct {
	Chain     string  `json:"chain"` // canonical chain id
	Symbol    string  `json:"symbol"`
	Address   string  `json:"address"`
	Network   string  `json:"network"`
	Balance   float64 `json:"balance"`
	FiatRate  float64 `json:"fiatRate"`
	FiatValue float64 `json:"fiatValue"`
}
