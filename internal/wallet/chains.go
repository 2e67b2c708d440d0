// Package wallet normalizes chain identifiers and merges wallet state into
// per-chain token records.
package wallet

import "strings"

// Family groups chains by address scheme.
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilySolana Family = "solana"
	FamilyTron   Family = "tron"
)

// ChainInfo describes one canonical chain.
type ChainInfo struct {
	ID     string
	Symbol string
	Family Family
}

// chains is the canonical chain table. Every supported chain id appears
// exactly once; wire spellings map onto it through aliases.
var chains = map[string]ChainInfo{
	"ethereum":   {ID: "ethereum", Symbol: "ETH", Family: FamilyEVM},
	"bnb":        {ID: "bnb", Symbol: "BNB", Family: FamilyEVM},
	"polygon":    {ID: "polygon", Symbol: "POL", Family: FamilyEVM},
	"solana":     {ID: "solana", Symbol: "SOL", Family: FamilySolana},
	"tron":       {ID: "tron", Symbol: "TRX", Family: FamilyTron},
	"usdt-erc20": {ID: "usdt-erc20", Symbol: "USDT", Family: FamilyEVM},
	"usdt-trc20": {ID: "usdt-trc20", Symbol: "USDT", Family: FamilyTron},
	"usdc-erc20": {ID: "usdc-erc20", Symbol: "USDC", Family: FamilyEVM},
	"usdc-spl":   {ID: "usdc-spl", Symbol: "USDC", Family: FamilySolana},
}

// aliases collapse alternative spellings to one canonical id. Keys are in
// normalized form (lowercase, dash separators).
var aliases = map[string]string{
	"eth":        "ethereum",
	"ether":      "ethereum",
	"bsc":        "bnb",
	"binance":    "bnb",
	"bnb-chain":  "bnb",
	"matic":      "polygon",
	"pol":        "polygon",
	"sol":        "solana",
	"trx":        "tron",
	"usdt-eth":   "usdt-erc20",
	"usdt-tron":  "usdt-trc20",
	"usdc-eth":   "usdc-erc20",
	"usdc-sol":   "usdc-spl",
	"usdc-spl20": "usdc-spl",
}

// Normalize collapses a chain identifier to its canonical id: lowercased,
// separators unified to dashes, aliases applied.
func Normalize(chain string) string {
	c := strings.ToLower(strings.TrimSpace(chain))
	c = strings.NewReplacer("_", "-", " ", "-").Replace(c)
	if canonical, ok := aliases[c]; ok {
		return canonical
	}
	return c
}

// Info returns chain metadata for a possibly aliased identifier.
func Info(chain string) (ChainInfo, bool) {
	ci, ok := chains[Normalize(chain)]
	return ci, ok
}

// SymbolFor returns the token symbol for a chain identifier, falling back
// to the uppercased id for chains outside the canonical table.
func SymbolFor(chain string) string {
	if ci, ok := Info(chain); ok {
		return ci.Symbol
	}
	return strings.ToUpper(Normalize(chain))
}
