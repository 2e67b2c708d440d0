package wallet

import (
	"sort"
	"strings"

	"crypto-billpay/internal/domain"
)

// RateSource provides fiat rates by token symbol. Unknown symbols resolve
// to the neutral rate 1.
type RateSource interface {
	RateOrDefault(symbol string) float64
}

// Aggregate merges an address list and a balance list into one WalletToken
// per canonical chain. A chain present in the address list but absent from
// the balance list has a wallet with balance 0. The result is sorted
// descending by fiat value.
func Aggregate(addrs []domain.WalletAddress, balances []domain.WalletBalance, rates RateSource) []domain.WalletToken {
	byChain := make(map[string]*domain.WalletToken)
	var order []string

	track := func(id string, network string) *domain.WalletToken {
		tok, ok := byChain[id]
		if !ok {
			tok = &domain.WalletToken{Chain: id, Symbol: SymbolFor(id), Network: network}
			byChain[id] = tok
			order = append(order, id)
		}
		return tok
	}

	for _, a := range addrs {
		tok := track(Normalize(a.Chain), a.Network)
		if tok.Address == "" {
			tok.Address = a.Address
		}
	}

	for _, b := range balances {
		ident := b.Chain
		if ident == "" {
			ident = b.Symbol
		}
		id := Normalize(ident)

		tok, ok := byChain[id]
		if !ok && b.Symbol != "" {
			// Balance entries may carry only a symbol; match against an
			// already-tracked chain before inventing a new one.
			for _, existing := range byChain {
				if strings.EqualFold(existing.Symbol, b.Symbol) {
					tok = existing
					ok = true
					break
				}
			}
		}
		if !ok {
			tok = track(id, b.Network)
		}
		tok.Balance = b.Balance
	}

	tokens := make([]domain.WalletToken, 0, len(order))
	for _, id := range order {
		tok := byChain[id]
		tok.FiatRate = rates.RateOrDefault(tok.Symbol)
		tok.FiatValue = tok.Balance * tok.FiatRate
		tokens = append(tokens, *tok)
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].FiatValue > tokens[j].FiatValue
	})
	return tokens
}

// Find returns the token matching a chain identifier or symbol. The
// normalized chain id is matched first, the symbol as fallback; when
// several tokens qualify the highest balance wins.
func Find(tokens []domain.WalletToken, chainOrSymbol string) (domain.WalletToken, bool) {
	id := Normalize(chainOrSymbol)

	var best domain.WalletToken
	found := false
	for _, tok := range tokens {
		if tok.Chain == id && (!found || tok.Balance > best.Balance) {
			best = tok
			found = true
		}
	}
	if found {
		return best, true
	}

	for _, tok := range tokens {
		if strings.EqualFold(tok.Symbol, chainOrSymbol) && (!found || tok.Balance > best.Balance) {
			best = tok
			found = true
		}
	}
	return best, found
}
