package wallet

import "testing"

func TestNormalize_AliasesCollapse(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"usdt-erc20", "usdt-erc20"},
		{"usdt_erc20", "usdt-erc20"},
		{"USDT ERC20", "usdt-erc20"},
		{"usdt-eth", "usdt-erc20"},
		{"ETH", "ethereum"},
		{"bsc", "bnb"},
		{"  sol  ", "solana"},
		{"TRX", "tron"},
		{"unknown-chain", "unknown-chain"},
	}

	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestInfo(t *testing.T) {
	ci, ok := Info("usdt_trc20")
	if !ok {
		t.Fatal("expected chain info for usdt_trc20")
	}
	if ci.Symbol != "USDT" || ci.Family != FamilyTron {
		t.Errorf("got %+v", ci)
	}

	if _, ok := Info("nope"); ok {
		t.Error("unknown chain should have no info")
	}
}

func TestSymbolFor_Fallback(t *testing.T) {
	if got := SymbolFor("solana"); got != "SOL" {
		t.Errorf("SymbolFor(solana) = %q", got)
	}
	if got := SymbolFor("mystery"); got != "MYSTERY" {
		t.Errorf("SymbolFor(mystery) = %q", got)
	}
}
