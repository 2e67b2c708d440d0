package rates

import "testing"

func TestTable_RateOrDefault(t *testing.T) {
	table := NewTable()

	// Unknown symbols resolve to the neutral rate.
	if got := table.RateOrDefault("SOL"); got != 1 {
		t.Errorf("unknown symbol rate = %v, want 1", got)
	}

	table.Update("SOL", 150.5)
	if got := table.RateOrDefault("SOL"); got != 150.5 {
		t.Errorf("rate = %v, want 150.5", got)
	}
}

func TestTable_CaseInsensitive(t *testing.T) {
	table := NewTable()
	table.Update("usdt", 1.0)

	if _, ok := table.Rate("USDT"); !ok {
		t.Error("expected case-insensitive lookup")
	}
}

func TestTable_Snapshot(t *testing.T) {
	table := NewTable()
	table.Update("BTC", 60000)
	table.Update("ETH", 3000)

	snap := table.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d entries, want 2", len(snap))
	}

	// Mutating the snapshot must not affect the table.
	snap["BTC"] = 0
	if got, _ := table.Rate("BTC"); got != 60000 {
		t.Errorf("table mutated through snapshot: %v", got)
	}
}
