package pricing

import "testing"

func TestRequiredCryptoAmount_RoundsUp(t *testing.T) {
	cases := []struct {
		quoted float64
		want   float64
	}{
		// Fiat 500 at 500,000 per unit: already at 7dp, no rounding.
		{0.001, 0.001},
		{0.00000001, 0.0000001},
		{0.12345678, 0.1234568},
		{0.1234567, 0.1234567},
		{1.99999999, 2.0},
		{0, 0},
	}

	for _, c := range cases {
		got := RequiredCryptoAmount(c.quoted)
		if got != c.want {
			t.Errorf("RequiredCryptoAmount(%v) = %v, want %v", c.quoted, got, c.want)
		}
		if got < c.quoted {
			t.Errorf("RequiredCryptoAmount(%v) = %v rounded down", c.quoted, got)
		}
	}
}
