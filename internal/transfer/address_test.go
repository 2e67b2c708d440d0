package transfer

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

func TestNormalizeAddress_EVMChecksum(t *testing.T) {
	// EIP-55 reference vector.
	got, err := NormalizeAddress("ethereum", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if err != nil {
		t.Fatalf("NormalizeAddress failed: %v", err)
	}
	want := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	// Normalization is idempotent on an already-checksummed address.
	again, err := NormalizeAddress("ethereum", got)
	if err != nil || again != want {
		t.Errorf("re-normalize = %s (%v)", again, err)
	}
}

func TestNormalizeAddress_EVMRejectsMalformed(t *testing.T) {
	cases := []string{
		"5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", // no prefix
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1bea",  // too short
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaZZ",
		"",
	}
	for _, addr := range cases {
		if _, err := NormalizeAddress("ethereum", addr); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("NormalizeAddress(%q) err = %v, want ErrInvalidAddress", addr, err)
		}
	}
}

func TestNormalizeAddress_Solana(t *testing.T) {
	// The ed25519 generator encoding is a known on-curve point.
	point := append([]byte{0x58}, bytes.Repeat([]byte{0x66}, 31)...)
	addr := base58.Encode(point)

	got, err := NormalizeAddress("solana", addr)
	if err != nil {
		t.Fatalf("NormalizeAddress failed: %v", err)
	}
	if got != addr {
		t.Errorf("got %s, want %s", got, addr)
	}
}

func TestNormalizeAddress_SolanaRejectsBadPoint(t *testing.T) {
	// 32 bytes of 0xff is a non-canonical field element.
	bad := base58.Encode(bytes.Repeat([]byte{0xff}, 32))
	if _, err := NormalizeAddress("solana", bad); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("err = %v, want ErrInvalidAddress", err)
	}

	// A non-canonical encoding of a valid point: the coordinate p+1
	// decodes to the same point as y=1 but is above the field order.
	enc := append([]byte{0xee}, bytes.Repeat([]byte{0xff}, 30)...)
	enc = append(enc, 0x7f)
	if _, err := NormalizeAddress("solana", base58.Encode(enc)); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("err = %v, want ErrInvalidAddress for a non-canonical encoding", err)
	}

	// Wrong length.
	short := base58.Encode([]byte{1, 2, 3})
	if _, err := NormalizeAddress("solana", short); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("err = %v, want ErrInvalidAddress", err)
	}
}

// tronAddress builds a valid base58check tron address from 20 body bytes.
func tronAddress(body [20]byte) string {
	payload := append([]byte{0x41}, body[:]...)
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return base58.Encode(append(payload, second[:4]...))
}

func TestNormalizeAddress_Tron(t *testing.T) {
	addr := tronAddress([20]byte{1, 2, 3, 4, 5})

	got, err := NormalizeAddress("tron", addr)
	if err != nil {
		t.Fatalf("NormalizeAddress failed: %v", err)
	}
	if got != addr {
		t.Errorf("got %s, want %s", got, addr)
	}

	// Chain aliases resolve to the same rule.
	if _, err := NormalizeAddress("usdt_trc20", addr); err != nil {
		t.Errorf("aliased chain failed: %v", err)
	}
}

func TestNormalizeAddress_TronRejectsBadChecksum(t *testing.T) {
	addr := tronAddress([20]byte{1, 2, 3, 4, 5})
	raw, _ := base58.Decode(addr)
	raw[24] ^= 0xff
	corrupted := base58.Encode(raw)

	if _, err := NormalizeAddress("tron", corrupted); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("err = %v, want ErrInvalidAddress", err)
	}
}

func TestNormalizeAddress_UnsupportedChain(t *testing.T) {
	if _, err := NormalizeAddress("dogecoin", "whatever"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("err = %v, want ErrInvalidAddress", err)
	}
}
