// Package transfer guards the on-chain send behind a PIN gate and
// normalizes addresses to their chain-specific canonical form.
package transfer

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"

	"crypto-billpay/internal/wallet"
)

// ErrInvalidAddress is returned when an address fails its chain's
// normalization rule. No network call is made in that case.
var ErrInvalidAddress = errors.New("invalid address")

// NormalizeAddress applies the canonical form for the chain's address
// scheme to a raw address string.
func NormalizeAddress(chain, address string) (string, error) {
	info, ok := wallet.Info(chain)
	if !ok {
		return "", fmt.Errorf("%w: unsupported chain %q", ErrInvalidAddress, chain)
	}

	switch info.Family {
	case wallet.FamilyEVM:
		return checksumEVM(address)
	case wallet.FamilySolana:
		return normalizeSolana(address)
	case wallet.FamilyTron:
		return normalizeTron(address)
	}
	return "", fmt.Errorf("%w: no normalization rule for chain %q", ErrInvalidAddress, chain)
}

// checksumEVM validates a 20-byte hex address and applies the EIP-55
// mixed-case checksum.
func checksumEVM(address string) (string, error) {
	addr := strings.TrimSpace(address)
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return "", fmt.Errorf("%w: missing 0x prefix", ErrInvalidAddress)
	}
	hexPart := strings.ToLower(addr[2:])
	if len(hexPart) != 40 {
		return "", fmt.Errorf("%w: evm address must be 40 hex chars", ErrInvalidAddress)
	}
	for _, c := range hexPart {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: non-hex character %q", ErrInvalidAddress, c)
		}
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(hexPart))
	sum := h.Sum(nil)

	out := make([]byte, 40)
	for i := 0; i < 40; i++ {
		c := hexPart[i]
		if c >= 'a' && (sum[i/2]>>(4*(1-uint(i)%2)))&0xf >= 8 {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out), nil
}

// normalizeSolana decodes a base58 address, requires 32 bytes, and checks
// the bytes are the canonical encoding of an ed25519 curve point.
func normalizeSolana(address string) (string, error) {
	raw, err := base58.Decode(strings.TrimSpace(address))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("%w: solana address must decode to 32 bytes, got %d", ErrInvalidAddress, len(raw))
	}
	p, err := new(edwards25519.Point).SetBytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: not a curve point", ErrInvalidAddress)
	}
	// SetBytes also admits non-canonical encodings of valid points, so
	// the round trip must reproduce the input exactly.
	if !bytes.Equal(p.Bytes(), raw) {
		return "", fmt.Errorf("%w: non-canonical point encoding", ErrInvalidAddress)
	}
	return base58.Encode(raw), nil
}

// normalizeTron decodes a base58check address: 21-byte payload with 0x41
// prefix, followed by a 4-byte double-sha256 checksum.
func normalizeTron(address string) (string, error) {
	raw, err := base58.Decode(strings.TrimSpace(address))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 25 {
		return "", fmt.Errorf("%w: tron address must decode to 25 bytes, got %d", ErrInvalidAddress, len(raw))
	}
	if raw[0] != 0x41 {
		return "", fmt.Errorf("%w: tron address prefix must be 0x41", ErrInvalidAddress)
	}

	payload, checksum := raw[:21], raw[21:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	if !bytes.Equal(second[:4], checksum) {
		return "", fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	return base58.Encode(raw), nil
}
