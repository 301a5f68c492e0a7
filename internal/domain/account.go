package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Account identifies a participant by its checksummed hex address.
type Account string

// ParseAccount validates and normalizes a hex account address. The zero
// address and anything that is not a 20-byte hex string are rejected, so a
// misconfigured resolver or protocol address can never silently absorb value.
func ParseAccount(s string) (Account, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("domain: account %q: %w", s, ErrInvalidAccount)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return "", fmt.Errorf("domain: zero account: %w", ErrInvalidAccount)
	}
	return Account(addr.Hex()), nil
}

// String returns the checksummed hex form.
func (a Account) String() string { return string(a) }
