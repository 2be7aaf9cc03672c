// Package utils holds small validation and amount-conversion helpers.
package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var hexRe = regexp.MustCompile("^[0-9a-fA-F]+$")

// ValidateTransactionHash checks the shape of an EVM transaction hash:
// 0x prefix plus 64 hex characters.
func ValidateTransactionHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}
	if !strings.HasPrefix(hash, "0x") {
		return fmt.Errorf("transaction hash must start with 0x")
	}
	if len(hash) != 66 {
		return fmt.Errorf("transaction hash must be 66 characters long")
	}
	if !hexRe.MatchString(hash[2:]) {
		return fmt.Errorf("transaction hash must be valid hex")
	}
	return nil
}

// ValidateAddress checks the shape of an EVM address.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(address, "0x") {
		return fmt.Errorf("address must start with 0x")
	}
	if len(address) != 42 {
		return fmt.Errorf("address must be 42 characters long")
	}
	if !hexRe.MatchString(address[2:]) {
		return fmt.Errorf("address must be valid hex")
	}
	return nil
}

// ParseAmountWithDecimals converts a decimal amount string ("1000") into
// the token's smallest unit as a big integer.
func ParseAmountWithDecimals(amount string, decimals int) (*big.Int, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	multiplier := decimal.NewFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil), 0)
	return dec.Mul(multiplier).BigInt(), nil
}

// FormatAmount renders a smallest-unit amount as a display string with two
// decimal places, e.g. 1000 whole units at 18 decimals -> "1000.00".
func FormatAmount(amount *big.Int, decimals int) string {
	dec := decimal.NewFromBigInt(amount, -int32(decimals))
	return dec.StringFixed(2)
}
