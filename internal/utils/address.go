package utils

import (
	"encoding/hex"
	"strings"

	"dex-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
)

const (
	addressLength   = 42  // 0x + 20 bytes
	signatureLength = 132 // 0x + 65 bytes (r || s || v)
	hashLength      = 66  // 0x + 32 bytes
)

// decodeHexField strips the 0x prefix and decodes the remaining hex digits.
func decodeHexField(value string) ([]byte, bool) {
	if len(value) < 2 || value[0] != '0' || (value[1] != 'x' && value[1] != 'X') {
		return nil, false
	}
	raw, err := hex.DecodeString(value[2:])
	if err != nil {
		return nil, false
	}
	return raw, true
}

// ParseAddress validates a 0x-prefixed 20-byte hex address in any casing.
func ParseAddress(field, value string) (common.Address, error) {
	switch {
	case len(value) < addressLength:
		return common.Address{}, types.NewFieldError(field, types.ErrShortAddress)
	case len(value) > addressLength:
		return common.Address{}, types.NewFieldError(field, types.ErrLongAddress)
	}
	raw, ok := decodeHexField(value)
	if !ok {
		return common.Address{}, types.NewFieldError(field, types.ErrWrongAddress)
	}
	return common.BytesToAddress(raw), nil
}

// ParseChecksumAddress is ParseAddress plus an exact EIP-55 casing check.
func ParseChecksumAddress(field, value string) (common.Address, error) {
	addr, err := ParseAddress(field, value)
	if err != nil {
		return common.Address{}, err
	}
	if addr.Hex() != value {
		return common.Address{}, types.NewFieldError(field, types.ErrWrongChecksum)
	}
	return addr, nil
}

// ChecksumAddress returns the EIP-55 form of an address string, or the input
// unchanged when it is not a valid address.
func ChecksumAddress(value string) string {
	if !common.IsHexAddress(value) {
		return value
	}
	return common.HexToAddress(value).Hex()
}

// SameAddress compares two addresses by their checksum-normalized form.
func SameAddress(a, b string) bool {
	return ChecksumAddress(a) == ChecksumAddress(b)
}

// ParseSignature validates a 65-byte hex signature and returns its bytes.
func ParseSignature(field, value string) ([]byte, error) {
	switch {
	case len(value) < signatureLength:
		return nil, types.NewFieldError(field, types.ErrShortSignature)
	case len(value) > signatureLength:
		return nil, types.NewFieldError(field, types.ErrLongSignature)
	}
	raw, ok := decodeHexField(value)
	if !ok {
		return nil, types.NewFieldError(field, types.ErrWrongSignature)
	}
	return raw, nil
}

// ParseHash validates a 32-byte hex hash.
func ParseHash(field, value string) (common.Hash, error) {
	switch {
	case len(value) < hashLength:
		return common.Hash{}, types.NewFieldError(field, types.ErrShortHash)
	case len(value) > hashLength:
		return common.Hash{}, types.NewFieldError(field, types.ErrLongHash)
	}
	raw, ok := decodeHexField(value)
	if !ok {
		return common.Hash{}, types.NewFieldError(field, types.ErrWrongHash)
	}
	return common.BytesToHash(raw), nil
}

// NormalizeHash lowercases a hash string so lookups are casing-insensitive.
func NormalizeHash(value string) string {
	return strings.ToLower(value)
}
