package typetag

import (
	"strings"
)

// AddressLength is the byte length of an on-chain address.
const AddressLength = 32

func trimHexPrefix(s string) (string, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:], true
	}
	return s, false
}

func validHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// CompressAddress strips the leading zeros of a hex address:
// `0x0000…0002` becomes `0x2` and the zero address becomes `0x0`.
func CompressAddress(addr string) (string, error) {
	digits, ok := trimHexPrefix(addr)
	if !ok {
		return "", errorf("address %q must start with 0x", addr)
	}
	if digits == "" || len(digits) > 2*AddressLength || !validHex(digits) {
		return "", errorf("invalid address %q", addr)
	}
	digits = strings.TrimLeft(strings.ToLower(digits), "0")
	if digits == "" {
		return "0x0", nil
	}
	return "0x" + digits, nil
}

// NormalizeAddress renders an address in its long form: `0x` followed by 64
// lowercase hex digits.
func NormalizeAddress(addr string) (string, error) {
	short, err := CompressAddress(addr)
	if err != nil {
		return "", err
	}
	digits := short[2:]
	return "0x" + strings.Repeat("0", 2*AddressLength-len(digits)) + digits, nil
}
