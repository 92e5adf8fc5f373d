package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AddressLength is the byte width of an identity.
const AddressLength = common.AddressLength

// Address is the fixed-width identity of a client, freelancer, juror or
// module account.
type Address [AddressLength]byte

// ZeroAddress is the null identity. It is never a valid party.
var ZeroAddress Address

// ParseAddress decodes a 0x-prefixed (or bare) 40 character hex string. Casing
// is ignored, so checksummed and lower-case renderings decode to the same
// identity.
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Address{}, fmt.Errorf("address required")
	}
	if !common.IsHexAddress(trimmed) {
		return Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return Address(common.HexToAddress(trimmed)), nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(raw string) Address {
	addr, err := ParseAddress(raw)
	if err != nil {
		panic(err)
	}
	return addr
}

// BytesToAddress left-pads or truncates b into an Address.
func BytesToAddress(b []byte) Address {
	return Address(common.BytesToAddress(b))
}

// IsZero reports whether the address is the null identity.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// Hex renders the EIP-55 checksummed form.
func (a Address) Hex() string { return common.Address(a).Hex() }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// MarshalText encodes the address as checksummed hex for JSON payloads.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText accepts any casing of the hex form.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
