package device

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress is returned when a string is not a colon-separated MAC address.
var ErrInvalidAddress = errors.New("invalid bluetooth address")

// Address is a 6-byte Bluetooth hardware address in transmission order
// (Address[0] is the first octet of "AA:BB:CC:DD:EE:FF").
type Address [6]byte

// ParseAddress parses an address in XX:XX:XX:XX:XX:XX form. Hex digits may be
// upper or lower case; every octet must be exactly two digits.
func ParseAddress(s string) (Address, error) {
	var addr Address
	parts := strings.Split(s, ":")
	if len(parts) != len(addr) {
		return Address{}, fmt.Errorf("%w: %q: want 6 octets, got %d", ErrInvalidAddress, s, len(parts))
	}

	for i, part := range parts {
		if len(part) != 2 {
			return Address{}, fmt.Errorf("%w: %q: octet %d is %q", ErrInvalidAddress, s, i+1, part)
		}
		hi, ok1 := unhex(part[0])
		lo, ok2 := unhex(part[1])
		if !ok1 || !ok2 {
			return Address{}, fmt.Errorf("%w: %q: octet %d is %q", ErrInvalidAddress, s, i+1, part)
		}
		addr[i] = hi<<4 | lo
	}
	return addr, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// String returns the canonical upper-case colon form.
func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// IsZero reports whether a is 00:00:00:00:00:00.
func (a Address) IsZero() bool {
	return a == Address{}
}

// PathSegment returns the BlueZ object path element for the address
// (dev_XX_XX_XX_XX_XX_XX).
func (a Address) PathSegment() string {
	return "dev_" + strings.ReplaceAll(a.String(), ":", "_")
}

// AddressFromPath extracts the address from a BlueZ device object path such
// as /org/bluez/hci0/dev_48_73_CB_41_50_F5. Paths below the device node
// (services, characteristics) are rejected.
func AddressFromPath(path string) (Address, error) {
	idx := strings.LastIndex(path, "/dev_")
	if idx < 0 {
		return Address{}, fmt.Errorf("%w: no device node in path %q", ErrInvalidAddress, path)
	}
	seg := path[idx+len("/dev_"):]
	if strings.Contains(seg, "/") {
		return Address{}, fmt.Errorf("%w: %q is not a device path", ErrInvalidAddress, path)
	}
	return ParseAddress(strings.ReplaceAll(seg, "_", ":"))
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
