package device

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress_RoundTrip(t *testing.T) {
	for _, s := range []string{
		"48:73:CB:41:50:F5",
		"00:00:00:00:00:00",
		"FF:FF:FF:FF:FF:FF",
		"AA:BB:CC:DD:EE:FF",
		"01:23:45:67:89:AB",
	} {
		t.Run(s, func(t *testing.T) {
			addr, err := ParseAddress(s)
			require.NoError(t, err)
			assert.Equal(t, s, addr.String())
		})
	}
}

func TestParseAddress_LowerCase(t *testing.T) {
	addr, err := ParseAddress("aa:bb:cc:dd:ee:0f")
	require.NoError(t, err)
	assert.Equal(t, Address{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x0F}, addr)
	assert.Equal(t, "AA:BB:CC:DD:EE:0F", addr.String())
}

func TestParseAddress_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"five octets", "AA:BB:CC:DD:EE"},
		{"seven octets", "AA:BB:CC:DD:EE:FF:00"},
		{"non hex", "AA:BB:CC:DD:EE:GG"},
		{"single digit", "A:BB:CC:DD:EE:FF"},
		{"three digits", "AAA:BB:CC:DD:EE:FF"},
		{"dash separated", "AA-BB-CC-DD-EE-FF"},
		{"trailing colon", "AA:BB:CC:DD:EE:FF:"},
		{"sign", "+A:BB:CC:DD:EE:FF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			assert.ErrorIs(t, err, ErrInvalidAddress)
			assert.True(t, addr.IsZero())
		})
	}
}

func TestAddress_PathSegment(t *testing.T) {
	addr := MustParseAddress("48:73:CB:41:50:F5")
	assert.Equal(t, "dev_48_73_CB_41_50_F5", addr.PathSegment())

	back, err := AddressFromPath("/org/bluez/hci0/" + addr.PathSegment())
	require.NoError(t, err)
	assert.Equal(t, addr, back)
}

func TestAddressFromPath_Rejects(t *testing.T) {
	for _, p := range []string{
		"/org/bluez/hci0",
		"/org/bluez/hci0/dev_48_73_CB_41_50_F5/service000a",
		"/org/bluez/hci0/dev_48_73_CB",
	} {
		_, err := AddressFromPath(p)
		assert.ErrorIs(t, err, ErrInvalidAddress, p)
	}
}

func TestAddress_JSON(t *testing.T) {
	addr := MustParseAddress("01:02:03:04:05:06")
	data, err := json.Marshal(addr)
	require.NoError(t, err)
	assert.JSONEq(t, `"01:02:03:04:05:06"`, string(data))

	var back Address
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, addr, back)

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &back))
}
