package device

import "encoding/json"

// UnknownName is displayed when the adapter cannot supply a device name.
const UnknownName = "unknown"

// Field is a best-effort value read from the adapter. Known is false when
// the lookup failed or the adapter had no value, in which case Value is the
// zero value and Or supplies the display default.
type Field[T any] struct {
	Value T
	Known bool
}

// Known wraps a value the adapter reported.
func Known[T any](v T) Field[T] {
	return Field[T]{Value: v, Known: true}
}

// Unknown returns an unset field.
func Unknown[T any]() Field[T] {
	return Field[T]{}
}

// Or returns the value if known, otherwise def.
func (f Field[T]) Or(def T) T {
	if f.Known {
		return f.Value
	}
	return def
}

// Record is the cached view of one remote device.
type Record struct {
	Address   Address
	Name      Field[string]
	Connected Field[bool]
}

// DisplayName returns the name, or UnknownName if the adapter did not give one.
func (r Record) DisplayName() string {
	return r.Name.Or(UnknownName)
}

// IsConnected returns the connection status, false when unknown.
func (r Record) IsConnected() bool {
	return r.Connected.Or(false)
}

type recordJSON struct {
	MACAddr     Address `json:"mac_addr"`
	Name        string  `json:"name"`
	IsConnected bool    `json:"is_connected"`
}

// MarshalJSON emits the display form consumed by the frontend.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		MACAddr:     r.Address,
		Name:        r.DisplayName(),
		IsConnected: r.IsConnected(),
	})
}

// UnmarshalJSON reads the display form. Both fields are treated as known.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record{
		Address:   raw.MACAddr,
		Name:      Known(raw.Name),
		Connected: Known(raw.IsConnected),
	}
	return nil
}
