// Package adapter defines the contract for the one local Bluetooth adapter
// and the Gateway that serializes access to it.
//
// Backends live in subpackages: bluez talks to bluetoothd over the system
// D-Bus, ble drives the LE radio through tinygo.org/x/bluetooth.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bluetray/internal/device"
)

var (
	// ErrDeviceNotFound is returned by Device when the adapter does not know the address.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrUnsupportedTransport is returned by SetDiscoveryFilter when the backend
	// cannot scan on the requested transport.
	ErrUnsupportedTransport = errors.New("unsupported discovery transport")
)

// Transport selects which radio a discovery session scans.
type Transport string

const (
	TransportAuto  Transport = "auto"
	TransportLE    Transport = "le"
	TransportBREDR Transport = "bredr"
)

// ParseTransport validates a configured transport name.
func ParseTransport(s string) (Transport, error) {
	switch t := Transport(strings.ToLower(strings.TrimSpace(s))); t {
	case TransportAuto, TransportLE, TransportBREDR:
		return t, nil
	case "":
		return TransportAuto, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedTransport, s)
}

// Filter is applied before discovery starts.
type Filter struct {
	Transport Transport
}

// EventKind enumerates adapter events.
type EventKind int

const (
	DeviceAdded EventKind = iota
	DeviceRemoved
	PropertyChanged
)

func (k EventKind) String() string {
	switch k {
	case DeviceAdded:
		return "device_added"
	case DeviceRemoved:
		return "device_removed"
	case PropertyChanged:
		return "property_changed"
	default:
		return "unknown"
	}
}

// Event is one item of the adapter's live event stream. Address is set for
// DeviceAdded and DeviceRemoved. Property and Value describe a
// PropertyChanged event and are informational only.
type Event struct {
	Kind     EventKind
	Address  device.Address
	Property string
	Value    any
}

func (e Event) String() string {
	if e.Kind == PropertyChanged {
		return fmt.Sprintf("%s(%s=%v)", e.Kind, e.Property, e.Value)
	}
	return fmt.Sprintf("%s(%s)", e.Kind, e.Address)
}

// Adapter is a backend for the local Bluetooth adapter. Implementations
// need not be safe for concurrent use; Gateway serializes calls.
type Adapter interface {
	IsDiscovering(ctx context.Context) (bool, error)
	SetDiscoveryFilter(ctx context.Context, f Filter) error
	StartDiscovery(ctx context.Context) error
	StopDiscovery(ctx context.Context) error

	// DeviceAddresses lists addresses the adapter currently knows about.
	DeviceAddresses(ctx context.Context) ([]device.Address, error)

	// Device resolves a handle for addr, or ErrDeviceNotFound.
	Device(ctx context.Context, addr device.Address) (Device, error)

	// Events subscribes to the adapter event stream. The returned channel
	// is closed when ctx ends or the backend has no more events.
	Events(ctx context.Context) (<-chan Event, error)

	Close() error
}

// Device is a handle to one remote device. Handle methods are safe for
// concurrent use and are called without the gateway lock.
type Device interface {
	Address() device.Address

	// Name returns the remote name. ok is false when the adapter has none.
	Name(ctx context.Context) (name string, ok bool, err error)
	IsConnected(ctx context.Context) (bool, error)
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Resolve builds a registry record from best-effort lookups on d. Failed
// lookups leave the field unknown.
func Resolve(ctx context.Context, d Device) device.Record {
	rec := device.Record{Address: d.Address()}
	if name, ok, err := d.Name(ctx); err == nil && ok {
		rec.Name = device.Known(name)
	}
	if connected, err := d.IsConnected(ctx); err == nil {
		rec.Connected = device.Known(connected)
	}
	return rec
}
