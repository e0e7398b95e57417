// Package adaptertest provides a scripted in-memory adapter for tests.
package adaptertest

import (
	"context"
	"fmt"
	"sync"

	"bluetray/internal/adapter"
	"bluetray/internal/device"
)

// Adapter is an in-memory adapter.Adapter. Tests register devices, inject
// failures through the exported error fields and drive the event stream
// with Emit and EndStream.
type Adapter struct {
	mu sync.Mutex

	devices     map[device.Address]*Device
	discovering bool
	stream      chan adapter.Event
	closed      bool

	DiscoveringErr error
	FilterErr      error
	StartErr       error
	StopErr        error
	AddressesErr   error
	EventsErr      error

	filters      []adapter.Filter
	startCalls   int
	stopCalls    int
	subscribes   int
	activeSubs   int
	maxSubs      int
	addressCalls int
}

// New creates an adapter with an open event stream.
func New() *Adapter {
	return &Adapter{
		devices: make(map[device.Address]*Device),
		stream:  make(chan adapter.Event),
	}
}

// AddDevice registers a device the adapter knows about.
func (a *Adapter) AddDevice(addr string, name string) *Device {
	d := &Device{addr: device.MustParseAddress(addr), name: name, hasName: name != ""}
	a.mu.Lock()
	a.devices[d.addr] = d
	a.mu.Unlock()
	return d
}

// ForgetDevice removes a device from the adapter's known set.
func (a *Adapter) ForgetDevice(addr string) {
	a.mu.Lock()
	delete(a.devices, device.MustParseAddress(addr))
	a.mu.Unlock()
}

// SetDiscovering presets the discovering state.
func (a *Adapter) SetDiscovering(v bool) {
	a.mu.Lock()
	a.discovering = v
	a.mu.Unlock()
}

// Emit delivers ev to the current subscriber, blocking until it is taken
// or ctx ends.
func (a *Adapter) Emit(ctx context.Context, ev adapter.Event) error {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()

	select {
	case stream <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EndStream closes the event stream; subscribers see exhaustion.
func (a *Adapter) EndStream() {
	a.mu.Lock()
	defer a.mu.Unlock()
	close(a.stream)
}

// ResetStream replaces an ended stream with a fresh one.
func (a *Adapter) ResetStream() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stream = make(chan adapter.Event)
}

func (a *Adapter) IsDiscovering(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.DiscoveringErr != nil {
		return false, a.DiscoveringErr
	}
	return a.discovering, nil
}

func (a *Adapter) SetDiscoveryFilter(ctx context.Context, f adapter.Filter) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filters = append(a.filters, f)
	return a.FilterErr
}

func (a *Adapter) StartDiscovery(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startCalls++
	if a.StartErr != nil {
		return a.StartErr
	}
	a.discovering = true
	return nil
}

func (a *Adapter) StopDiscovery(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopCalls++
	if a.StopErr != nil {
		return a.StopErr
	}
	a.discovering = false
	return nil
}

func (a *Adapter) DeviceAddresses(ctx context.Context) ([]device.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addressCalls++
	if a.AddressesErr != nil {
		return nil, a.AddressesErr
	}
	out := make([]device.Address, 0, len(a.devices))
	for addr := range a.devices {
		out = append(out, addr)
	}
	return out, nil
}

func (a *Adapter) Device(ctx context.Context, addr device.Address) (adapter.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.devices[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrDeviceNotFound, addr)
	}
	return d, nil
}

func (a *Adapter) Events(ctx context.Context) (<-chan adapter.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.EventsErr != nil {
		return nil, a.EventsErr
	}
	a.subscribes++
	a.activeSubs++
	if a.activeSubs > a.maxSubs {
		a.maxSubs = a.activeSubs
	}

	in := a.stream
	out := make(chan adapter.Event)
	go func() {
		defer func() {
			a.mu.Lock()
			a.activeSubs--
			a.mu.Unlock()
			close(out)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// Stats is a snapshot of call counters.
type Stats struct {
	StartCalls    int
	StopCalls     int
	AddressCalls  int
	Subscriptions int
	ActiveSubs    int
	MaxActiveSubs int
	Filters       []adapter.Filter
	Discovering   bool
	Closed        bool
}

// Stats returns the call counters.
func (a *Adapter) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		StartCalls:    a.startCalls,
		StopCalls:     a.stopCalls,
		AddressCalls:  a.addressCalls,
		Subscriptions: a.subscribes,
		ActiveSubs:    a.activeSubs,
		MaxActiveSubs: a.maxSubs,
		Filters:       append([]adapter.Filter(nil), a.filters...),
		Discovering:   a.discovering,
		Closed:        a.closed,
	}
}

// Device is a scripted remote device.
type Device struct {
	mu sync.Mutex

	addr      device.Address
	name      string
	hasName   bool
	connected bool

	NameErr       error
	ConnectedErr  error
	ConnectErr    error
	DisconnectErr error

	connects    int
	disconnects int
}

func (d *Device) Address() device.Address { return d.addr }

func (d *Device) Name(ctx context.Context) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NameErr != nil {
		return "", false, d.NameErr
	}
	return d.name, d.hasName, nil
}

func (d *Device) IsConnected(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ConnectedErr != nil {
		return false, d.ConnectedErr
	}
	return d.connected, nil
}

func (d *Device) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connects++
	if d.ConnectErr != nil {
		return d.ConnectErr
	}
	d.connected = true
	return nil
}

func (d *Device) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnects++
	if d.DisconnectErr != nil {
		return d.DisconnectErr
	}
	d.connected = false
	return nil
}

// SetConnected presets the connection state.
func (d *Device) SetConnected(v bool) {
	d.mu.Lock()
	d.connected = v
	d.mu.Unlock()
}

// Calls returns the connect and disconnect call counts.
func (d *Device) Calls() (connects, disconnects int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects, d.disconnects
}
