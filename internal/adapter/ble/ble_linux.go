//go:build linux

package ble

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"bluetray/internal/adapter"
	"bluetray/internal/device"
)

// Adapter drives bluetooth.DefaultAdapter. Devices become known when an
// advertisement is seen or a connection is reported.
type Adapter struct {
	mu        sync.Mutex
	ad        *bluetooth.Adapter
	opts      Options
	log       logrus.FieldLogger
	events    *broker
	scanning  bool
	names     map[device.Address]string
	connected map[device.Address]bluetooth.Device
}

// Open enables the default adapter.
func Open(opts Options) (*Adapter, error) {
	a := newAdapter(bluetooth.DefaultAdapter, opts)
	if err := a.ad.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}
	a.ad.SetConnectHandler(a.onConnect)
	return a, nil
}

func newAdapter(ad *bluetooth.Adapter, opts Options) *Adapter {
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Adapter{
		ad:        ad,
		opts:      opts,
		log:       log.WithField("component", "ble"),
		events:    newBroker(),
		names:     make(map[device.Address]string),
		connected: make(map[device.Address]bluetooth.Device),
	}
}

func (a *Adapter) onConnect(d bluetooth.Device, connected bool) {
	addr, err := device.ParseAddress(d.Address.String())
	if err != nil {
		a.log.Debugf("connect handler: %v", err)
		return
	}

	a.mu.Lock()
	if connected {
		a.connected[addr] = d
		if _, ok := a.names[addr]; !ok {
			a.names[addr] = ""
		}
	} else {
		delete(a.connected, addr)
	}
	a.mu.Unlock()

	a.events.publish(adapter.Event{Kind: adapter.PropertyChanged, Address: addr, Property: "Connected", Value: connected})
}

func (a *Adapter) IsDiscovering(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanning, nil
}

func (a *Adapter) SetDiscoveryFilter(ctx context.Context, f adapter.Filter) error {
	if f.Transport == adapter.TransportBREDR {
		return fmt.Errorf("ble: %w: %s", adapter.ErrUnsupportedTransport, f.Transport)
	}
	return nil
}

func (a *Adapter) StartDiscovery(ctx context.Context) error {
	a.mu.Lock()
	if a.scanning {
		a.mu.Unlock()
		return nil
	}
	a.scanning = true
	a.mu.Unlock()

	// Scan blocks until StopScan.
	go func() {
		err := a.ad.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			a.onScanResult(result)
		})
		a.mu.Lock()
		a.scanning = false
		a.mu.Unlock()
		if err != nil {
			a.log.Warnf("scan ended: %v", err)
		}
		a.events.publish(adapter.Event{Kind: adapter.PropertyChanged, Property: "Discovering", Value: false})
	}()

	a.events.publish(adapter.Event{Kind: adapter.PropertyChanged, Property: "Discovering", Value: true})
	return nil
}

func (a *Adapter) onScanResult(result bluetooth.ScanResult) {
	a.sighted(result.Address.String(), result.LocalName(), result.RSSI)
}

// sighted records one advertisement. The first sighting of an address is a
// DeviceAdded, later ones report RSSI.
func (a *Adapter) sighted(raw, name string, rssi int16) {
	addr, err := device.ParseAddress(raw)
	if err != nil {
		return
	}

	a.mu.Lock()
	prev, known := a.names[addr]
	if !known || (name != "" && name != prev) {
		a.names[addr] = name
	}
	a.mu.Unlock()

	if !known {
		a.log.Debugf("discovered %s name=%q rssi=%d", addr, name, rssi)
		a.events.publish(adapter.Event{Kind: adapter.DeviceAdded, Address: addr})
		return
	}
	a.events.publish(adapter.Event{Kind: adapter.PropertyChanged, Address: addr, Property: "RSSI", Value: rssi})
}

func (a *Adapter) StopDiscovery(ctx context.Context) error {
	a.mu.Lock()
	scanning := a.scanning
	a.mu.Unlock()
	if !scanning {
		return nil
	}
	if err := a.ad.StopScan(); err != nil {
		return fmt.Errorf("ble: stop scan: %w", err)
	}
	return nil
}

func (a *Adapter) DeviceAddresses(ctx context.Context) ([]device.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]device.Address, 0, len(a.names))
	for addr := range a.names {
		out = append(out, addr)
	}
	return out, nil
}

func (a *Adapter) Device(ctx context.Context, addr device.Address) (adapter.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.names[addr]; !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrDeviceNotFound, addr)
	}
	return &leDevice{a: a, addr: addr}, nil
}

func (a *Adapter) Events(ctx context.Context) (<-chan adapter.Event, error) {
	return a.events.subscribe(ctx), nil
}

func (a *Adapter) Close() error {
	a.events.close()
	a.mu.Lock()
	scanning := a.scanning
	a.mu.Unlock()
	if scanning {
		return a.ad.StopScan()
	}
	return nil
}

type leDevice struct {
	a    *Adapter
	addr device.Address
}

func (d *leDevice) Address() device.Address { return d.addr }

func (d *leDevice) Name(ctx context.Context) (string, bool, error) {
	d.a.mu.Lock()
	defer d.a.mu.Unlock()
	name := d.a.names[d.addr]
	return name, name != "", nil
}

func (d *leDevice) IsConnected(ctx context.Context) (bool, error) {
	d.a.mu.Lock()
	defer d.a.mu.Unlock()
	_, ok := d.a.connected[d.addr]
	return ok, nil
}

func leAddress(addr device.Address) (bluetooth.Address, error) {
	mac, err := bluetooth.ParseMAC(addr.String())
	if err != nil {
		return bluetooth.Address{}, err
	}
	return bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, nil
}

func (d *leDevice) Connect(ctx context.Context) error {
	target, err := leAddress(d.addr)
	if err != nil {
		return fmt.Errorf("ble: %s: %w", d.addr, err)
	}

	if d.a.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.a.opts.ConnectTimeout)
		defer cancel()
	}

	done := make(chan connectResult, 1)
	go func() {
		dev, err := d.a.ad.Connect(target, bluetooth.ConnectionParams{})
		done <- connectResult{dev, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("ble: connect %s: %w", d.addr, r.err)
		}
		d.a.mu.Lock()
		d.a.connected[d.addr] = r.dev
		d.a.mu.Unlock()
		return nil
	case <-ctx.Done():
		go d.dropLate(done)
		return fmt.Errorf("ble: connect %s: %w", d.addr, ctx.Err())
	}
}

type connectResult struct {
	dev bluetooth.Device
	err error
}

// dropLate waits out a connect attempt the caller gave up on and tears down
// the link if it succeeded anyway.
func (d *leDevice) dropLate(done <-chan connectResult) {
	r := <-done
	if r.err != nil {
		return
	}
	d.a.log.WithField("addr", d.addr.String()).Debug("connect finished after timeout, disconnecting")
	if err := disconnectDevice(r.dev); err != nil {
		d.a.log.WithError(err).WithField("addr", d.addr.String()).Warn("disconnect late connection")
	}
}

func (d *leDevice) Disconnect(ctx context.Context) error {
	d.a.mu.Lock()
	dev, ok := d.a.connected[d.addr]
	delete(d.a.connected, d.addr)
	d.a.mu.Unlock()

	if !ok {
		return nil
	}
	if err := disconnectDevice(dev); err != nil {
		return fmt.Errorf("ble: disconnect %s: %w", d.addr, err)
	}
	return nil
}

// disconnectDevice is replaced in tests, which have no real link to drop.
var disconnectDevice = func(dev bluetooth.Device) error { return dev.Disconnect() }
