// Package bluez implements adapter.Adapter against bluetoothd over the
// system D-Bus (org.bluez Adapter1/Device1 and the ObjectManager signals).
package bluez

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"bluetray/internal/adapter"
	"bluetray/internal/device"
)

const (
	busName         = "org.bluez"
	adapterIface    = "org.bluez.Adapter1"
	deviceIface     = "org.bluez.Device1"
	objManagerIface = "org.freedesktop.DBus.ObjectManager"
	propsIface      = "org.freedesktop.DBus.Properties"

	errInvalidArgs   = "org.freedesktop.DBus.Error.InvalidArgs"
	errUnknownObject = "org.freedesktop.DBus.Error.UnknownObject"
	errUnknownMethod = "org.freedesktop.DBus.Error.UnknownMethod"
	errDoesNotExist  = "org.bluez.Error.DoesNotExist"
)

// Options configures the BlueZ backend.
type Options struct {
	// Adapter is the controller name under /org/bluez, e.g. "hci0".
	Adapter string

	// CallTimeout bounds each D-Bus call. Zero means no timeout.
	CallTimeout time.Duration

	Logger logrus.FieldLogger
}

// Adapter is the BlueZ backend for one controller.
type Adapter struct {
	conn *dbus.Conn
	path dbus.ObjectPath
	opts Options
	log  logrus.FieldLogger
}

// Open connects to the system bus and checks that the configured adapter exists.
func Open(ctx context.Context, opts Options) (*Adapter, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluez: connect system bus: %w", err)
	}

	a := New(conn, opts)
	if _, err := a.getProperty(ctx, a.path, adapterIface, "Address"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bluez: adapter %s: %w", a.path, err)
	}
	a.log.Infof("using adapter %s", a.path)
	return a, nil
}

// New wraps an existing bus connection. The adapter takes ownership of conn.
func New(conn *dbus.Conn, opts Options) *Adapter {
	if opts.Adapter == "" {
		opts.Adapter = "hci0"
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Adapter{
		conn: conn,
		path: dbus.ObjectPath("/org/bluez/" + opts.Adapter),
		opts: opts,
		log:  log.WithField("component", "bluez"),
	}
}

func (a *Adapter) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, a.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func (a *Adapter) call(ctx context.Context, path dbus.ObjectPath, method string, args ...interface{}) *dbus.Call {
	ctx, cancel := a.callContext(ctx)
	defer cancel()
	return a.conn.Object(busName, path).CallWithContext(ctx, method, 0, args...)
}

func (a *Adapter) getProperty(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	var v dbus.Variant
	if err := a.call(ctx, path, propsIface+".Get", iface, name).Store(&v); err != nil {
		return dbus.Variant{}, err
	}
	return v, nil
}

func (a *Adapter) IsDiscovering(ctx context.Context) (bool, error) {
	v, err := a.getProperty(ctx, a.path, adapterIface, "Discovering")
	if err != nil {
		return false, fmt.Errorf("bluez: get Discovering: %w", err)
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("bluez: Discovering has type %s", v.Signature())
	}
	return b, nil
}

func (a *Adapter) SetDiscoveryFilter(ctx context.Context, f adapter.Filter) error {
	transport := f.Transport
	if transport == "" {
		transport = adapter.TransportAuto
	}
	filter := map[string]dbus.Variant{
		"Transport": dbus.MakeVariant(string(transport)),
	}
	if err := a.call(ctx, a.path, adapterIface+".SetDiscoveryFilter", filter).Err; err != nil {
		return fmt.Errorf("bluez: SetDiscoveryFilter(%s): %w", transport, err)
	}
	return nil
}

func (a *Adapter) StartDiscovery(ctx context.Context) error {
	if err := a.call(ctx, a.path, adapterIface+".StartDiscovery").Err; err != nil {
		return fmt.Errorf("bluez: StartDiscovery: %w", err)
	}
	return nil
}

func (a *Adapter) StopDiscovery(ctx context.Context) error {
	if err := a.call(ctx, a.path, adapterIface+".StopDiscovery").Err; err != nil {
		return fmt.Errorf("bluez: StopDiscovery: %w", err)
	}
	return nil
}

func (a *Adapter) DeviceAddresses(ctx context.Context) ([]device.Address, error) {
	var objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := a.call(ctx, "/", objManagerIface+".GetManagedObjects").Store(&objs); err != nil {
		return nil, fmt.Errorf("bluez: GetManagedObjects: %w", err)
	}
	return a.addressesFromObjects(objs), nil
}

func (a *Adapter) addressesFromObjects(objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant) []device.Address {
	var out []device.Address
	for path, ifaces := range objs {
		if _, ok := ifaces[deviceIface]; !ok || !a.isDevicePath(path) {
			continue
		}
		addr, err := device.AddressFromPath(string(path))
		if err != nil {
			a.log.Debugf("skipping %s: %v", path, err)
			continue
		}
		out = append(out, addr)
	}
	return out
}

func (a *Adapter) isDevicePath(path dbus.ObjectPath) bool {
	rest, ok := strings.CutPrefix(string(path), string(a.path)+"/")
	return ok && strings.HasPrefix(rest, "dev_") && !strings.Contains(rest, "/")
}

func (a *Adapter) devicePath(addr device.Address) dbus.ObjectPath {
	return dbus.ObjectPath(string(a.path) + "/" + addr.PathSegment())
}

func (a *Adapter) Device(ctx context.Context, addr device.Address) (adapter.Device, error) {
	path := a.devicePath(addr)
	if _, err := a.getProperty(ctx, path, deviceIface, "Address"); err != nil {
		switch errorName(err) {
		case errUnknownObject, errUnknownMethod, errInvalidArgs, errDoesNotExist:
			return nil, fmt.Errorf("%w: %s", adapter.ErrDeviceNotFound, addr)
		}
		return nil, fmt.Errorf("bluez: resolve %s: %w", addr, err)
	}
	return &remoteDevice{a: a, addr: addr, path: path}, nil
}

// Events subscribes to InterfacesAdded/InterfacesRemoved for devices on
// this adapter and to PropertiesChanged on the adapter object.
func (a *Adapter) Events(ctx context.Context) (<-chan adapter.Event, error) {
	rules := [][]dbus.MatchOption{
		{dbus.WithMatchSender(busName), dbus.WithMatchInterface(objManagerIface), dbus.WithMatchMember("InterfacesAdded")},
		{dbus.WithMatchSender(busName), dbus.WithMatchInterface(objManagerIface), dbus.WithMatchMember("InterfacesRemoved")},
		{dbus.WithMatchSender(busName), dbus.WithMatchInterface(propsIface), dbus.WithMatchMember("PropertiesChanged"), dbus.WithMatchObjectPath(a.path)},
	}

	var added [][]dbus.MatchOption
	removeMatches := func() {
		for _, rule := range added {
			if err := a.conn.RemoveMatchSignal(rule...); err != nil {
				a.log.Debugf("RemoveMatchSignal: %v", err)
			}
		}
	}
	for _, rule := range rules {
		if err := a.conn.AddMatchSignal(rule...); err != nil {
			removeMatches()
			return nil, fmt.Errorf("bluez: AddMatchSignal: %w", err)
		}
		added = append(added, rule)
	}

	sigCh := make(chan *dbus.Signal, 32)
	a.conn.Signal(sigCh)

	out := make(chan adapter.Event)
	go func() {
		defer close(out)
		defer removeMatches()
		defer a.conn.RemoveSignal(sigCh)

		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-sigCh:
				if !ok {
					a.log.Info("signal channel closed")
					return
				}
				for _, ev := range a.translate(sig) {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// translate maps one D-Bus signal to zero or more adapter events.
func (a *Adapter) translate(sig *dbus.Signal) []adapter.Event {
	if sig == nil {
		return nil
	}
	switch sig.Name {
	case objManagerIface + ".InterfacesAdded":
		if len(sig.Body) < 2 {
			return nil
		}
		path, _ := sig.Body[0].(dbus.ObjectPath)
		ifaces, _ := sig.Body[1].(map[string]map[string]dbus.Variant)
		if _, ok := ifaces[deviceIface]; !ok || !a.isDevicePath(path) {
			return nil
		}
		addr, err := device.AddressFromPath(string(path))
		if err != nil {
			return nil
		}
		return []adapter.Event{{Kind: adapter.DeviceAdded, Address: addr}}

	case objManagerIface + ".InterfacesRemoved":
		if len(sig.Body) < 2 {
			return nil
		}
		path, _ := sig.Body[0].(dbus.ObjectPath)
		ifaces, _ := sig.Body[1].([]string)
		if !contains(ifaces, deviceIface) || !a.isDevicePath(path) {
			return nil
		}
		addr, err := device.AddressFromPath(string(path))
		if err != nil {
			return nil
		}
		return []adapter.Event{{Kind: adapter.DeviceRemoved, Address: addr}}

	case propsIface + ".PropertiesChanged":
		if sig.Path != a.path || len(sig.Body) < 2 {
			return nil
		}
		if iface, _ := sig.Body[0].(string); iface != adapterIface {
			return nil
		}
		changed, _ := sig.Body[1].(map[string]dbus.Variant)
		events := make([]adapter.Event, 0, len(changed))
		for name, v := range changed {
			events = append(events, adapter.Event{Kind: adapter.PropertyChanged, Property: name, Value: v.Value()})
		}
		return events
	}
	return nil
}

func (a *Adapter) Close() error {
	return a.conn.Close()
}

type remoteDevice struct {
	a    *Adapter
	addr device.Address
	path dbus.ObjectPath
}

func (d *remoteDevice) Address() device.Address { return d.addr }

func (d *remoteDevice) Name(ctx context.Context) (string, bool, error) {
	v, err := d.a.getProperty(ctx, d.path, deviceIface, "Name")
	if err != nil {
		// BlueZ omits Name for devices that never reported one.
		if errorName(err) == errInvalidArgs {
			return "", false, nil
		}
		return "", false, fmt.Errorf("bluez: %s Name: %w", d.addr, err)
	}
	name, ok := v.Value().(string)
	return name, ok, nil
}

func (d *remoteDevice) IsConnected(ctx context.Context) (bool, error) {
	v, err := d.a.getProperty(ctx, d.path, deviceIface, "Connected")
	if err != nil {
		return false, fmt.Errorf("bluez: %s Connected: %w", d.addr, err)
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("bluez: %s Connected has type %s", d.addr, v.Signature())
	}
	return b, nil
}

func (d *remoteDevice) Connect(ctx context.Context) error {
	if err := d.a.call(ctx, d.path, deviceIface+".Connect").Err; err != nil {
		return fmt.Errorf("bluez: %s Connect: %w", d.addr, err)
	}
	return nil
}

func (d *remoteDevice) Disconnect(ctx context.Context) error {
	if err := d.a.call(ctx, d.path, deviceIface+".Disconnect").Err; err != nil {
		return fmt.Errorf("bluez: %s Disconnect: %w", d.addr, err)
	}
	return nil
}

// errorName returns the D-Bus error name carried by err, if any.
func errorName(err error) string {
	var pe *dbus.Error
	if errors.As(err, &pe) && pe != nil {
		return pe.Name
	}
	var ve dbus.Error
	if errors.As(err, &ve) {
		return ve.Name
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
