//go:build linux

package ble

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"

	"bluetray/internal/adapter"
	"bluetray/internal/device"
)

func recvEvent(t *testing.T, ch <-chan adapter.Event) adapter.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return adapter.Event{}
	}
}

func TestAdapter_SightingsWithoutHardware(t *testing.T) {
	a := newAdapter(nil, Options{})
	defer a.events.close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := a.Events(ctx)
	require.NoError(t, err)

	addr := device.MustParseAddress("48:73:CB:41:50:F5")
	a.sighted("48:73:cb:41:50:f5", "", -70)
	a.sighted("48:73:CB:41:50:F5", "Earbuds", -60)
	a.sighted("not-a-mac", "x", -10)

	ev := recvEvent(t, events)
	assert.Equal(t, adapter.DeviceAdded, ev.Kind)
	assert.Equal(t, addr, ev.Address)

	ev = recvEvent(t, events)
	assert.Equal(t, adapter.PropertyChanged, ev.Kind)
	assert.Equal(t, "RSSI", ev.Property)
	assert.Equal(t, int16(-60), ev.Value)

	addrs, err := a.DeviceAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []device.Address{addr}, addrs)

	d, err := a.Device(ctx, addr)
	require.NoError(t, err)
	name, ok, err := d.Name(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Earbuds", name)
	connected, err := d.IsConnected(ctx)
	require.NoError(t, err)
	assert.False(t, connected)

	_, err = a.Device(ctx, device.MustParseAddress("AA:BB:CC:DD:EE:FF"))
	assert.ErrorIs(t, err, adapter.ErrDeviceNotFound)
}

func TestAdapter_RejectsBREDR(t *testing.T) {
	a := newAdapter(nil, Options{})
	assert.ErrorIs(t, a.SetDiscoveryFilter(context.Background(), adapter.Filter{Transport: adapter.TransportBREDR}), adapter.ErrUnsupportedTransport)
	assert.NoError(t, a.SetDiscoveryFilter(context.Background(), adapter.Filter{Transport: adapter.TransportLE}))
}

func TestLEAddress(t *testing.T) {
	addr := device.MustParseAddress("48:73:CB:41:50:F5")
	got, err := leAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, addr.String(), got.String())
}

func withDisconnect(t *testing.T, fn func(bluetooth.Device) error) {
	t.Helper()
	old := disconnectDevice
	disconnectDevice = fn
	t.Cleanup(func() { disconnectDevice = old })
}

func TestLEDevice_DropLateConnect(t *testing.T) {
	var calls atomic.Int32
	withDisconnect(t, func(bluetooth.Device) error {
		calls.Add(1)
		return nil
	})

	a := newAdapter(nil, Options{})
	d := &leDevice{a: a, addr: device.MustParseAddress("48:73:CB:41:50:F5")}

	failed := make(chan connectResult, 1)
	failed <- connectResult{err: errors.New("timeout")}
	d.dropLate(failed)
	assert.Zero(t, calls.Load())

	late := make(chan connectResult, 1)
	late <- connectResult{}
	d.dropLate(late)
	assert.Equal(t, int32(1), calls.Load())

	connected, err := d.IsConnected(context.Background())
	require.NoError(t, err)
	assert.False(t, connected, "a late link is never recorded as connected")
}

func TestLEDevice_DisconnectForgetsLink(t *testing.T) {
	var calls atomic.Int32
	withDisconnect(t, func(bluetooth.Device) error {
		calls.Add(1)
		return nil
	})

	a := newAdapter(nil, Options{})
	addr := device.MustParseAddress("48:73:CB:41:50:F5")
	a.connected[addr] = bluetooth.Device{}
	d := &leDevice{a: a, addr: addr}

	require.NoError(t, d.Disconnect(context.Background()))
	require.NoError(t, d.Disconnect(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}
