package bluez

import (
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluetray/internal/adapter"
	"bluetray/internal/device"
)

func testAdapter() *Adapter {
	return New(nil, Options{Adapter: "hci0"})
}

func TestTranslate_InterfacesAdded(t *testing.T) {
	a := testAdapter()
	sig := &dbus.Signal{
		Name: objManagerIface + ".InterfacesAdded",
		Body: []interface{}{
			dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"),
			map[string]map[string]dbus.Variant{
				deviceIface: {"Name": dbus.MakeVariant("Speaker")},
			},
		},
	}

	events := a.translate(sig)
	require.Len(t, events, 1)
	assert.Equal(t, adapter.DeviceAdded, events[0].Kind)
	assert.Equal(t, device.MustParseAddress("AA:BB:CC:DD:EE:FF"), events[0].Address)
}

func TestTranslate_IgnoresOtherObjects(t *testing.T) {
	a := testAdapter()
	tests := map[string]*dbus.Signal{
		"other adapter": {
			Name: objManagerIface + ".InterfacesAdded",
			Body: []interface{}{
				dbus.ObjectPath("/org/bluez/hci1/dev_AA_BB_CC_DD_EE_FF"),
				map[string]map[string]dbus.Variant{deviceIface: {}},
			},
		},
		"gatt service": {
			Name: objManagerIface + ".InterfacesAdded",
			Body: []interface{}{
				dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/service0010"),
				map[string]map[string]dbus.Variant{"org.bluez.GattService1": {}},
			},
		},
		"no device interface": {
			Name: objManagerIface + ".InterfacesRemoved",
			Body: []interface{}{
				dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"),
				[]string{"org.bluez.MediaControl1"},
			},
		},
		"device property": {
			Name: propsIface + ".PropertiesChanged",
			Path: "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF",
			Body: []interface{}{deviceIface, map[string]dbus.Variant{"RSSI": dbus.MakeVariant(int16(-40))}, []string{}},
		},
		"short body": {
			Name: objManagerIface + ".InterfacesAdded",
			Body: []interface{}{dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")},
		},
	}
	for name, sig := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, a.translate(sig))
		})
	}
	assert.Empty(t, a.translate(nil))
}

func TestTranslate_InterfacesRemoved(t *testing.T) {
	a := testAdapter()
	sig := &dbus.Signal{
		Name: objManagerIface + ".InterfacesRemoved",
		Body: []interface{}{
			dbus.ObjectPath("/org/bluez/hci0/dev_11_22_33_44_55_66"),
			[]string{propsIface, deviceIface},
		},
	}

	events := a.translate(sig)
	require.Len(t, events, 1)
	assert.Equal(t, adapter.DeviceRemoved, events[0].Kind)
	assert.Equal(t, "11:22:33:44:55:66", events[0].Address.String())
}

func TestTranslate_AdapterPropertiesChanged(t *testing.T) {
	a := testAdapter()
	sig := &dbus.Signal{
		Name: propsIface + ".PropertiesChanged",
		Path: "/org/bluez/hci0",
		Body: []interface{}{
			adapterIface,
			map[string]dbus.Variant{"Discovering": dbus.MakeVariant(true)},
			[]string{},
		},
	}

	events := a.translate(sig)
	require.Len(t, events, 1)
	assert.Equal(t, adapter.PropertyChanged, events[0].Kind)
	assert.Equal(t, "Discovering", events[0].Property)
	assert.Equal(t, true, events[0].Value)
}

func TestAddressesFromObjects(t *testing.T) {
	a := testAdapter()
	objs := map[dbus.ObjectPath]map[string]map[string]dbus.Variant{
		"/org/bluez/hci0":                                   {adapterIface: {}},
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_01":             {deviceIface: {}},
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_02":             {deviceIface: {}},
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_02/service000a": {"org.bluez.GattService1": {}},
		"/org/bluez/hci1/dev_AA_BB_CC_DD_EE_03":             {deviceIface: {}},
	}

	got := a.addressesFromObjects(objs)
	assert.ElementsMatch(t, []device.Address{
		device.MustParseAddress("AA:BB:CC:DD:EE:01"),
		device.MustParseAddress("AA:BB:CC:DD:EE:02"),
	}, got)
}

func TestDevicePath(t *testing.T) {
	a := New(nil, Options{})
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci0/dev_01_02_03_0A_0B_0C"),
		a.devicePath(device.MustParseAddress("01:02:03:0a:0b:0c")))
}

func TestErrorName(t *testing.T) {
	assert.Equal(t, errUnknownObject, errorName(fmt.Errorf("wrapped: %w", dbus.Error{Name: errUnknownObject})))
	assert.Equal(t, errInvalidArgs, errorName(&dbus.Error{Name: errInvalidArgs}))
	assert.Equal(t, "", errorName(errors.New("plain")))
}
