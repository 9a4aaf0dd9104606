package ble

import "github.com/fako1024/gatt"

// A single HCI connection slot is all the manager ever uses.
var defaultGattOptions = []gatt.Option{
	gatt.LnxMaxConnections(1),
	gatt.LnxDeviceID(-1, true),
}

// gattReadRSSI reports ErrUnsupported: the HCI backend of gatt has no RSSI
// read and its ReadRSSI always returns -1.
func gattReadRSSI(gatt.Peripheral) (int, error) {
	return 0, ErrUnsupported
}
