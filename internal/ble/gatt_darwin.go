package ble

import "github.com/fako1024/gatt"

var defaultGattOptions = []gatt.Option{
	gatt.MacDeviceRole(gatt.CentralManager),
}

func gattReadRSSI(p gatt.Peripheral) (int, error) {
	return p.ReadRSSI(), nil
}
