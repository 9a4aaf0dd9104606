package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chaz8081/blelink/internal/ble"
)

// target identifies the peripheral to connect to automatically. ID wins
// over name when both are set.
type target struct {
	id   string
	name string
}

func (t target) matches(p ble.Peripheral) bool {
	if t.id != "" {
		return strings.EqualFold(p.ID(), t.id)
	}
	return t.name != "" && p.Name() == t.name
}

// consoleObserver prints manager notifications and connects to the target
// as soon as it shows up in the device list.
type consoleObserver struct {
	manager *ble.Manager
	target  target
}

var _ ble.Observer = (*consoleObserver)(nil)

func (o *consoleObserver) DidUpdateAdapterState(state ble.AdapterState) {
	fmt.Printf("Adapter: %s\n", state)
	if state != ble.AdapterPoweredOn {
		slog.Warn("Bluetooth is not available", "adapter", state.String())
	}
}

func (o *consoleObserver) DidUpdateDeviceList(devices []ble.Peripheral) {
	names := make([]string, len(devices))
	for i, p := range devices {
		names[i] = p.Name()
	}
	fmt.Printf("Devices (%d): %s\n", len(devices), strings.Join(names, ", "))

	for _, p := range devices {
		if o.target.matches(p) {
			o.connect(p)
			return
		}
	}
}

func (o *consoleObserver) connect(p ble.Peripheral) {
	if active, ok := o.manager.Active(); ok && o.target.matches(active) {
		return
	}
	if err := o.manager.ConnectTo(p); err != nil {
		slog.Error("Connect request failed", "peripheral", p.ID(), "error", err)
	}
}

func (o *consoleObserver) DidConnectToDevice(p ble.Peripheral) {
	fmt.Printf("Connected to %s (%s)\n", p.Name(), p.ID())
}

func (o *consoleObserver) DidFailToConnect(p ble.Peripheral, err error) {
	fmt.Printf("Failed to connect to %s: %v\n", p.Name(), err)
}

func (o *consoleObserver) DidDisconnectFromDevice(p ble.Peripheral, err error) {
	if err != nil {
		fmt.Printf("Disconnected from %s: %v\n", p.Name(), err)
		return
	}
	fmt.Printf("Disconnected from %s\n", p.Name())
}

func (o *consoleObserver) DidFinishDiscovery(p ble.Peripheral, chars []ble.Characteristic) {
	fmt.Printf("Discovery finished on %s: %d characteristics\n", p.Name(), len(chars))
}

func (o *consoleObserver) DidReadCharacteristic(p ble.Peripheral, c ble.Characteristic, value []byte) {
	fmt.Printf("  %s = %s\n", c.UUID(), hex.EncodeToString(value))
}

func (o *consoleObserver) DidUpdateSignalQuality(p ble.Peripheral, rssi int, q ble.SignalQuality) {
	fmt.Printf("Signal %s: %d dBm (%s)\n", p.Name(), rssi, q)
}

func (o *consoleObserver) DidFail(err error) {
	slog.Warn("BLE operation failed", "error", err)
}
