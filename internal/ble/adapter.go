// Package ble implements the central-role control logic for a single BLE
// peripheral: adapter readiness, discovery bookkeeping, the connect and
// service-discovery lifecycle, and periodic signal-strength polling. Radio I/O
// is delegated to a Platform backend.
package ble

import "fmt"

// AdapterState is the coarse power state reported by the platform radio.
type AdapterState int

const (
	AdapterUnknown AdapterState = iota
	AdapterResetting
	AdapterUnsupported
	AdapterUnauthorized
	AdapterPoweredOff
	AdapterPoweredOn
)

func (s AdapterState) String() string {
	switch s {
	case AdapterUnknown:
		return "unknown"
	case AdapterResetting:
		return "resetting"
	case AdapterUnsupported:
		return "unsupported"
	case AdapterUnauthorized:
		return "unauthorized"
	case AdapterPoweredOff:
		return "powered off"
	case AdapterPoweredOn:
		return "powered on"
	default:
		return fmt.Sprintf("AdapterState(%d)", int(s))
	}
}

// Property is a GATT characteristic property bitmask, using the bit values of
// the characteristic declaration.
type Property uint8

const (
	PropertyBroadcast            Property = 0x01
	PropertyRead                 Property = 0x02
	PropertyWriteWithoutResponse Property = 0x04
	PropertyWrite                Property = 0x08
	PropertyNotify               Property = 0x10
	PropertyIndicate             Property = 0x20
)

// Readable reports whether the characteristic value can be read.
func (p Property) Readable() bool { return p&PropertyRead != 0 }

// Peripheral is a handle to a remote device. Name returns "" when the device
// has not advertised one.
type Peripheral interface {
	ID() string
	Name() string
}

// Service is a GATT service discovered on a connected peripheral.
type Service interface {
	UUID() string
}

// Characteristic is a GATT characteristic discovered within a Service.
type Characteristic interface {
	UUID() string
	Properties() Property
}

// Advertisement carries the parts of an advertising packet the backends expose.
type Advertisement struct {
	LocalName        string
	ManufacturerData []byte
	Services         []string
	TxPowerLevel     int
	Connectable      bool
}

// Platform abstracts the BLE stack. Every request is fire-and-forget: it must
// not block and must not deliver events synchronously from inside the call.
// Completion is reported later through the Events passed to Start.
type Platform interface {
	// Start initializes the stack and begins delivering events.
	Start(events Events) error
	// State returns the last known adapter state.
	State() AdapterState
	// Scan begins continuous discovery. A nil filter scans for everything.
	Scan(services []string) error
	StopScan() error
	Connect(p Peripheral) error
	Disconnect(p Peripheral) error
	DiscoverServices(p Peripheral, filter []string) error
	DiscoverCharacteristics(p Peripheral, s Service, filter []string) error
	ReadCharacteristic(p Peripheral, c Characteristic) error
	ReadSignalStrength(p Peripheral) error
	// Close releases the stack.
	Close() error
}

// Events receives platform callbacks. *Manager implements it.
type Events interface {
	AdapterStateChanged(state AdapterState)
	PeripheralDiscovered(p Peripheral, adv Advertisement, rssi int)
	PeripheralConnected(p Peripheral)
	PeripheralConnectFailed(p Peripheral, err error)
	PeripheralDisconnected(p Peripheral, err error)
	ServicesDiscovered(p Peripheral, services []Service, err error)
	CharacteristicsDiscovered(p Peripheral, s Service, chars []Characteristic, err error)
	CharacteristicValueUpdated(p Peripheral, c Characteristic, value []byte, err error)
	SignalStrengthRead(p Peripheral, rssi int, err error)
}

// describe formats a peripheral for logs and error messages.
func describe(p Peripheral) string {
	if p == nil {
		return "<nil>"
	}
	if name := p.Name(); name != "" {
		return fmt.Sprintf("%s/%s", name, p.ID())
	}
	return p.ID()
}

// samePeripheral compares handles by platform identity.
func samePeripheral(a, b Peripheral) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID() == b.ID()
}

// AdapterStateChanged implements Events. Power-on starts scanning; any other
// state means the radio is unusable, so scanning and any active connection
// are dropped locally.
func (m *Manager) AdapterStateChanged(state AdapterState) {
	m.locked(func(n *notifications) {
		prev := m.adapterState
		m.adapterState = state
		m.log.Info("[BLE] adapter state", "state", state.String(), "previous", prev.String())
		n.add(func(o Observer) { o.DidUpdateAdapterState(state) })

		if state == AdapterPoweredOn {
			if err := m.startScanLocked(); err != nil {
				m.failLocked(n, err)
			}
			return
		}

		m.scanning = false
		if conn := m.active; conn != nil {
			m.dropLocked(n, conn, ErrAdapterUnavailable)
		}
		// Confirmations for released links are lost with the radio.
		clear(m.detached)
	})
}
