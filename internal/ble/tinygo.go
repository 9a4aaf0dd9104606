package ble

import (
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// tinygoReadBufferSize bounds a single characteristic read.
const tinygoReadBufferSize = 512

// TinygoPlatform drives tinygo-org/bluetooth: CoreBluetooth on macOS, BlueZ
// on Linux and WinRT on Windows. On macOS peripheral IDs are CoreBluetooth
// UUIDs rather than MAC addresses.
//
// tinygo cannot read RSSI on an established link, so ReadSignalStrength
// reports ErrUnsupported and signal polling stops after the first attempt.
type TinygoPlatform struct {
	adapter *bluetooth.Adapter

	// mu protects the fields below.
	mu          sync.Mutex
	events      Events
	state       AdapterState
	connections map[string]*tinygoConnection // keyed by peripheral ID
}

// NewTinygoPlatform creates a platform backed by the default adapter.
func NewTinygoPlatform() *TinygoPlatform {
	return &TinygoPlatform{
		adapter:     bluetooth.DefaultAdapter,
		connections: make(map[string]*tinygoConnection),
	}
}

var _ Platform = (*TinygoPlatform)(nil)

type tinygoPeripheral struct {
	addr bluetooth.Address
	name string
}

func (p *tinygoPeripheral) ID() string   { return p.addr.String() }
func (p *tinygoPeripheral) Name() string { return p.name }

type tinygoService struct {
	svc bluetooth.DeviceService
}

func (s *tinygoService) UUID() string { return s.svc.UUID().String() }

type tinygoCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (c *tinygoCharacteristic) UUID() string { return c.char.UUID().String() }

// Properties reports every characteristic as readable: tinygo does not expose
// the declared properties on all operating systems, so reads are attempted and
// failures surface as read errors.
func (c *tinygoCharacteristic) Properties() Property { return PropertyRead }

type tinygoConnection struct {
	peripheral *tinygoPeripheral
	device     *bluetooth.Device
}

func (t *TinygoPlatform) Start(events Events) error {
	t.mu.Lock()
	t.events = events
	t.mu.Unlock()

	if err := t.adapter.Enable(); err != nil {
		t.setState(AdapterUnsupported)
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	// tinygo fires this with connected=false when a peripheral drops,
	// whether we asked for it or not.
	t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		id := device.Address.String()
		t.mu.Lock()
		conn, ok := t.connections[id]
		delete(t.connections, id)
		t.mu.Unlock()
		if ok {
			events.PeripheralDisconnected(conn.peripheral, nil)
		}
	})

	t.setState(AdapterPoweredOn)
	return nil
}

func (t *TinygoPlatform) setState(s AdapterState) {
	t.mu.Lock()
	t.state = s
	events := t.events
	t.mu.Unlock()
	if events != nil {
		events.AdapterStateChanged(s)
	}
}

func (t *TinygoPlatform) State() AdapterState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *TinygoPlatform) sink() Events {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

func parseTinygoUUIDs(ss []string) ([]bluetooth.UUID, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	out := make([]bluetooth.UUID, 0, len(ss))
	for _, s := range ss {
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			return nil, fmt.Errorf("ble: parse UUID %q: %w", s, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func (t *TinygoPlatform) Scan(services []string) error {
	filter, err := parseTinygoUUIDs(services)
	if err != nil {
		return err
	}
	events := t.sink()

	// adapter.Scan blocks until StopScan.
	go func() {
		err := t.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if len(filter) > 0 && !hasAnyService(result, filter) {
				return
			}
			p := &tinygoPeripheral{addr: result.Address, name: result.LocalName()}
			events.PeripheralDiscovered(p, Advertisement{LocalName: result.LocalName(), Connectable: true}, int(result.RSSI))
		})
		if err != nil {
			slog.Warn("[BLE] tinygo scan ended", "error", err)
		}
	}()
	return nil
}

func hasAnyService(result bluetooth.ScanResult, filter []bluetooth.UUID) bool {
	for _, u := range filter {
		if result.HasServiceUUID(u) {
			return true
		}
	}
	return false
}

func (t *TinygoPlatform) StopScan() error {
	return t.adapter.StopScan()
}

func (t *TinygoPlatform) peripheral(p Peripheral) (*tinygoPeripheral, error) {
	tp, ok := p.(*tinygoPeripheral)
	if !ok {
		return nil, fmt.Errorf("ble: %T is not a tinygo peripheral", p)
	}
	return tp, nil
}

func (t *TinygoPlatform) connection(p Peripheral) (*tinygoConnection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	conn, ok := t.connections[p.ID()]
	if !ok {
		return nil, fmt.Errorf("ble: %s: %w", describe(p), ErrNotConnected)
	}
	return conn, nil
}

func (t *TinygoPlatform) Connect(p Peripheral) error {
	tp, err := t.peripheral(p)
	if err != nil {
		return err
	}
	events := t.sink()

	// tinygo's Connect blocks with its own internal timeout.
	go func() {
		device, err := t.adapter.Connect(tp.addr, bluetooth.ConnectionParams{})
		if err != nil {
			events.PeripheralConnectFailed(tp, err)
			return
		}
		t.mu.Lock()
		t.connections[tp.ID()] = &tinygoConnection{peripheral: tp, device: &device}
		t.mu.Unlock()
		events.PeripheralConnected(tp)
	}()
	return nil
}

func (t *TinygoPlatform) Disconnect(p Peripheral) error {
	conn, err := t.connection(p)
	if err != nil {
		return err
	}
	go func() {
		if err := conn.device.Disconnect(); err != nil {
			slog.Warn("[BLE] tinygo disconnect failed", "peripheral", describe(p), "error", err)
		}
	}()
	return nil
}

func (t *TinygoPlatform) DiscoverServices(p Peripheral, filter []string) error {
	conn, err := t.connection(p)
	if err != nil {
		return err
	}
	uuids, err := parseTinygoUUIDs(filter)
	if err != nil {
		return err
	}
	events := t.sink()

	go func() {
		svcs, err := conn.device.DiscoverServices(uuids)
		if err != nil {
			events.ServicesDiscovered(conn.peripheral, nil, err)
			return
		}
		services := make([]Service, 0, len(svcs))
		for _, s := range svcs {
			services = append(services, &tinygoService{svc: s})
		}
		events.ServicesDiscovered(conn.peripheral, services, nil)
	}()
	return nil
}

func (t *TinygoPlatform) DiscoverCharacteristics(p Peripheral, s Service, filter []string) error {
	conn, err := t.connection(p)
	if err != nil {
		return err
	}
	ts, ok := s.(*tinygoService)
	if !ok {
		return fmt.Errorf("ble: %T is not a tinygo service", s)
	}
	uuids, err := parseTinygoUUIDs(filter)
	if err != nil {
		return err
	}
	events := t.sink()

	go func() {
		chars, err := ts.svc.DiscoverCharacteristics(uuids)
		if err != nil {
			events.CharacteristicsDiscovered(conn.peripheral, s, nil, err)
			return
		}
		out := make([]Characteristic, 0, len(chars))
		for _, c := range chars {
			out = append(out, &tinygoCharacteristic{char: c})
		}
		events.CharacteristicsDiscovered(conn.peripheral, s, out, nil)
	}()
	return nil
}

func (t *TinygoPlatform) ReadCharacteristic(p Peripheral, c Characteristic) error {
	conn, err := t.connection(p)
	if err != nil {
		return err
	}
	tc, ok := c.(*tinygoCharacteristic)
	if !ok {
		return fmt.Errorf("ble: %T is not a tinygo characteristic", c)
	}
	events := t.sink()

	go func() {
		buf := make([]byte, tinygoReadBufferSize)
		n, err := tc.char.Read(buf)
		if err != nil {
			events.CharacteristicValueUpdated(conn.peripheral, c, nil, err)
			return
		}
		events.CharacteristicValueUpdated(conn.peripheral, c, buf[:n], nil)
	}()
	return nil
}

func (t *TinygoPlatform) ReadSignalStrength(p Peripheral) error {
	conn, err := t.connection(p)
	if err != nil {
		return err
	}
	events := t.sink()
	go events.SignalStrengthRead(conn.peripheral, 0, ErrUnsupported)
	return nil
}

func (t *TinygoPlatform) Close() error {
	if err := t.adapter.StopScan(); err != nil {
		slog.Debug("[BLE] tinygo stop scan on close", "error", err)
	}

	t.mu.Lock()
	conns := make([]*tinygoConnection, 0, len(t.connections))
	for _, c := range t.connections {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	for _, c := range conns {
		if err := c.device.Disconnect(); err != nil {
			slog.Warn("[BLE] tinygo disconnect on close failed", "peripheral", describe(c.peripheral), "error", err)
		}
	}
	return nil
}
