//go:build linux || darwin

package ble

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fako1024/gatt"
)

// GattPlatform drives fako1024/gatt: raw HCI sockets on Linux, XPC on macOS.
// gatt's peripheral calls block, so each request runs on its own goroutine
// and reports back through Events.
type GattPlatform struct {
	device gatt.Device

	// mu protects the fields below.
	mu     sync.Mutex
	events Events
	state  AdapterState
	known  map[string]*gattPeripheral // latest wrapper per peripheral ID
}

var _ Platform = (*GattPlatform)(nil)

// NewGattPlatform opens the default HCI device with central-role options.
func NewGattPlatform() (Platform, error) {
	device, err := gatt.NewDevice(defaultGattOptions...)
	if err != nil {
		return nil, fmt.Errorf("ble: open gatt device: %w", err)
	}
	return NewGattPlatformWithDevice(device), nil
}

// NewGattPlatformWithDevice wraps an already opened gatt device.
func NewGattPlatformWithDevice(device gatt.Device) *GattPlatform {
	return &GattPlatform{
		device: device,
		known:  make(map[string]*gattPeripheral),
	}
}

// gattPeripheral keeps the ID and name fixed. The native handle is replaced
// on reconnect and is guarded by GattPlatform.mu.
type gattPeripheral struct {
	id   string
	name string
	p    gatt.Peripheral
}

func (p *gattPeripheral) ID() string   { return p.id }
func (p *gattPeripheral) Name() string { return p.name }

type gattService struct {
	svc *gatt.Service
}

func (s *gattService) UUID() string { return s.svc.UUID().String() }

type gattCharacteristic struct {
	char *gatt.Characteristic
}

func (c *gattCharacteristic) UUID() string         { return c.char.UUID().String() }
func (c *gattCharacteristic) Properties() Property { return Property(c.char.Properties()) }

func (g *GattPlatform) Start(events Events) error {
	g.mu.Lock()
	g.events = events
	g.mu.Unlock()

	g.device.Handle(
		gatt.AddPeripheralDiscovered(g.onPeriphDiscovered),
		gatt.AddPeripheralConnected(g.onPeriphConnected),
		gatt.AddPeripheralDisconnected(g.onPeriphDisconnected),
	)
	if err := g.device.Init(g.onStateChanged); err != nil {
		return fmt.Errorf("ble: init gatt device: %w", err)
	}
	return nil
}

func (g *GattPlatform) State() AdapterState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *GattPlatform) sink() Events {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.events
}

func gattAdapterState(s gatt.State) AdapterState {
	switch s {
	case gatt.StateResetting:
		return AdapterResetting
	case gatt.StateUnsupported:
		return AdapterUnsupported
	case gatt.StateUnauthorized:
		return AdapterUnauthorized
	case gatt.StatePoweredOff:
		return AdapterPoweredOff
	case gatt.StatePoweredOn:
		return AdapterPoweredOn
	default:
		return AdapterUnknown
	}
}

func (g *GattPlatform) onStateChanged(d gatt.Device, s gatt.State) {
	state := gattAdapterState(s)
	g.mu.Lock()
	g.state = state
	events := g.events
	g.mu.Unlock()
	events.AdapterStateChanged(state)
}

// wrap returns the wrapper for p, keeping the name learned at discovery.
func (g *GattPlatform) wrap(p gatt.Peripheral) *gattPeripheral {
	g.mu.Lock()
	defer g.mu.Unlock()
	if w, ok := g.known[p.ID()]; ok {
		w.p = p
		return w
	}
	w := &gattPeripheral{id: p.ID(), name: p.Name(), p: p}
	g.known[w.id] = w
	return w
}

func (g *GattPlatform) onPeriphDiscovered(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
	adv := Advertisement{}
	if a != nil {
		adv.LocalName = a.LocalName
		adv.ManufacturerData = a.ManufacturerData
		adv.TxPowerLevel = a.TxPowerLevel
		adv.Connectable = a.Connectable
		for _, u := range a.Services {
			adv.Services = append(adv.Services, u.String())
		}
	}

	name := p.Name()
	if name == "" {
		name = adv.LocalName
	}
	// A fresh handle per discovery; the registry keeps the latest one.
	w := &gattPeripheral{id: p.ID(), name: name, p: p}
	g.mu.Lock()
	g.known[w.id] = w
	g.mu.Unlock()

	g.sink().PeripheralDiscovered(w, adv, rssi)
}

func (g *GattPlatform) onPeriphConnected(p gatt.Peripheral, err error) {
	w := g.wrap(p)
	if err != nil {
		g.sink().PeripheralConnectFailed(w, err)
		return
	}
	g.sink().PeripheralConnected(w)
}

func (g *GattPlatform) onPeriphDisconnected(p gatt.Peripheral, err error) {
	g.sink().PeripheralDisconnected(g.wrap(p), err)
}

func parseGattUUIDs(ss []string) ([]gatt.UUID, error) {
	out := make([]gatt.UUID, 0, len(ss))
	for _, s := range ss {
		u, err := gatt.ParseUUID(s)
		if err != nil {
			return nil, fmt.Errorf("ble: parse UUID %q: %w", s, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func (g *GattPlatform) Scan(services []string) error {
	uuids, err := parseGattUUIDs(services)
	if err != nil {
		return err
	}
	return g.device.Scan(uuids, false)
}

func (g *GattPlatform) StopScan() error {
	return g.device.StopScanning()
}

func gattPeripheralOf(p Peripheral) (*gattPeripheral, error) {
	gp, ok := p.(*gattPeripheral)
	if !ok {
		return nil, fmt.Errorf("ble: %T is not a gatt peripheral", p)
	}
	return gp, nil
}

// native returns the current gatt handle behind gp.
func (g *GattPlatform) native(gp *gattPeripheral) gatt.Peripheral {
	g.mu.Lock()
	defer g.mu.Unlock()
	return gp.p
}

func (g *GattPlatform) Connect(p Peripheral) error {
	gp, err := gattPeripheralOf(p)
	if err != nil {
		return err
	}
	native := g.native(gp)
	events := g.sink()
	go func() {
		if err := g.device.Connect(native); err != nil {
			events.PeripheralConnectFailed(gp, err)
		}
	}()
	return nil
}

func (g *GattPlatform) Disconnect(p Peripheral) error {
	gp, err := gattPeripheralOf(p)
	if err != nil {
		return err
	}
	go g.device.CancelConnection(g.native(gp))
	return nil
}

func (g *GattPlatform) DiscoverServices(p Peripheral, filter []string) error {
	gp, err := gattPeripheralOf(p)
	if err != nil {
		return err
	}
	uuids, err := parseGattUUIDs(filter)
	if err != nil {
		return err
	}
	native := g.native(gp)
	events := g.sink()

	go func() {
		ss, err := native.DiscoverServices(uuids)
		if err != nil {
			events.ServicesDiscovered(gp, nil, err)
			return
		}
		services := make([]Service, 0, len(ss))
		for _, s := range ss {
			services = append(services, &gattService{svc: s})
		}
		events.ServicesDiscovered(gp, services, nil)
	}()
	return nil
}

func (g *GattPlatform) DiscoverCharacteristics(p Peripheral, s Service, filter []string) error {
	gp, err := gattPeripheralOf(p)
	if err != nil {
		return err
	}
	gs, ok := s.(*gattService)
	if !ok {
		return fmt.Errorf("ble: %T is not a gatt service", s)
	}
	uuids, err := parseGattUUIDs(filter)
	if err != nil {
		return err
	}
	native := g.native(gp)
	events := g.sink()

	go func() {
		cs, err := native.DiscoverCharacteristics(uuids, gs.svc)
		if err != nil {
			events.CharacteristicsDiscovered(gp, s, nil, err)
			return
		}
		chars := make([]Characteristic, 0, len(cs))
		for _, c := range cs {
			chars = append(chars, &gattCharacteristic{char: c})
		}
		events.CharacteristicsDiscovered(gp, s, chars, nil)
	}()
	return nil
}

func (g *GattPlatform) ReadCharacteristic(p Peripheral, c Characteristic) error {
	gp, err := gattPeripheralOf(p)
	if err != nil {
		return err
	}
	gc, ok := c.(*gattCharacteristic)
	if !ok {
		return fmt.Errorf("ble: %T is not a gatt characteristic", c)
	}
	native := g.native(gp)
	events := g.sink()

	go func() {
		value, err := native.ReadCharacteristic(gc.char)
		events.CharacteristicValueUpdated(gp, c, value, err)
	}()
	return nil
}

func (g *GattPlatform) ReadSignalStrength(p Peripheral) error {
	gp, err := gattPeripheralOf(p)
	if err != nil {
		return err
	}
	native := g.native(gp)
	events := g.sink()
	go func() {
		rssi, err := gattReadRSSI(native)
		events.SignalStrengthRead(gp, rssi, err)
	}()
	return nil
}

func (g *GattPlatform) Close() error {
	if err := g.device.StopScanning(); err != nil {
		slog.Debug("[BLE] gatt stop scan on close", "error", err)
	}
	return nil
}
