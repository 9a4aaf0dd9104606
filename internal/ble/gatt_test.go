//go:build linux || darwin

package ble

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fako1024/gatt"
)

// fakeGattPeripheral overrides the handful of gatt.Peripheral methods the
// platform calls outside of a live link.
type fakeGattPeripheral struct {
	gatt.Peripheral
	id   string
	name string
	rssi int
}

func (p *fakeGattPeripheral) ID() string    { return p.id }
func (p *fakeGattPeripheral) Name() string  { return p.name }
func (p *fakeGattPeripheral) ReadRSSI() int { return p.rssi }

// fakeGattDevice records connect requests and fails them with connectErr.
type fakeGattDevice struct {
	gatt.Device

	mu         sync.Mutex
	scans      int
	connects   []gatt.Peripheral
	connectErr error
}

func (d *fakeGattDevice) Scan([]gatt.UUID, bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scans++
	return nil
}

func (d *fakeGattDevice) StopScanning() error { return nil }

func (d *fakeGattDevice) Connect(p gatt.Peripheral) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connects = append(d.connects, p)
	return d.connectErr
}

// gattEvent is one callback delivered by GattPlatform.
type gattEvent struct {
	kind  string
	p     Peripheral
	adv   Advertisement
	rssi  int
	err   error
	state AdapterState
}

// gattEventLog implements Events on a buffered channel so asynchronous
// requests can be awaited.
type gattEventLog struct {
	ch chan gattEvent
}

func newGattEventLog() *gattEventLog {
	return &gattEventLog{ch: make(chan gattEvent, 16)}
}

func (l *gattEventLog) next(t *testing.T) gattEvent {
	t.Helper()
	select {
	case ev := <-l.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for platform event")
		return gattEvent{}
	}
}

func (l *gattEventLog) AdapterStateChanged(state AdapterState) {
	l.ch <- gattEvent{kind: "state", state: state}
}

func (l *gattEventLog) PeripheralDiscovered(p Peripheral, adv Advertisement, rssi int) {
	l.ch <- gattEvent{kind: "discovered", p: p, adv: adv, rssi: rssi}
}

func (l *gattEventLog) PeripheralConnected(p Peripheral) {
	l.ch <- gattEvent{kind: "connected", p: p}
}

func (l *gattEventLog) PeripheralConnectFailed(p Peripheral, err error) {
	l.ch <- gattEvent{kind: "connectFailed", p: p, err: err}
}

func (l *gattEventLog) PeripheralDisconnected(p Peripheral, err error) {
	l.ch <- gattEvent{kind: "disconnected", p: p, err: err}
}

func (l *gattEventLog) ServicesDiscovered(p Peripheral, _ []Service, err error) {
	l.ch <- gattEvent{kind: "services", p: p, err: err}
}

func (l *gattEventLog) CharacteristicsDiscovered(p Peripheral, _ Service, _ []Characteristic, err error) {
	l.ch <- gattEvent{kind: "characteristics", p: p, err: err}
}

func (l *gattEventLog) CharacteristicValueUpdated(p Peripheral, _ Characteristic, _ []byte, err error) {
	l.ch <- gattEvent{kind: "value", p: p, err: err}
}

func (l *gattEventLog) SignalStrengthRead(p Peripheral, rssi int, err error) {
	l.ch <- gattEvent{kind: "rssi", p: p, rssi: rssi, err: err}
}

// newTestGattPlatform wires a platform to a fake device without calling
// Start, which would initialize the real stack.
func newTestGattPlatform() (*GattPlatform, *fakeGattDevice, *gattEventLog) {
	device := &fakeGattDevice{}
	g := NewGattPlatformWithDevice(device)
	log := newGattEventLog()
	g.events = log
	return g, device, log
}

func TestGattAdapterState(t *testing.T) {
	tests := []struct {
		in   gatt.State
		want AdapterState
	}{
		{gatt.StateResetting, AdapterResetting},
		{gatt.StateUnsupported, AdapterUnsupported},
		{gatt.StateUnauthorized, AdapterUnauthorized},
		{gatt.StatePoweredOff, AdapterPoweredOff},
		{gatt.StatePoweredOn, AdapterPoweredOn},
		{gatt.StateUnknown, AdapterUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := gattAdapterState(tt.in); got != tt.want {
				t.Errorf("gattAdapterState(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestGattStateChangeIsForwarded(t *testing.T) {
	g, _, log := newTestGattPlatform()

	g.onStateChanged(nil, gatt.StatePoweredOn)

	if got := g.State(); got != AdapterPoweredOn {
		t.Errorf("State() = %v, want powered on", got)
	}
	if ev := log.next(t); ev.kind != "state" || ev.state != AdapterPoweredOn {
		t.Errorf("event = %+v, want powered on state", ev)
	}
}

func TestGattDiscoveryNameFallsBackToLocalName(t *testing.T) {
	g, _, log := newTestGattPlatform()
	native := &fakeGattPeripheral{id: "aa:bb"}

	g.onPeriphDiscovered(native, &gatt.Advertisement{LocalName: "Strap", Connectable: true}, -48)

	ev := log.next(t)
	if ev.kind != "discovered" {
		t.Fatalf("event kind = %q, want discovered", ev.kind)
	}
	if ev.p.ID() != "aa:bb" || ev.p.Name() != "Strap" {
		t.Errorf("peripheral = %s, want Strap/aa:bb", describe(ev.p))
	}
	if ev.rssi != -48 || !ev.adv.Connectable || ev.adv.LocalName != "Strap" {
		t.Errorf("advertisement = %+v rssi %d, want connectable Strap at -48", ev.adv, ev.rssi)
	}
}

func TestGattDiscoveryPrefersPeripheralName(t *testing.T) {
	g, _, log := newTestGattPlatform()

	g.onPeriphDiscovered(&fakeGattPeripheral{id: "aa", name: "Band"}, &gatt.Advertisement{LocalName: "Other"}, -60)
	g.onPeriphDiscovered(&fakeGattPeripheral{id: "bb", name: "Tag"}, nil, -70)

	if ev := log.next(t); ev.p.Name() != "Band" {
		t.Errorf("Name() = %q, want Band", ev.p.Name())
	}
	if ev := log.next(t); ev.p.Name() != "Tag" || ev.adv.LocalName != "" {
		t.Errorf("event = %+v, want Tag with empty advertisement", ev)
	}
}

func TestGattConnectedReusesDiscoveredWrapper(t *testing.T) {
	g, _, log := newTestGattPlatform()
	g.onPeriphDiscovered(&fakeGattPeripheral{id: "aa"}, &gatt.Advertisement{LocalName: "Strap"}, -50)
	discovered := log.next(t).p

	// The stack hands back a new handle without the advertised name.
	reconnected := &fakeGattPeripheral{id: "aa"}
	g.onPeriphConnected(reconnected, nil)

	ev := log.next(t)
	if ev.kind != "connected" {
		t.Fatalf("event kind = %q, want connected", ev.kind)
	}
	if ev.p != discovered {
		t.Error("connected peripheral should be the discovered wrapper")
	}
	if ev.p.Name() != "Strap" {
		t.Errorf("Name() = %q, want Strap", ev.p.Name())
	}
	if got := g.native(ev.p.(*gattPeripheral)); got != reconnected {
		t.Error("native handle should be the one from the connect callback")
	}
}

func TestGattConnectCallbackError(t *testing.T) {
	g, _, log := newTestGattPlatform()

	g.onPeriphConnected(&fakeGattPeripheral{id: "aa", name: "Strap"}, errMock)

	ev := log.next(t)
	if ev.kind != "connectFailed" || !errors.Is(ev.err, errMock) {
		t.Errorf("event = %+v, want connectFailed with mock failure", ev)
	}
	if ev.p.Name() != "Strap" {
		t.Errorf("Name() = %q, want Strap", ev.p.Name())
	}
}

func TestGattDisconnectIsForwarded(t *testing.T) {
	g, _, log := newTestGattPlatform()
	g.onPeriphDiscovered(&fakeGattPeripheral{id: "aa", name: "Strap"}, nil, -50)
	discovered := log.next(t).p

	g.onPeriphDisconnected(&fakeGattPeripheral{id: "aa"}, errMock)

	ev := log.next(t)
	if ev.kind != "disconnected" || ev.p != discovered || !errors.Is(ev.err, errMock) {
		t.Errorf("event = %+v, want disconnected for discovered wrapper", ev)
	}
}

func TestGattConnectRequestFailure(t *testing.T) {
	g, device, log := newTestGattPlatform()
	device.connectErr = errMock
	native := &fakeGattPeripheral{id: "aa", name: "Strap"}
	g.onPeriphDiscovered(native, nil, -50)
	p := log.next(t).p

	if err := g.Connect(p); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	ev := log.next(t)
	if ev.kind != "connectFailed" || ev.p != p || !errors.Is(ev.err, errMock) {
		t.Errorf("event = %+v, want connectFailed with mock failure", ev)
	}
	device.mu.Lock()
	defer device.mu.Unlock()
	if len(device.connects) != 1 || device.connects[0] != native {
		t.Errorf("device connects = %v, want the discovered handle", device.connects)
	}
}

func TestGattRejectsForeignHandles(t *testing.T) {
	g, _, _ := newTestGattPlatform()
	p := newPeripheral("aa", "Strap")

	if err := g.Connect(p); err == nil {
		t.Error("Connect() with a non-gatt peripheral should fail")
	}
	if err := g.ReadSignalStrength(p); err == nil {
		t.Error("ReadSignalStrength() with a non-gatt peripheral should fail")
	}
}

func TestGattScanRejectsBadUUID(t *testing.T) {
	g, device, _ := newTestGattPlatform()

	if err := g.Scan([]string{"not-a-uuid"}); err == nil {
		t.Error("Scan() with a malformed UUID should fail")
	}
	if err := g.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error = %v", err)
	}
	device.mu.Lock()
	defer device.mu.Unlock()
	if device.scans != 1 {
		t.Errorf("device scans = %d, want 1", device.scans)
	}
}

// discoveredGattPeripheral runs a discovery through g and returns the wrapper.
func discoveredGattPeripheral(t *testing.T, g *GattPlatform, log *gattEventLog, native *fakeGattPeripheral) Peripheral {
	t.Helper()
	g.onPeriphDiscovered(native, nil, -50)
	return log.next(t).p
}
