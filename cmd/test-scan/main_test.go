package main

import (
	"strings"
	"testing"

	"github.com/chaz8081/blelink/internal/ble"
)

// idlePlatform accepts every request and never reports back.
type idlePlatform struct{}

func (idlePlatform) Start(ble.Events) error          { return nil }
func (idlePlatform) State() ble.AdapterState         { return ble.AdapterPoweredOn }
func (idlePlatform) Scan([]string) error             { return nil }
func (idlePlatform) StopScan() error                 { return nil }
func (idlePlatform) Connect(ble.Peripheral) error    { return nil }
func (idlePlatform) Disconnect(ble.Peripheral) error { return nil }
func (idlePlatform) Close() error                    { return nil }

func (idlePlatform) DiscoverServices(ble.Peripheral, []string) error { return nil }

func (idlePlatform) DiscoverCharacteristics(ble.Peripheral, ble.Service, []string) error {
	return nil
}

func (idlePlatform) ReadCharacteristic(ble.Peripheral, ble.Characteristic) error { return nil }
func (idlePlatform) ReadSignalStrength(ble.Peripheral) error                     { return nil }

type peripheral struct{ id, name string }

func (p peripheral) ID() string   { return p.id }
func (p peripheral) Name() string { return p.name }

func TestLookupReport(t *testing.T) {
	manager, err := ble.NewManager(idlePlatform{}, ble.DefaultOptions())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	manager.PeripheralDiscovered(peripheral{id: "aa:bb", name: "Strap"}, ble.Advertisement{}, -50)

	if got := lookupReport(manager, "Strap"); !strings.Contains(got, "found Strap (aa:bb)") {
		t.Errorf("lookupReport(Strap) = %q, want a match", got)
	}
	if got := lookupReport(manager, "Band"); !strings.Contains(got, "not found") {
		t.Errorf("lookupReport(Band) = %q, want not found", got)
	}
}
