package ble

import (
	"errors"
	"testing"
)

func TestGattReadSignalStrengthUnsupported(t *testing.T) {
	g, _, log := newTestGattPlatform()
	p := discoveredGattPeripheral(t, g, log, &fakeGattPeripheral{id: "aa", name: "Strap", rssi: -1})

	if err := g.ReadSignalStrength(p); err != nil {
		t.Fatalf("ReadSignalStrength() error = %v", err)
	}
	ev := log.next(t)
	if ev.kind != "rssi" || !errors.Is(ev.err, ErrUnsupported) {
		t.Fatalf("event = %+v, want rssi with ErrUnsupported", ev)
	}

	// The manager must report the failure rather than classify a sample.
	m, _, obs, sched := connectedManager(t, p)
	m.SignalStrengthRead(ev.p, ev.rssi, ev.err)

	if len(obs.qualities) != 0 {
		t.Errorf("qualities = %v, want none", obs.qualities)
	}
	if len(obs.failures) != 1 || !errors.Is(obs.failures[0], ErrSignalReadFailed) || !errors.Is(obs.failures[0], ErrUnsupported) {
		t.Errorf("failures = %v, want ErrSignalReadFailed wrapping ErrUnsupported", obs.failures)
	}
	if got := len(sched.pending()); got != 0 {
		t.Errorf("pending follow-ups = %d, want 0", got)
	}
}
