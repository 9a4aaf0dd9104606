package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/chaz8081/blelink/internal/ble"
)

type fakeSource struct {
	status ble.Status
}

func (f *fakeSource) Status() ble.Status { return f.status }

func TestCollectorImplementsInterface(t *testing.T) {
	var _ prometheus.Collector = (*Collector)(nil)
}

func TestCollectIdle(t *testing.T) {
	c := NewCollector(&fakeSource{status: ble.Status{
		Adapter: ble.AdapterPoweredOff,
		State:   ble.StateIdle,
	}})

	// 6 adapter states + 6 connection states + scanning + devices + 7 counters.
	if got := testutil.CollectAndCount(c); got != 21 {
		t.Errorf("CollectAndCount() = %d, want 21", got)
	}
	if got := testutil.CollectAndCount(c, "blelink_signal_rssi_dbm"); got != 0 {
		t.Errorf("rssi series = %d, want 0 without a sample", got)
	}

	expected := `
# HELP blelink_adapter_state Adapter power state (1 for the current state)
# TYPE blelink_adapter_state gauge
blelink_adapter_state{state="powered off"} 1
blelink_adapter_state{state="powered on"} 0
blelink_adapter_state{state="resetting"} 0
blelink_adapter_state{state="unauthorized"} 0
blelink_adapter_state{state="unknown"} 0
blelink_adapter_state{state="unsupported"} 0
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "blelink_adapter_state"); err != nil {
		t.Errorf("adapter state mismatch: %v", err)
	}
}

func TestCollectConnected(t *testing.T) {
	src := &fakeSource{status: ble.Status{
		Adapter:        ble.AdapterPoweredOn,
		State:          ble.StateReady,
		Devices:        3,
		PeripheralID:   "id-a",
		PeripheralName: "A",
		HasSignal:      true,
		RSSI:           -65,
		Quality:        ble.SignalVeryGood,
		Counters: ble.Counters{
			Discoveries: 12,
			Connects:    1,
			SignalReads: 4,
			ValueReads:  2,
		},
	}}
	c := NewCollector(src)

	if got := testutil.CollectAndCount(c); got != 23 {
		t.Errorf("CollectAndCount() = %d, want 23", got)
	}

	expected := `
# HELP blelink_devices Number of peripherals in the discovery registry
# TYPE blelink_devices gauge
blelink_devices 3
# HELP blelink_signal_quality Signal quality bucket (0=Unusable .. 4=Amazing)
# TYPE blelink_signal_quality gauge
blelink_signal_quality{peripheral_id="id-a",peripheral_name="A"} 3
# HELP blelink_signal_rssi_dbm Last RSSI read from the connected peripheral in dBm
# TYPE blelink_signal_rssi_dbm gauge
blelink_signal_rssi_dbm{peripheral_id="id-a",peripheral_name="A"} -65
# HELP blelink_connects_total Successful connections
# TYPE blelink_connects_total counter
blelink_connects_total 1
# HELP blelink_discoveries_total Advertisements delivered by the platform
# TYPE blelink_discoveries_total counter
blelink_discoveries_total 12
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"blelink_devices",
		"blelink_signal_quality",
		"blelink_signal_rssi_dbm",
		"blelink_connects_total",
		"blelink_discoveries_total",
	)
	if err != nil {
		t.Errorf("metrics mismatch: %v", err)
	}

	ready := `
# HELP blelink_connection_state Connection slot state (1 for the current state)
# TYPE blelink_connection_state gauge
blelink_connection_state{state="connecting"} 0
blelink_connection_state{state="disconnected"} 0
blelink_connection_state{state="discovering services"} 0
blelink_connection_state{state="idle"} 0
blelink_connection_state{state="ready"} 1
blelink_connection_state{state="scanning"} 0
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(ready), "blelink_connection_state"); err != nil {
		t.Errorf("connection state mismatch: %v", err)
	}
}

func TestCollectReadsFreshStatus(t *testing.T) {
	src := &fakeSource{}
	c := NewCollector(src)

	src.status.Scanning = true
	expected := `
# HELP blelink_scanning Whether discovery is running
# TYPE blelink_scanning gauge
blelink_scanning 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "blelink_scanning"); err != nil {
		t.Errorf("scanning mismatch: %v", err)
	}
}

func TestCollectorRegisters(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector(&fakeSource{})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := reg.Gather(); err != nil {
		t.Errorf("Gather() error = %v", err)
	}
}
