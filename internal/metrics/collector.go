// Package metrics exports BLE manager state as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chaz8081/blelink/internal/ble"
)

// StatusSource is anything that can report a ble.Status snapshot.
// *ble.Manager satisfies it.
type StatusSource interface {
	Status() ble.Status
}

// Collector implements prometheus.Collector over a StatusSource. Every scrape
// takes a fresh snapshot, so no state is cached between scrapes.
type Collector struct {
	source StatusSource

	// Adapter and connection state
	adapterStateDesc    *prometheus.Desc
	connectionStateDesc *prometheus.Desc
	scanningDesc        *prometheus.Desc
	devicesDesc         *prometheus.Desc

	// Signal metrics
	rssiDesc    *prometheus.Desc
	qualityDesc *prometheus.Desc

	// Counters
	discoveriesDesc     *prometheus.Desc
	connectsDesc        *prometheus.Desc
	connectFailuresDesc *prometheus.Desc
	disconnectsDesc     *prometheus.Desc
	signalReadsDesc     *prometheus.Desc
	valueReadsDesc      *prometheus.Desc
	failuresDesc        *prometheus.Desc
}

// NewCollector creates a Collector reading from source.
func NewCollector(source StatusSource) *Collector {
	peripheral := []string{"peripheral_id", "peripheral_name"}

	return &Collector{
		source: source,

		adapterStateDesc: prometheus.NewDesc(
			"blelink_adapter_state",
			"Adapter power state (1 for the current state)",
			[]string{"state"},
			nil,
		),
		connectionStateDesc: prometheus.NewDesc(
			"blelink_connection_state",
			"Connection slot state (1 for the current state)",
			[]string{"state"},
			nil,
		),
		scanningDesc: prometheus.NewDesc(
			"blelink_scanning",
			"Whether discovery is running",
			nil,
			nil,
		),
		devicesDesc: prometheus.NewDesc(
			"blelink_devices",
			"Number of peripherals in the discovery registry",
			nil,
			nil,
		),

		rssiDesc: prometheus.NewDesc(
			"blelink_signal_rssi_dbm",
			"Last RSSI read from the connected peripheral in dBm",
			peripheral,
			nil,
		),
		qualityDesc: prometheus.NewDesc(
			"blelink_signal_quality",
			"Signal quality bucket (0=Unusable .. 4=Amazing)",
			peripheral,
			nil,
		),

		discoveriesDesc: prometheus.NewDesc(
			"blelink_discoveries_total",
			"Advertisements delivered by the platform",
			nil,
			nil,
		),
		connectsDesc: prometheus.NewDesc(
			"blelink_connects_total",
			"Successful connections",
			nil,
			nil,
		),
		connectFailuresDesc: prometheus.NewDesc(
			"blelink_connect_failures_total",
			"Failed connection attempts",
			nil,
			nil,
		),
		disconnectsDesc: prometheus.NewDesc(
			"blelink_disconnects_total",
			"Confirmed disconnects",
			nil,
			nil,
		),
		signalReadsDesc: prometheus.NewDesc(
			"blelink_signal_reads_total",
			"Successful RSSI reads",
			nil,
			nil,
		),
		valueReadsDesc: prometheus.NewDesc(
			"blelink_value_reads_total",
			"Characteristic values delivered",
			nil,
			nil,
		),
		failuresDesc: prometheus.NewDesc(
			"blelink_failures_total",
			"Operations that failed without changing the connection state",
			nil,
			nil,
		),
	}
}

// adapterStates and connectionStates enumerate every label value so absent
// states export 0 rather than disappearing.
var (
	adapterStates = []ble.AdapterState{
		ble.AdapterUnknown,
		ble.AdapterResetting,
		ble.AdapterUnsupported,
		ble.AdapterUnauthorized,
		ble.AdapterPoweredOff,
		ble.AdapterPoweredOn,
	}
	connectionStates = []ble.ConnectionState{
		ble.StateIdle,
		ble.StateScanning,
		ble.StateConnecting,
		ble.StateDiscoveringServices,
		ble.StateReady,
		ble.StateDisconnected,
	}
)

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.adapterStateDesc
	ch <- c.connectionStateDesc
	ch <- c.scanningDesc
	ch <- c.devicesDesc
	ch <- c.rssiDesc
	ch <- c.qualityDesc
	ch <- c.discoveriesDesc
	ch <- c.connectsDesc
	ch <- c.connectFailuresDesc
	ch <- c.disconnectsDesc
	ch <- c.signalReadsDesc
	ch <- c.valueReadsDesc
	ch <- c.failuresDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.Status()

	for _, s := range adapterStates {
		ch <- prometheus.MustNewConstMetric(c.adapterStateDesc, prometheus.GaugeValue, boolValue(st.Adapter == s), s.String())
	}
	for _, s := range connectionStates {
		ch <- prometheus.MustNewConstMetric(c.connectionStateDesc, prometheus.GaugeValue, boolValue(st.State == s), s.String())
	}
	ch <- prometheus.MustNewConstMetric(c.scanningDesc, prometheus.GaugeValue, boolValue(st.Scanning))
	ch <- prometheus.MustNewConstMetric(c.devicesDesc, prometheus.GaugeValue, float64(st.Devices))

	// Signal metrics only exist once the active connection has a sample.
	if st.HasSignal {
		ch <- prometheus.MustNewConstMetric(c.rssiDesc, prometheus.GaugeValue, float64(st.RSSI), st.PeripheralID, st.PeripheralName)
		ch <- prometheus.MustNewConstMetric(c.qualityDesc, prometheus.GaugeValue, float64(st.Quality), st.PeripheralID, st.PeripheralName)
	}

	ch <- prometheus.MustNewConstMetric(c.discoveriesDesc, prometheus.CounterValue, float64(st.Counters.Discoveries))
	ch <- prometheus.MustNewConstMetric(c.connectsDesc, prometheus.CounterValue, float64(st.Counters.Connects))
	ch <- prometheus.MustNewConstMetric(c.connectFailuresDesc, prometheus.CounterValue, float64(st.Counters.ConnectFailures))
	ch <- prometheus.MustNewConstMetric(c.disconnectsDesc, prometheus.CounterValue, float64(st.Counters.Disconnects))
	ch <- prometheus.MustNewConstMetric(c.signalReadsDesc, prometheus.CounterValue, float64(st.Counters.SignalReads))
	ch <- prometheus.MustNewConstMetric(c.valueReadsDesc, prometheus.CounterValue, float64(st.Counters.ValueReads))
	ch <- prometheus.MustNewConstMetric(c.failuresDesc, prometheus.CounterValue, float64(st.Counters.Failures))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
