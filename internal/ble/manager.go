package ble

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Options configures a Manager.
type Options struct {
	PollInterval time.Duration // delay between signal strength reads (default 5s)
	DedupKey     DedupKey      // registry identity (default DedupByName)
	ResumeScan   bool          // restart scanning after a disconnect or failed connect
	Logger       *slog.Logger  // defaults to slog.Default()
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		PollInterval: DefaultPollInterval,
		DedupKey:     DedupByName,
	}
}

// Counters are monotonically increasing event counts.
type Counters struct {
	Discoveries     uint64
	Connects        uint64
	ConnectFailures uint64
	Disconnects     uint64
	SignalReads     uint64
	ValueReads      uint64
	Failures        uint64
}

// Status is a point-in-time snapshot of the manager.
type Status struct {
	Adapter  AdapterState
	State    ConnectionState
	Scanning bool
	Devices  int

	// Populated while a peripheral is active.
	PeripheralID   string
	PeripheralName string
	Session        string

	// Populated once a signal sample has been read on the active connection.
	HasSignal bool
	RSSI      int
	Quality   SignalQuality

	Counters Counters
}

// Manager owns every piece of central-role state: the adapter state, the
// discovery registry and the single active-connection slot. It implements
// Events so a Platform can feed it callbacks from any goroutine.
type Manager struct {
	platform Platform
	opts     Options
	log      *slog.Logger
	after    func(time.Duration, func()) stopper

	mu           sync.Mutex
	observer     Observer
	adapterState AdapterState
	scanning     bool
	registry     *Registry
	active       *activeConnection
	rest         ConnectionState
	detached     map[string]Peripheral
	stats        Counters
}

var _ Events = (*Manager)(nil)

// NewManager creates a Manager driving the given platform. Call Start to
// begin receiving events.
func NewManager(platform Platform, opts Options) (*Manager, error) {
	if platform == nil {
		return nil, fmt.Errorf("ble: nil platform")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		platform: platform,
		opts:     opts,
		log:      opts.Logger,
		after:    afterFunc,
		registry: NewRegistry(opts.DedupKey),
		rest:     StateIdle,
		detached: make(map[string]Peripheral),
	}, nil
}

// SetObserver registers o for notifications. A nil observer removes the
// current one.
func (m *Manager) SetObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = o
}

// Start hands the manager to the platform as its event sink. Scanning starts
// as soon as the platform reports the adapter powered on.
func (m *Manager) Start() error {
	if err := m.platform.Start(m); err != nil {
		return fmt.Errorf("ble: start platform: %w", err)
	}
	m.log.Info("[BLE] manager started", "adapter", m.platform.State().String(),
		"dedup", m.opts.DedupKey.String(), "poll_interval", m.opts.PollInterval)
	return nil
}

// Close stops scanning, cancels polling, asks the platform to drop the
// active peripheral and releases the platform.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.stopScanLocked()
	if conn := m.active; conn != nil {
		conn.cancelPoll()
		if err := m.platform.Disconnect(conn.peripheral); err != nil {
			m.log.Warn("[BLE] disconnect on close failed", "peripheral", describe(conn.peripheral), "error", err)
		}
	}
	m.mu.Unlock()

	if err := m.platform.Close(); err != nil {
		return fmt.Errorf("ble: close platform: %w", err)
	}
	return nil
}

// locked runs fn with the lock held and dispatches the notifications it
// collected once the lock is released.
func (m *Manager) locked(fn func(n *notifications)) {
	var n notifications
	m.mu.Lock()
	fn(&n)
	obs := m.observer
	m.mu.Unlock()
	n.dispatch(obs)
}

// failLocked logs err and queues DidFail.
func (m *Manager) failLocked(n *notifications, err error) {
	m.stats.Failures++
	m.log.Warn("[BLE] operation failed", "error", err)
	n.add(func(o Observer) { o.DidFail(err) })
}

// recordLocked stores p in the registry and, if it was recorded, queues a
// fresh device list.
func (m *Manager) recordLocked(n *notifications, p Peripheral) {
	if !m.registry.Record(p) {
		return
	}
	devices := m.registry.Devices()
	n.add(func(o Observer) { o.DidUpdateDeviceList(devices) })
}

// Devices returns a snapshot of the discovered peripherals.
func (m *Manager) Devices() []Peripheral {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Devices()
}

// Lookup returns the latest handle recorded under key (a name, or an ID
// when deduplicating by ID).
func (m *Manager) Lookup(key string) (Peripheral, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Lookup(key)
}

// ResetDevices clears the discovery registry.
func (m *Manager) ResetDevices() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry.Reset()
}

// Active returns the peripheral occupying the connection slot, if any.
func (m *Manager) Active() (Peripheral, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, false
	}
	return m.active.peripheral, true
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() ConnectionState {
	if m.active != nil {
		return m.active.phase
	}
	if m.scanning {
		return StateScanning
	}
	return m.rest
}

// Status returns a snapshot for reporting.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Adapter:  m.adapterState,
		State:    m.stateLocked(),
		Scanning: m.scanning,
		Devices:  m.registry.Len(),
		Counters: m.stats,
	}
	if conn := m.active; conn != nil {
		st.PeripheralID = conn.peripheral.ID()
		st.PeripheralName = conn.peripheral.Name()
		st.Session = conn.session
		st.HasSignal = conn.hasSignal
		st.RSSI = conn.rssi
		st.Quality = conn.quality
	}
	return st
}
