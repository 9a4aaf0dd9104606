package ble

import (
	"errors"
	"fmt"
)

// StartScan begins continuous, unfiltered discovery. While the adapter is
// not powered on it makes no platform call and returns ErrAdapterUnavailable;
// the next power-on event starts the scan instead.
func (m *Manager) StartScan() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startScanLocked()
}

func (m *Manager) startScanLocked() error {
	if m.adapterState != AdapterPoweredOn {
		m.log.Debug("[BLE] scan deferred until adapter powers on", "adapter", m.adapterState.String())
		return ErrAdapterUnavailable
	}
	if m.scanning {
		return nil
	}
	if err := m.platform.Scan(nil); err != nil {
		return fmt.Errorf("ble: start scan: %w", err)
	}
	m.scanning = true
	m.log.Info("[BLE] scanning")
	return nil
}

// StopScan ends discovery. It is a no-op when no scan is running.
func (m *Manager) StopScan() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopScanLocked()
}

func (m *Manager) stopScanLocked() {
	if !m.scanning {
		return
	}
	m.scanning = false
	if err := m.platform.StopScan(); err != nil {
		m.log.Warn("[BLE] failed to stop scanning", "error", err)
		return
	}
	m.log.Debug("[BLE] scan stopped")
}

// resumeScanLocked restarts discovery after a connection ends, if configured.
func (m *Manager) resumeScanLocked() {
	if !m.opts.ResumeScan || m.active != nil {
		return
	}
	if err := m.startScanLocked(); err != nil && !errors.Is(err, ErrAdapterUnavailable) {
		m.log.Warn("[BLE] failed to resume scanning", "error", err)
	}
}

// PeripheralDiscovered implements Events. Peripherals without a usable key
// are neither recorded nor published.
func (m *Manager) PeripheralDiscovered(p Peripheral, adv Advertisement, rssi int) {
	m.locked(func(n *notifications) {
		m.stats.Discoveries++
		m.log.Debug("[BLE] discovered", "peripheral", describe(p), "rssi", rssi, "connectable", adv.Connectable)
		m.recordLocked(n, p)
	})
}
