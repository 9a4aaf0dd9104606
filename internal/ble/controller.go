package ble

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// ConnectionState is the position of the single connection slot in the
// scan, connect and discovery lifecycle.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateScanning
	StateConnecting
	StateDiscoveringServices
	StateReady
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateDiscoveringServices:
		return "discovering services"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// Connected reports whether the state has a live link.
func (s ConnectionState) Connected() bool {
	return s == StateDiscoveringServices || s == StateReady
}

// activeConnection is the single connection slot.
type activeConnection struct {
	session    string
	peripheral Peripheral
	phase      ConnectionState

	// Discovery state, written once per connection.
	services           []Service
	servicesDiscovered bool
	pendingServices    int
	characteristics    []Characteristic
	readsIssued        int
	discoveryFailed    bool

	poll      stopper
	rssi      int
	quality   SignalQuality
	hasSignal bool
}

func (c *activeConnection) cancelPoll() {
	if c.poll != nil {
		c.poll.Stop()
		c.poll = nil
	}
}

// ConnectTo makes p the active peripheral: scanning stops and a connect
// request is issued. Any other active connection is torn down first. There is
// no connect timeout; the request resolves through PeripheralConnected or
// PeripheralConnectFailed.
func (m *Manager) ConnectTo(p Peripheral) error {
	if p == nil {
		return ErrNilPeripheral
	}

	var connErr error
	m.locked(func(n *notifications) {
		if prev := m.active; prev != nil {
			if samePeripheral(prev.peripheral, p) {
				m.log.Debug("[BLE] already targeting peripheral", "peripheral", describe(p), "state", prev.phase.String())
				return
			}
			m.detachLocked(prev)
		}

		conn := &activeConnection{
			session:    ulid.Make().String(),
			peripheral: p,
			phase:      StateConnecting,
		}
		m.active = conn
		m.stopScanLocked()

		m.log.Info("[BLE] connecting", "peripheral", describe(p), "session", conn.session)
		if err := m.platform.Connect(p); err != nil {
			connErr = opError(ErrConnectFailed, p, err)
			m.connectFailedLocked(n, conn, connErr)
		}
	})
	return connErr
}

// detachLocked releases the slot held by prev so another peripheral can take
// it. The platform disconnect confirmation for prev arrives later.
func (m *Manager) detachLocked(prev *activeConnection) {
	prev.cancelPoll()
	m.active = nil
	m.detached[prev.peripheral.ID()] = prev.peripheral
	m.log.Info("[BLE] releasing peripheral", "peripheral", describe(prev.peripheral), "session", prev.session)
	if err := m.platform.Disconnect(prev.peripheral); err != nil {
		m.log.Warn("[BLE] failed to disconnect previous peripheral", "peripheral", describe(prev.peripheral), "error", err)
	}
}

// Disconnect asks the platform to drop the active peripheral. State is
// cleared when the platform confirms through PeripheralDisconnected. An
// attempt still in StateConnecting is cancelled at once and reported as a
// connect failure wrapping ErrConnectCancelled.
func (m *Manager) Disconnect() error {
	var discErr error
	m.locked(func(n *notifications) {
		conn := m.active
		if conn == nil {
			discErr = ErrNotConnected
			return
		}
		if conn.phase == StateConnecting {
			m.log.Info("[BLE] cancelling connect", "peripheral", describe(conn.peripheral), "session", conn.session)
			m.detachLocked(conn)
			m.connectFailedLocked(n, conn, opError(ErrConnectFailed, conn.peripheral, ErrConnectCancelled))
			return
		}
		m.log.Info("[BLE] disconnecting", "peripheral", describe(conn.peripheral), "session", conn.session)
		if err := m.platform.Disconnect(conn.peripheral); err != nil {
			discErr = fmt.Errorf("ble: disconnect %s: %w", describe(conn.peripheral), err)
		}
	})
	return discErr
}

// activeFor returns the active connection if it belongs to p.
func (m *Manager) activeFor(p Peripheral) *activeConnection {
	if m.active == nil || !samePeripheral(m.active.peripheral, p) {
		return nil
	}
	return m.active
}

// PeripheralConnected implements Events.
func (m *Manager) PeripheralConnected(p Peripheral) {
	m.locked(func(n *notifications) {
		conn := m.activeFor(p)
		if conn == nil {
			if _, ok := m.detached[p.ID()]; ok {
				m.log.Debug("[BLE] released peripheral connected late, disconnecting", "peripheral", describe(p))
				if err := m.platform.Disconnect(p); err != nil {
					m.log.Warn("[BLE] failed to disconnect released peripheral", "peripheral", describe(p), "error", err)
				}
				return
			}
			m.log.Debug("[BLE] ignoring connect for inactive peripheral", "peripheral", describe(p))
			return
		}
		if conn.phase != StateConnecting {
			m.log.Debug("[BLE] ignoring duplicate connect", "peripheral", describe(p), "state", conn.phase.String())
			return
		}

		conn.peripheral = p
		conn.phase = StateDiscoveringServices
		m.stats.Connects++
		m.log.Info("[BLE] connected", "peripheral", describe(p), "session", conn.session)

		m.requestSignalLocked(n, conn)
		n.add(func(o Observer) { o.DidConnectToDevice(p) })

		if err := m.platform.DiscoverServices(p, nil); err != nil {
			conn.discoveryFailed = true
			m.failLocked(n, opError(ErrDiscoveryFailed, p, err))
		}
	})
}

// PeripheralConnectFailed implements Events.
func (m *Manager) PeripheralConnectFailed(p Peripheral, err error) {
	m.locked(func(n *notifications) {
		conn := m.activeFor(p)
		if conn == nil || conn.phase != StateConnecting {
			delete(m.detached, p.ID())
			m.log.Debug("[BLE] ignoring connect failure for inactive peripheral", "peripheral", describe(p), "error", err)
			return
		}
		m.connectFailedLocked(n, conn, opError(ErrConnectFailed, p, err))
	})
}

func (m *Manager) connectFailedLocked(n *notifications, conn *activeConnection, err error) {
	conn.cancelPoll()
	m.active = nil
	m.rest = StateIdle
	m.stats.ConnectFailures++
	p := conn.peripheral
	m.log.Warn("[BLE] connect failed", "peripheral", describe(p), "session", conn.session, "error", err)
	n.add(func(o Observer) { o.DidFailToConnect(p, err) })
	m.resumeScanLocked()
}

// PeripheralDisconnected implements Events. A confirmation for the active
// peripheral is the only event that clears an established connection.
func (m *Manager) PeripheralDisconnected(p Peripheral, err error) {
	m.locked(func(n *notifications) {
		conn := m.activeFor(p)
		// A released link confirms before a new attempt to the same
		// peripheral can have connected.
		if prev, ok := m.detached[p.ID()]; ok && (conn == nil || conn.phase == StateConnecting) {
			delete(m.detached, p.ID())
			m.stats.Disconnects++
			m.log.Info("[BLE] released peripheral disconnected", "peripheral", describe(prev))
			n.add(func(o Observer) { o.DidDisconnectFromDevice(prev, err) })
			return
		}
		if conn != nil {
			m.dropLocked(n, conn, err)
			return
		}
		m.log.Debug("[BLE] ignoring disconnect for inactive peripheral", "peripheral", describe(p))
	})
}

// dropLocked tears down conn. A connection that never completed is reported
// as a connect failure rather than a disconnect.
func (m *Manager) dropLocked(n *notifications, conn *activeConnection, cause error) {
	if conn.phase == StateConnecting {
		m.connectFailedLocked(n, conn, opError(ErrConnectFailed, conn.peripheral, cause))
		return
	}

	conn.cancelPoll()
	m.active = nil
	m.rest = StateDisconnected
	m.stats.Disconnects++
	p := conn.peripheral
	m.log.Info("[BLE] disconnected", "peripheral", describe(p), "session", conn.session, "reason", cause)
	n.add(func(o Observer) { o.DidDisconnectFromDevice(p, cause) })
	m.resumeScanLocked()
}

// ServicesDiscovered implements Events.
func (m *Manager) ServicesDiscovered(p Peripheral, services []Service, err error) {
	m.locked(func(n *notifications) {
		conn := m.activeFor(p)
		if conn == nil || conn.phase != StateDiscoveringServices {
			m.log.Debug("[BLE] ignoring services for inactive peripheral", "peripheral", describe(p))
			return
		}
		if conn.servicesDiscovered {
			m.log.Debug("[BLE] ignoring repeated service discovery", "peripheral", describe(p))
			return
		}
		if err != nil {
			conn.discoveryFailed = true
			m.failLocked(n, opError(ErrDiscoveryFailed, p, err))
			return
		}

		conn.servicesDiscovered = true
		conn.services = services
		conn.pendingServices = len(services)
		m.log.Debug("[BLE] services discovered", "peripheral", describe(p), "count", len(services))

		for _, s := range services {
			if err := m.platform.DiscoverCharacteristics(p, s, nil); err != nil {
				conn.pendingServices--
				conn.discoveryFailed = true
				m.failLocked(n, opError(ErrDiscoveryFailed, p, fmt.Errorf("service %s: %w", s.UUID(), err)))
			}
		}
		m.maybeReadyLocked(n, conn)
	})
}

// CharacteristicsDiscovered implements Events. Every readable characteristic
// gets exactly one read.
func (m *Manager) CharacteristicsDiscovered(p Peripheral, s Service, chars []Characteristic, err error) {
	m.locked(func(n *notifications) {
		conn := m.activeFor(p)
		if conn == nil || conn.phase != StateDiscoveringServices || conn.pendingServices == 0 {
			m.log.Debug("[BLE] ignoring characteristics for inactive peripheral", "peripheral", describe(p))
			return
		}
		conn.pendingServices--

		if err != nil {
			conn.discoveryFailed = true
			m.failLocked(n, opError(ErrDiscoveryFailed, p, fmt.Errorf("service %s: %w", s.UUID(), err)))
			return
		}

		for _, c := range chars {
			conn.characteristics = append(conn.characteristics, c)
			if !c.Properties().Readable() {
				continue
			}
			if err := m.platform.ReadCharacteristic(p, c); err != nil {
				m.failLocked(n, opError(ErrCharacteristicReadFailed, p, fmt.Errorf("characteristic %s: %w", c.UUID(), err)))
				continue
			}
			conn.readsIssued++
		}
		m.maybeReadyLocked(n, conn)
	})
}

// maybeReadyLocked moves conn to Ready once every service has reported and
// no discovery step failed. Reads may still be in flight.
func (m *Manager) maybeReadyLocked(n *notifications, conn *activeConnection) {
	if conn.pendingServices > 0 || conn.discoveryFailed {
		return
	}
	conn.phase = StateReady
	p := conn.peripheral
	chars := append([]Characteristic(nil), conn.characteristics...)
	m.log.Info("[BLE] ready", "peripheral", describe(p), "session", conn.session,
		"services", len(conn.services), "characteristics", len(chars), "reads", conn.readsIssued)
	n.add(func(o Observer) { o.DidFinishDiscovery(p, chars) })
}

// CharacteristicValueUpdated implements Events. Failed updates are reported
// and dropped.
func (m *Manager) CharacteristicValueUpdated(p Peripheral, c Characteristic, value []byte, err error) {
	m.locked(func(n *notifications) {
		conn := m.activeFor(p)
		if conn == nil || !conn.phase.Connected() {
			m.log.Debug("[BLE] ignoring value for inactive peripheral", "peripheral", describe(p))
			return
		}
		if err != nil {
			m.failLocked(n, opError(ErrCharacteristicReadFailed, p, fmt.Errorf("characteristic %s: %w", c.UUID(), err)))
			return
		}
		m.stats.ValueReads++
		v := append([]byte(nil), value...)
		m.log.Debug("[BLE] value", "peripheral", describe(p), "characteristic", c.UUID(), "bytes", len(v))
		n.add(func(o Observer) { o.DidReadCharacteristic(p, c, v) })
	})
}
