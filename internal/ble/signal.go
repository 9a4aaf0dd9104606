package ble

import (
	"fmt"
	"time"
)

// DefaultPollInterval is the delay between signal strength reads while connected.
const DefaultPollInterval = 5 * time.Second

// SignalQuality is a link-quality tier derived from a single RSSI sample.
// Higher values are better.
type SignalQuality int

const (
	SignalUnusable SignalQuality = iota
	SignalNotGood
	SignalOkay
	SignalVeryGood
	SignalAmazing
)

func (q SignalQuality) String() string {
	switch q {
	case SignalUnusable:
		return "Unusable"
	case SignalNotGood:
		return "Not Good"
	case SignalOkay:
		return "Okay"
	case SignalVeryGood:
		return "Very Good"
	case SignalAmazing:
		return "Amazing"
	default:
		return fmt.Sprintf("SignalQuality(%d)", int(q))
	}
}

// Classify maps an RSSI sample in dBm to a quality tier.
func Classify(rssi int) SignalQuality {
	switch {
	case rssi >= -30:
		return SignalAmazing
	case rssi >= -67:
		return SignalVeryGood
	case rssi >= -70:
		return SignalOkay
	case rssi >= -80:
		return SignalNotGood
	default:
		return SignalUnusable
	}
}

// stopper is the part of *time.Timer the poll loop needs.
type stopper interface {
	Stop() bool
}

func afterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// schedulePollLocked arms exactly one follow-up signal read for conn,
// replacing any follow-up already pending. Caller must hold m.mu.
func (m *Manager) schedulePollLocked(conn *activeConnection) {
	if conn.poll != nil {
		conn.poll.Stop()
	}
	conn.poll = m.after(m.opts.PollInterval, func() { m.pollSignal(conn) })
}

// pollSignal fires from the poll timer. The connection may have been torn
// down between the timer firing and the lock being acquired.
func (m *Manager) pollSignal(conn *activeConnection) {
	m.locked(func(n *notifications) {
		if m.active != conn {
			return
		}
		conn.poll = nil
		m.requestSignalLocked(n, conn)
	})
}

// requestSignalLocked issues one signal strength read for conn.
func (m *Manager) requestSignalLocked(n *notifications, conn *activeConnection) {
	if err := m.platform.ReadSignalStrength(conn.peripheral); err != nil {
		m.failLocked(n, opError(ErrSignalReadFailed, conn.peripheral, err))
	}
}

// SignalStrengthRead implements Events.
func (m *Manager) SignalStrengthRead(p Peripheral, rssi int, err error) {
	m.locked(func(n *notifications) {
		conn := m.active
		if conn == nil || !samePeripheral(conn.peripheral, p) || !conn.phase.Connected() {
			m.log.Debug("[BLE] ignoring signal read for inactive peripheral", "peripheral", describe(p))
			return
		}
		if err != nil {
			m.failLocked(n, opError(ErrSignalReadFailed, p, err))
			return
		}

		quality := Classify(rssi)
		conn.rssi = rssi
		conn.quality = quality
		conn.hasSignal = true
		m.stats.SignalReads++

		m.recordLocked(n, p)
		n.add(func(o Observer) { o.DidUpdateSignalQuality(p, rssi, quality) })
		m.log.Debug("[BLE] signal", "peripheral", describe(p), "rssi", rssi, "quality", quality.String())

		m.schedulePollLocked(conn)
	})
}
