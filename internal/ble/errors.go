package ble

import (
	"errors"
	"fmt"
)

var (
	// ErrAdapterUnavailable means the adapter is not powered on. Scans requested
	// in this state are deferred to the next power-on event.
	ErrAdapterUnavailable = errors.New("ble: adapter not powered on")
	// ErrNotConnected is returned by Disconnect when no peripheral is active.
	ErrNotConnected = errors.New("ble: no active peripheral")
	// ErrNilPeripheral is returned by ConnectTo(nil).
	ErrNilPeripheral = errors.New("ble: nil peripheral")

	ErrConnectFailed            = errors.New("ble: connect failed")
	ErrDiscoveryFailed          = errors.New("ble: discovery failed")
	ErrCharacteristicReadFailed = errors.New("ble: characteristic read failed")
	ErrSignalReadFailed         = errors.New("ble: signal strength read failed")
	// ErrConnectCancelled is the cause reported when Disconnect ends an
	// attempt that had not connected yet.
	ErrConnectCancelled = errors.New("ble: connect cancelled")

	// ErrUnsupported is reported by backends for requests their stack cannot serve.
	ErrUnsupported = errors.New("ble: operation not supported by platform")
)

// opError wraps kind with the peripheral and, if present, the platform cause.
func opError(kind error, p Peripheral, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", kind, describe(p))
	}
	return fmt.Errorf("%w: %s: %w", kind, describe(p), cause)
}
