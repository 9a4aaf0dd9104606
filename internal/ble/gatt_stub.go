//go:build !linux && !darwin

package ble

import (
	"fmt"
	"runtime"
)

// NewGattPlatform is unavailable on this OS; use the tinygo backend instead.
func NewGattPlatform() (Platform, error) {
	return nil, fmt.Errorf("ble: gatt backend on %s: %w", runtime.GOOS, ErrUnsupported)
}
