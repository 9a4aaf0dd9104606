package ble

import (
	"fmt"
	"log/slog"
)

// Backend names accepted by NewPlatform.
const (
	BackendAuto   = "auto"
	BackendGatt   = "gatt"
	BackendTinygo = "tinygo"
)

// NewPlatform opens the named backend. BackendAuto prefers gatt and falls
// back to tinygo when the gatt device cannot be opened (unsupported OS, or
// no permission for raw HCI sockets).
func NewPlatform(backend string) (Platform, error) {
	switch backend {
	case BackendGatt:
		return NewGattPlatform()
	case BackendTinygo:
		return NewTinygoPlatform(), nil
	case BackendAuto, "":
		p, err := NewGattPlatform()
		if err == nil {
			return p, nil
		}
		slog.Warn("[BLE] gatt backend unavailable, using tinygo", "error", err)
		return NewTinygoPlatform(), nil
	default:
		return nil, fmt.Errorf("ble: unknown backend %q", backend)
	}
}
