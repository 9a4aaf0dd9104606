package ble

import "testing"

func TestNewPlatformUnknownBackend(t *testing.T) {
	if _, err := NewPlatform("bluez"); err == nil {
		t.Error("NewPlatform(bluez) should fail")
	}
}

func TestNewPlatformTinygo(t *testing.T) {
	p, err := NewPlatform(BackendTinygo)
	if err != nil {
		t.Fatalf("NewPlatform(tinygo) error = %v", err)
	}
	if _, ok := p.(*TinygoPlatform); !ok {
		t.Errorf("NewPlatform(tinygo) = %T, want *TinygoPlatform", p)
	}
	if got := p.State(); got != AdapterUnknown {
		t.Errorf("State() before Start = %v, want unknown", got)
	}
}
