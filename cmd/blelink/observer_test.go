package main

import "testing"

type fakePeripheral struct {
	id   string
	name string
}

func (p *fakePeripheral) ID() string   { return p.id }
func (p *fakePeripheral) Name() string { return p.name }

func TestTargetMatches(t *testing.T) {
	tests := []struct {
		name   string
		target target
		p      *fakePeripheral
		want   bool
	}{
		{"name match", target{name: "Strap"}, &fakePeripheral{"aa", "Strap"}, true},
		{"name mismatch", target{name: "Strap"}, &fakePeripheral{"aa", "Other"}, false},
		{"id wins over name", target{id: "AA:BB", name: "Strap"}, &fakePeripheral{"cc", "Strap"}, false},
		{"id case insensitive", target{id: "AA:BB"}, &fakePeripheral{"aa:bb", ""}, true},
		{"empty target", target{}, &fakePeripheral{"aa", ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.target.matches(tt.p); got != tt.want {
				t.Errorf("matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
