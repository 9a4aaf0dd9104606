package ble

import "fmt"

// DedupKey selects the identity used to collapse repeated discoveries.
type DedupKey int

const (
	// DedupByName keys entries by advertised name. Distinct devices sharing
	// a name are merged and unnamed devices are never recorded.
	DedupByName DedupKey = iota
	// DedupByID keys entries by the platform's stable identifier.
	DedupByID
)

func (k DedupKey) String() string {
	switch k {
	case DedupByName:
		return "name"
	case DedupByID:
		return "id"
	default:
		return fmt.Sprintf("DedupKey(%d)", int(k))
	}
}

// ParseDedupKey converts "name" or "id" to a DedupKey.
func ParseDedupKey(s string) (DedupKey, error) {
	switch s {
	case "name", "":
		return DedupByName, nil
	case "id":
		return DedupByID, nil
	default:
		return DedupByName, fmt.Errorf("ble: unknown dedup key %q", s)
	}
}

// Registry holds the latest handle seen for each discovered peripheral.
// It is not safe for concurrent use; the Manager guards it.
type Registry struct {
	key     DedupKey
	order   []string
	entries map[string]Peripheral
}

// NewRegistry creates an empty registry.
func NewRegistry(key DedupKey) *Registry {
	return &Registry{
		key:     key,
		entries: make(map[string]Peripheral),
	}
}

// keyOf returns the dedup key for p, or "" if p cannot be recorded.
func (r *Registry) keyOf(p Peripheral) string {
	if p == nil {
		return ""
	}
	if r.key == DedupByID {
		if id := p.ID(); id != "" {
			return id
		}
	}
	return p.Name()
}

// Record stores p, replacing any earlier handle with the same key.
// It reports whether p was recorded.
func (r *Registry) Record(p Peripheral) bool {
	k := r.keyOf(p)
	if k == "" {
		return false
	}
	if _, ok := r.entries[k]; !ok {
		r.order = append(r.order, k)
	}
	r.entries[k] = p
	return true
}

// Lookup returns the handle stored under key.
func (r *Registry) Lookup(key string) (Peripheral, bool) {
	p, ok := r.entries[key]
	return p, ok
}

// Devices returns a fresh snapshot of the recorded handles in first-seen order.
func (r *Registry) Devices() []Peripheral {
	out := make([]Peripheral, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entries[k])
	}
	return out
}

// Len returns the number of distinct recorded peripherals.
func (r *Registry) Len() int { return len(r.order) }

// Reset forgets every recorded peripheral.
func (r *Registry) Reset() {
	r.order = nil
	r.entries = make(map[string]Peripheral)
}
