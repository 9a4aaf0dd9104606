// Command test-scan is a manual test for discovery.
// It scans for a fixed duration, then prints every named peripheral found.
// With --name it also reports whether that peripheral was seen.
//
// Usage:
//
//	go run ./cmd/test-scan [--backend auto|gatt|tinygo] [--duration 10s] [--dedup name|id] [--name Strap]
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/chaz8081/blelink/internal/ble"
)

// adapterWatcher reports the adapter state it sees.
type adapterWatcher struct {
	ble.NopObserver
}

func (adapterWatcher) DidUpdateAdapterState(state ble.AdapterState) {
	fmt.Printf("Adapter: %s\n", state)
}

func main() {
	backend := flag.String("backend", ble.BackendAuto, "backend: auto, gatt or tinygo")
	duration := flag.Duration("duration", 10*time.Second, "how long to scan")
	dedup := flag.String("dedup", "name", "registry key: name or id")
	name := flag.String("name", "", "peripheral to look for (a name, or an ID with --dedup id)")
	flag.Parse()

	key, err := ble.ParseDedupKey(*dedup)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	platform, err := ble.NewPlatform(*backend)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	opts := ble.DefaultOptions()
	opts.DedupKey = key
	manager, err := ble.NewManager(platform, opts)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	manager.SetObserver(adapterWatcher{})

	if err := manager.Start(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Scanning for %s...\n", *duration)
	time.Sleep(*duration)

	devices := manager.Devices()
	manager.StopScan()
	if err := manager.Close(); err != nil {
		fmt.Printf("Error: %v\n", err)
	}

	fmt.Printf("\nFound %d device(s):\n", len(devices))
	for _, p := range devices {
		fmt.Printf("  %-24s %s\n", p.Name(), p.ID())
	}
	if *name != "" {
		fmt.Println(lookupReport(manager, *name))
	}
}

// lookupReport describes whether key was recorded during the scan.
func lookupReport(manager *ble.Manager, key string) string {
	p, ok := manager.Lookup(key)
	if !ok {
		return fmt.Sprintf("%q: not found", key)
	}
	return fmt.Sprintf("%q: found %s (%s)", key, p.Name(), p.ID())
}
