package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chaz8081/blelink/internal/ble"
	"github.com/chaz8081/blelink/internal/config"
	"github.com/chaz8081/blelink/internal/metrics"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/blelink/config.yaml)")
	targetName := flag.String("target", "", "name of the peripheral to connect to (overrides connect.target_name)")
	metricsAddr := flag.String("metrics", "", "listen address for /metrics (overrides metrics.listen)")
	writeConfig := flag.Bool("write-config", false, "write the default config file and exit")
	flag.Parse()

	if *writeConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
			return
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *targetName != "" {
		cfg.Connect.TargetName = *targetName
	}
	if *metricsAddr != "" {
		cfg.Metrics.Listen = *metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	installLogger(logger)

	printBanner(cfg)

	platform, err := ble.NewPlatform(cfg.Backend)
	if err != nil {
		log.Fatalf("Failed to open Bluetooth backend %q: %v", cfg.Backend, err)
	}

	manager, err := ble.NewManager(platform, cfg.ManagerOptions())
	if err != nil {
		log.Fatalf("Failed to create BLE manager: %v", err)
	}
	manager.SetObserver(&consoleObserver{
		manager: manager,
		target:  target{id: cfg.Connect.TargetID, name: cfg.Connect.TargetName},
	})

	var server *http.Server
	if cfg.Metrics.Listen != "" {
		server = serveMetrics(cfg.Metrics.Listen, manager)
	}

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := manager.Start(); err != nil {
		log.Fatalf("Failed to start BLE manager: %v\n\nEnsure Bluetooth is enabled and this process may use it.", err)
	}
	slog.Info("Ready! Scanning starts once the adapter is powered on. Ctrl+C to quit.")

	sig := <-sigCh
	slog.Info("Shutting down", "signal", sig.String())

	if err := manager.Close(); err != nil {
		slog.Error("BLE shutdown failed", "error", err)
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Metrics server shutdown failed", "error", err)
		}
	}
	slog.Info("Goodbye!")
}

// serveMetrics registers the manager collector and serves /metrics on addr
// in the background.
func serveMetrics(addr string, manager *ble.Manager) *http.Server {
	prometheus.MustRegister(metrics.NewCollector(manager))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Serving metrics", "url", "http://"+addr+"/metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return server
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// targetLabel names the auto-connect peripheral for the banner. The ID wins
// over the name, matching target.matches.
func targetLabel(cfg *config.Config) string {
	if !cfg.HasTarget() {
		return "(none, scan only)"
	}
	if cfg.Connect.TargetID != "" {
		return cfg.Connect.TargetID
	}
	return cfg.Connect.TargetName
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	metricsAddr := cfg.Metrics.Listen
	if metricsAddr == "" {
		metricsAddr = "disabled"
	}

	fmt.Println("=== blelink ===")
	fmt.Printf("  Backend: %s\n", cfg.Backend)
	fmt.Printf("  Target:  %s\n", targetLabel(cfg))
	fmt.Printf("  Dedup:   %s\n", cfg.Scan.DedupKey)
	fmt.Printf("  Poll:    %s\n", cfg.Signal.PollInterval)
	fmt.Printf("  Metrics: %s\n", metricsAddr)
	fmt.Printf("  Log:     %s (%s)\n", cfg.LogLevel, cfg.LogFormat)
	fmt.Println("===============")
}
