// Cellular Module Diagnostics Service
//
// cellmon talks to a u-blox style cellular module over a serial AT
// interface, periodically refreshes its radio parameters, and exposes the
// results as Prometheus metrics, a JSON API and a WebSocket event stream.
//
// Usage:
//
//	cellmon [flags]
//
// Flags:
//
//	-config string    Path to config file (default: no config file)
//	-port int         Port to serve HTTP on (default: 9101)
//	-device string    Serial device path (default: /dev/ttyUSB0)
//	-family string    Module family: generic, sara-r5, sara-r4 (default: generic)
//	-interval string  Poll interval (default: 30s)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tarm/serial"

	"github.com/cellwatch/cellmon/api"
	"github.com/cellwatch/cellmon/at"
	"github.com/cellwatch/cellmon/cellinfo"
	"github.com/cellwatch/cellmon/config"
	"github.com/cellwatch/cellmon/metrics"
	"github.com/cellwatch/cellmon/store"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// deviceHandle identifies the single module this process drives. The
// service supports several, but one serial port means one device here.
const deviceHandle = 1

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", 0, "Port to serve HTTP on (default: 9101)")
	device := flag.String("device", "", "Serial device path (default: /dev/ttyUSB0)")
	family := flag.String("family", "", "Module family: generic, sara-r5, sara-r4 (default: generic)")
	interval := flag.String("interval", "", "Poll interval (default: 30s)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cellmon %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load environment variables
	config.LoadConfigFromEnv(cfg)

	// Override with command line flags
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *device != "" {
		cfg.Module.Device = *device
	}
	if *family != "" {
		cfg.Module.Family = *family
	}
	if *interval != "" {
		if d, err := time.ParseDuration(*interval); err == nil {
			cfg.Module.PollInterval = d
		}
	}

	moduleFamily, err := cellinfo.ParseModuleFamily(cfg.Module.Family)
	if err != nil {
		log.Fatalf("Invalid module family: %v", err)
	}

	log.Printf("Starting cellmon %s", version)
	log.Printf("Serial Device: %s @ %d baud", cfg.Module.Device, cfg.Module.Baud)
	log.Printf("Module Family: %s", moduleFamily)
	log.Printf("Poll Interval: %s", cfg.Module.PollInterval)
	log.Printf("HTTP Port: %d", cfg.Server.Port)

	// Open the serial port. A short read timeout keeps the AT client's
	// line reader responsive; its own command deadline is layered on top.
	serialPort, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Module.Device,
		Baud:        cfg.Module.Baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("Failed to open serial port: %v", err)
	}
	defer serialPort.Close()

	client := at.NewClient(serialPort, cfg.Module.CommandTimeout)
	if err := client.Init(); err != nil {
		log.Fatalf("Failed to initialise AT interface: %v", err)
	}

	svc := cellinfo.New()
	if _, err := svc.Register(deviceHandle, moduleFamily, client, cellinfo.NewMonitor(client)); err != nil {
		log.Fatalf("Failed to register module: %v", err)
	}

	logModuleIdentity(svc)

	// Open the snapshot store. An empty path disables history.
	var db *store.Store
	if cfg.Store.Path != "" {
		db, err = store.Open(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to open snapshot store: %v", err)
		}
		defer db.Close()
	} else {
		log.Println("Snapshot persistence disabled")
	}

	// Register collector with Prometheus
	prometheus.MustRegister(metrics.NewCollector(svc))

	hub := api.NewHub()
	apiServer := api.NewServer(svc, db, hub, cfg.Store.HistoryLimit)

	router := apiServer.Router()
	router.Handle(cfg.Server.MetricsPath, promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	go poll(ctx, svc, db, hub, cfg)

	// Start server
	log.Printf("Serving at http://localhost:%d (metrics at %s)", cfg.Server.Port, cfg.Server.MetricsPath)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}

	<-ctx.Done()
	log.Println("cellmon stopped")
}

// poll refreshes the radio parameters on each tick, persists the snapshot
// and broadcasts it to WebSocket clients.
func poll(ctx context.Context, svc *cellinfo.Service, db *store.Store, hub *api.Hub, cfg *config.Config) {
	ticker := time.NewTicker(cfg.Module.PollInterval)
	defer ticker.Stop()

	refresh := func() {
		if err := svc.RefreshRadioParameters(deviceHandle); err != nil {
			log.Printf("Radio refresh failed: %v", err)
			return
		}

		snap, err := svc.Snapshot(deviceHandle)
		if err != nil {
			return
		}

		snrDb, snrErr := svc.GetSnrDb(deviceHandle)
		snrKnown := snrErr == nil && snrDb != math.MaxInt32

		if db != nil {
			if err := db.SaveSnapshot(deviceHandle, snap, snrDb, snrKnown); err != nil {
				log.Printf("Snapshot save failed: %v", err)
			}
			if err := db.Prune(deviceHandle, cfg.Store.HistoryLimit); err != nil {
				log.Printf("Snapshot prune failed: %v", err)
			}
		}

		event := map[string]any{"handle": deviceHandle, "radio": snap}
		if snrKnown {
			event["snrDb"] = snrDb
		}
		hub.Broadcast(event)
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// logModuleIdentity reads and logs what the module reports about itself.
// Failures here are informational, the service still starts.
func logModuleIdentity(svc *cellinfo.Service) {
	if m, err := svc.GetManufacturer(deviceHandle); err == nil {
		if model, err := svc.GetModel(deviceHandle); err == nil {
			log.Printf("Module: %s %s", m, model)
		}
	}
	if fw, err := svc.GetFirmwareVersion(deviceHandle); err == nil {
		log.Printf("Firmware: %s", fw)
	}
	if imei, err := svc.GetImei(deviceHandle); err == nil {
		log.Printf("IMEI: %s", imei)
	}
}
