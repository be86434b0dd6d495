package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/api"
	"github.com/halcyon-health/affect.report/internal/cache"
	"github.com/halcyon-health/affect.report/internal/config"
	"github.com/halcyon-health/affect.report/internal/devicemux"
	"github.com/halcyon-health/affect.report/internal/ema"
	"github.com/halcyon-health/affect.report/internal/ingest"
	"github.com/halcyon-health/affect.report/internal/rules"
	"github.com/halcyon-health/affect.report/internal/store"
	"github.com/halcyon-health/affect.report/internal/version"
)

var (
	devMode           = flag.Bool("dev", false, "Run in dev mode with a mock device emitting synthetic vitals")
	listen            = flag.String("listen", ":8080", "HTTP listen address")
	dbPath            = flag.String("db", "affect.db", "SQLite database path")
	udpListen         = flag.String("udp-listen", ":9876", "UDP ingest listen address (empty disables)")
	udpRcvBuf         = flag.Int("udp-rcvbuf", 1<<20, "UDP receive buffer size in bytes")
	devicePath        = flag.String("device", "/dev/ttyACM0", "Serial path of the wearable dock (ignored in dev mode)")
	deviceBaud        = flag.Int("device-baud", 115200, "Baud rate for the wearable dock")
	deviceParticipant = flag.String("device-participant", "", "Participant the docked wearable's readings belong to")
	disableDevice     = flag.Bool("disable-device", false, "Run without any device port (HTTP/UDP ingest only)")
	redisAddr         = flag.String("redis", "", "Redis address for the state cache and pub/sub (empty disables)")
	tuningPath        = flag.String("tuning", "", "Tuning config JSON path (empty uses built-in defaults)")
	sweepDisable      = flag.Bool("sweep-disable", false, "Disable the periodic inference sweep")
	emaDisable        = flag.Bool("ema-disable", false, "Disable the EMA prompt scheduler")
	showVersion       = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("affectd %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	// Maintenance verbs run and exit before any service wiring:
	//   affectd migrate up | down | status | version <n> | force <n> | baseline <n>
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		store.RunMigrateCommand(args[1:], *dbPath)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := config.DefaultTuningConfig()
	if *tuningPath != "" {
		loaded, err := config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
		tuning = loaded
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	// The pipeline persists states through this interface. With Redis
	// configured, the cache layers read-through serving and pub/sub
	// fan-out over the store; without it the store is used directly.
	var states affect.StateStore = st
	var stateCache *cache.StateCache
	if *redisAddr != "" {
		stateCache = cache.New(st, cache.NewClient(*redisAddr), 0)
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
		err := stateCache.Ping(pingCtx)
		cancelPing()
		if err != nil {
			log.Fatalf("failed to reach redis at %s: %v", *redisAddr, err)
		}
		defer stateCache.Close()
		states = stateCache
		log.Printf("state cache enabled via redis at %s", *redisAddr)
	}

	tracker := affect.NewTracker(st, affect.TrackerParamsFromTuning(tuning), nil)
	pipeline := affect.NewPipeline(st, tracker, states, affect.ScorerParamsFromTuning(tuning), nil)

	engine := rules.NewEngine()
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 5*time.Second)
	persisted, err := st.ListRules(loadCtx, true)
	cancelLoad()
	if err != nil {
		log.Fatalf("failed to load monitoring rules: %v", err)
	}
	for _, compileErr := range engine.SetRules(persisted) {
		log.Printf("[Rules] skipping persisted rule: %v", compileErr)
	}
	log.Printf("[Rules] %d active rules loaded", engine.ActiveRuleCount())

	processor := ingest.NewProcessor(st, engine, nil)

	sweeper := affect.NewSweeper(affect.SweeperConfig{
		Pipeline: pipeline,
		Interval: tuning.GetSweepInterval(),
		Timeout:  tuning.GetInferenceTimeout(),
	})

	scheduler := ema.NewScheduler(ema.SchedulerConfig{
		Store:           st,
		Slots:           tuning.GetEMAPromptSlots(),
		StressThreshold: tuning.GetEMAStressThreshold(),
		MinGap:          tuning.GetEMAMinPromptGap(),
		DailyCap:        tuning.GetEMADailyPromptCap(),
	})

	hub := api.NewHub()

	// Fan each saved state out to the live stream and to the prompt
	// scheduler's stress trigger.
	pipeline.OnState(func(state *affect.AffectState) {
		hub.BroadcastState(state)
		scheduler.HandleState(state)
	})
	scheduler.OnPrompt(func(p ema.Prompt) {
		hub.Broadcast("ema_prompt", p.ParticipantID, p)
	})
	processor.OnDirty(sweeper.MarkDirty)
	processor.OnAlert(func(alert *affect.Alert) {
		hub.BroadcastAlert(alert)
		if stateCache != nil {
			if err := stateCache.PublishAlert(context.Background(), alert); err != nil {
				log.Printf("failed to publish alert: %v", err)
			}
		}
	})

	var onReset func(ctx context.Context, participantID string)
	if stateCache != nil {
		onReset = func(ctx context.Context, participantID string) {
			stateCache.Invalidate(ctx, participantID)
		}
	}

	participantID := *deviceParticipant
	var devMux devicemux.DeviceMuxInterface
	switch {
	case *disableDevice:
		devMux = devicemux.NewDisabledDeviceMux()
	case *devMode:
		if participantID == "" {
			participantID = "demo"
		}
		devMux = devicemux.NewMockDeviceMux()
	default:
		if participantID == "" {
			log.Fatal("device-participant is required when a device port is configured")
		}
		devMux, err = devicemux.NewRealDeviceMux(*devicePath, devicemux.PortOptions{BaudRate: *deviceBaud})
		if err != nil {
			log.Fatalf("failed to open device port %s: %v", *devicePath, err)
		}
	}
	defer devMux.Close()

	if err := devMux.Initialize(); err != nil {
		log.Fatalf("failed to initialize device: %v", err)
	}
	log.Printf("device initialized")

	// Wait group covers the device monitor, event handler, ingest
	// listeners, background loops, and the HTTP server.
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the device port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := devMux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor device port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to device lines and pass them to the ingest handler
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := devMux.Subscribe()
		defer devMux.Unsubscribe(id)
		for {
			select {
			case payload := <-c:
				if err := devicemux.HandleEvent(ctx, processor, participantID, payload); err != nil {
					log.Printf("error handling device line: %v", err)
				}
			case <-ctx.Done():
				log.Printf("subscribe routine terminated")
				return
			}
		}
	}()

	if *udpListen != "" {
		udp := ingest.NewUDPListener(ingest.UDPListenerConfig{
			Address:   *udpListen,
			RcvBuf:    *udpRcvBuf,
			Processor: processor,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := udp.Start(ctx); err != nil && err != context.Canceled {
				log.Printf("UDP listener error: %v", err)
			}
			log.Print("UDP listener routine terminated")
		}()
	}

	if !*sweepDisable && tuning.GetSweepInterval() > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sweeper.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("sweeper error: %v", err)
			}
			log.Print("sweep routine terminated")
		}()
	}

	if !*emaDisable {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("EMA scheduler error: %v", err)
			}
			log.Print("EMA scheduler routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(api.ServerConfig{
			Store:     st,
			Pipeline:  pipeline,
			Engine:    engine,
			Processor: processor,
			Tuning:    tuning,
			Hub:       hub,
			OnReset:   onReset,
		}).ServeMux()

		devMux.AttachAdminRoutes(mux)
		st.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
