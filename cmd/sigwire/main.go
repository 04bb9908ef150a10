package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/sigwire/sigwire/config"
	"github.com/sigwire/sigwire/pkg/cursor"
	badgercursor "github.com/sigwire/sigwire/pkg/cursor/badger"
	memorycursor "github.com/sigwire/sigwire/pkg/cursor/memory"
	"github.com/sigwire/sigwire/pkg/logger"
	"github.com/sigwire/sigwire/pkg/metrics"
	sig "github.com/sigwire/sigwire/pkg/signal"
	"github.com/sigwire/sigwire/pkg/streambus"
	"github.com/sigwire/sigwire/pkg/telemetry/tracing"
	"github.com/sigwire/sigwire/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	logLevel  = flag.String("log-level", "", "Override log level")
	debugMode = flag.Bool("debug", false, "Enable debug mode")
	busType   = flag.String("bus", "", "Override bus type (memory, redis)")
	redisAddr = flag.String("redis-addr", "", "Override Redis address")

	// Operation modes
	taskID     = flag.String("task", "", "Task identity to publish as")
	sendType   = flag.String("send", "", "Publish one signal of this type and exit")
	sendData   = flag.String("payload", "", "JSON payload for -send")
	tailTasks  = flag.String("tail", "", "Comma-separated task IDs to tail signals from")
	tailWindow = flag.Duration("timeout", 5*time.Second, "Blocking window per receive call while tailing")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	overrides := buildOverrides()

	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Sigwire",
		"version", version.Version,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		log.Info("Shutdown signal received", "signal", s.String())
		cancel()
	}()

	if *configPath != "" {
		if watcher, werr := config.NewWatcher(*configPath, config.NewLoader()); werr != nil {
			log.Warn("Config watcher unavailable", "error", werr)
		} else {
			watcher.OnChange(func(updated *config.Config) {
				log.Info("Configuration reloaded", "config", updated.String())
				logger.SetLevel(logger.ParseLevel(updated.Log.Level))
			})
			go func() {
				if werr := watcher.Watch(ctx); werr != nil {
					log.Warn("Config watcher stopped", "error", werr)
				}
			}()
			defer watcher.Stop()
		}
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	metricsManager := metrics.NewManager(metrics.Config{
		Enabled:                cfg.Metrics.Enabled,
		Port:                   cfg.Metrics.Port,
		Path:                   cfg.Metrics.Path,
		ReceiveDurationBuckets: metrics.DefaultConfig().ReceiveDurationBuckets,
	})
	sig.SetMetricsRecorder(metricsManager)
	if metricsManager.Enabled() {
		go func() {
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server failed", "error", err)
			}
		}()
	}

	bus, err := buildBus(cfg)
	if err != nil {
		log.Error("Failed to create stream bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	identity := *taskID
	if identity == "" {
		identity = sig.NewTaskID()
	}

	cursors, err := buildCursorStore(cfg, identity)
	if err != nil {
		log.Error("Failed to create cursor store", "error", err)
		os.Exit(1)
	}
	defer cursors.Close()

	opts := []sig.Option{
		sig.WithIdentity(sig.TaskIdentity(identity)),
		sig.WithLogger(log),
	}
	if cfg.Send.RateLimit > 0 {
		opts = append(opts, sig.WithSendRateLimit(rate.Limit(cfg.Send.RateLimit), cfg.Send.RateBurst))
	}
	svc := sig.NewService(bus, cursors, opts...)

	switch {
	case *sendType != "":
		err = runSend(ctx, svc, log)
	case *tailTasks != "":
		err = runTail(ctx, svc, log)
	default:
		fmt.Fprintln(os.Stderr, "Nothing to do: pass -send or -tail (see -help)")
		os.Exit(2)
	}
	if err != nil && ctx.Err() == nil {
		log.Error("Command failed", "error", err)
		os.Exit(1)
	}

	log.Info("Sigwire stopped")
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}
	if *busType != "" {
		overrides["bus.type"] = *busType
	}
	if *redisAddr != "" {
		overrides["bus.redis.address"] = *redisAddr
	}
	return overrides
}

func buildBus(cfg *config.Config) (streambus.Bus, error) {
	switch cfg.Bus.Type {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Bus.Redis.Address,
			Password: cfg.Bus.Redis.Password,
			DB:       cfg.Bus.Redis.DB,
		})
		bus := streambus.NewRedisBus(client, cfg.Bus.KeyPrefix)
		if !bus.Healthy() {
			return nil, fmt.Errorf("redis unreachable at %s", cfg.Bus.Redis.Address)
		}
		return bus, nil
	case "memory":
		return streambus.NewMemoryBus(), nil
	default:
		return nil, fmt.Errorf("unknown bus type %q", cfg.Bus.Type)
	}
}

func buildCursorStore(cfg *config.Config, consumerID string) (cursor.Store, error) {
	switch cfg.Cursor.Type {
	case "badger":
		return badgercursor.NewStore(&badgercursor.Config{
			Path:       cfg.Cursor.Badger.Path,
			SyncWrites: cfg.Cursor.Badger.SyncWrites,
			ConsumerID: consumerID,
		})
	case "memory":
		return memorycursor.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown cursor store type %q", cfg.Cursor.Type)
	}
}

func runSend(ctx context.Context, svc *sig.Service, log logger.Logger) error {
	var payload json.RawMessage
	if *sendData != "" {
		if !json.Valid([]byte(*sendData)) {
			return fmt.Errorf("-payload must be valid JSON")
		}
		payload = json.RawMessage(*sendData)
	}

	s := &sig.Signal{
		Type:    *sendType,
		Payload: payload,
		SentAt:  time.Now(),
	}
	if err := svc.Send(ctx, s); err != nil {
		return err
	}
	log.Info("Signal published", "type", s.Type)
	return nil
}

func runTail(ctx context.Context, svc *sig.Service, log logger.Logger) error {
	var sources []sig.Source
	for _, id := range strings.Split(*tailTasks, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		sources = append(sources, sig.TaskIdentity(id))
	}
	if len(sources) == 0 {
		return fmt.Errorf("-tail needs at least one task id")
	}

	log.Info("Tailing signals", "tasks", *tailTasks, "window", *tailWindow)
	for {
		if ctx.Err() != nil {
			return nil
		}
		deliveries, err := svc.Receive(ctx, sources, *tailWindow)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, d := range deliveries {
			log.Info("Signal received",
				"source", d.Source.String(),
				"type", d.Signal.Type,
				"payload", string(d.Signal.Payload),
			)
		}
	}
}

func printVersion() {
	fmt.Printf("sigwire %s\n", version.Version)
	for k, v := range version.Info() {
		fmt.Printf("  %s: %s\n", k, v)
	}
}

func printHelp() {
	fmt.Println("sigwire - signal delivery over append-only streams")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sigwire [flags] -send <type> [-payload <json>] -task <id>")
	fmt.Println("  sigwire [flags] -tail <task1,task2,...>")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
