package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/resource-governor/internal/config"
	"github.com/t77yq/resource-governor/internal/governor"
	"github.com/t77yq/resource-governor/internal/model"
	"github.com/t77yq/resource-governor/internal/monitor"
	"github.com/t77yq/resource-governor/internal/storage"
	"github.com/t77yq/resource-governor/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("Config file not found, using defaults", zap.String("path", *configPath))
			cfg = config.Default()
		} else {
			logger.Fatal("Failed to load config", zap.Error(err))
		}
	}

	// Create telemetry source
	source := telemetry.NewSystemSource(cfg.Telemetry.WorkerBudget, logger)

	// Create optional execution history store
	var history storage.ExecutionHistory
	if cfg.History.Enabled {
		store, err := storage.NewSQLiteExecutionHistory(logger, cfg.History.Path)
		if err != nil {
			logger.Fatal("Failed to create execution history store", zap.Error(err))
		}
		defer store.Close()
		history = store
	}

	// Create governor
	gov, err := governor.New(governor.Options{
		Source:      source,
		Breaker:     cfg.BreakerConfig(),
		CPUBands:    cfg.CPUBands(),
		MemoryBands: cfg.MemoryBands(),
		History:     history,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create governor", zap.Error(err))
	}

	// Register allocation policies and degradation strategies from config
	policies, err := cfg.AllocationPolicies()
	if err != nil {
		logger.Fatal("Invalid allocation policies", zap.Error(err))
	}
	for _, policy := range policies {
		if err := gov.RegisterPolicy(policy); err != nil {
			logger.Fatal("Failed to register policy",
				zap.String("executor_id", policy.ExecutorID),
				zap.Error(err))
		}
	}

	strategies, err := cfg.DegradationStrategies()
	if err != nil {
		logger.Fatal("Invalid degradation strategies", zap.Error(err))
	}
	for _, strategy := range strategies {
		if err := gov.RegisterStrategy(strategy); err != nil {
			logger.Fatal("Failed to register strategy",
				zap.String("name", strategy.Name),
				zap.Error(err))
		}
	}

	// Create alert manager with a log channel, plus JetStream when enabled
	alerts := monitor.NewAlertManager(monitor.AlertManagerConfig{
		Cooldown:        cfg.Alerts.Cooldown,
		MemoryCeilingMB: cfg.Alerts.MemoryCeilingMB,
	}, logger)
	alerts.RegisterChannel("log", monitor.NewLogChannel(logger))

	if cfg.NATS.Enabled {
		nc := connectNATS(cfg, logger)
		defer nc.Close()

		js, err := nc.JetStream()
		if err != nil {
			logger.Fatal("Failed to create JetStream context", zap.Error(err))
		}

		channel, err := monitor.NewJetStreamChannel(js)
		if err != nil {
			logger.Fatal("Failed to create JetStream alert channel", zap.Error(err))
		}
		alerts.RegisterChannel("jetstream", channel)
	}

	gov.AddEventHandler(alerts)

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Start the pressure assessment loop
	pressureMonitor := monitor.NewPressureMonitor(gov, cfg.Monitor.AssessInterval, logger)
	if err := pressureMonitor.Start(ctx); err != nil {
		logger.Fatal("Failed to start pressure monitor", zap.Error(err))
	}
	defer pressureMonitor.Stop()

	// Drive simulated executor traffic through the lifecycle API
	executorIDs := make([]string, 0, len(policies))
	for _, policy := range policies {
		executorIDs = append(executorIDs, policy.ExecutorID)
	}
	if len(executorIDs) == 0 {
		executorIDs = []string{"entity-extractor", "pattern-matcher", "report-builder"}
	}
	for _, id := range executorIDs {
		go runExecutor(ctx, gov, id, logger)
	}

	// Periodically log governor status and the alert summary
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status := gov.Status()
				data, err := json.Marshal(status)
				if err != nil {
					logger.Error("Failed to marshal status", zap.Error(err))
					continue
				}
				logger.Info("Governor status", zap.ByteString("status", data))

				summary := alerts.Summary()
				logger.Info("Alert summary",
					zap.Int("last_hour", countAll(summary.LastHour)),
					zap.Int("last_24h", countAll(summary.Last24Hours)),
					zap.Int("all_time", countAll(summary.AllTime)))
			}
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Server shutting down gracefully")
}

// connectNATS connects with retries, mirroring alert delivery expectations:
// alerting is best-effort but startup should not give up on a slow broker.
func connectNATS(cfg *config.Config, logger *zap.Logger) *nats.Conn {
	opts := []nats.Option{
		nats.Name(cfg.App.Name),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	var nc *nats.Conn
	var err error
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(cfg.NATS.URL, opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}

	logger.Info("Connected to NATS successfully", zap.String("url", nc.ConnectedUrl()))
	return nc
}

// runExecutor simulates one executor repeatedly going through the full
// lifecycle: gate, admit, work under the granted budget, report the outcome.
func runExecutor(ctx context.Context, gov *governor.Governor, id string, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(500+rand.Intn(1500)) * time.Millisecond):
		}

		ok, reason := gov.CanExecute(id)
		if !ok {
			logger.Info("Executor deferred",
				zap.String("executor_id", id),
				zap.String("reason", reason))
			continue
		}

		allocation, err := gov.StartExecution(id)
		if err != nil {
			logger.Error("Failed to start execution",
				zap.String("executor_id", id),
				zap.Error(err))
			continue
		}

		degradation := gov.DegradationConfig(id)
		start := time.Now()

		// Simulate work shaped by the granted budget
		work := time.Duration(float64(100+rand.Intn(400))*degradation.EntityLimitFactor) * time.Millisecond
		select {
		case <-ctx.Done():
			gov.EndExecution(context.Background(), id, false, time.Since(start), 0)
			return
		case <-time.After(work):
		}

		success := rand.Float64() > 0.1
		memoryMB := allocation.MaxMemoryMB * rand.Float64()
		gov.EndExecution(ctx, id, success, time.Since(start), memoryMB)
	}
}

func countAll(counts map[model.AlertSeverity]int) int {
	total := 0
	for _, count := range counts {
		total += count
	}
	return total
}
