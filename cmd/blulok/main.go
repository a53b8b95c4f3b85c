// Command blulok runs the BluLok core service: route pass issuance,
// key distribution reconciliation, and command dispatch toward
// facility gateways.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blulok/blulok-core/internal/access"
	"github.com/blulok/blulok-core/internal/api"
	"github.com/blulok/blulok-core/internal/denylist"
	"github.com/blulok/blulok-core/internal/device"
	"github.com/blulok/blulok-core/internal/dispatch"
	"github.com/blulok/blulok-core/internal/distribution"
	"github.com/blulok/blulok-core/internal/gateway"
	"github.com/blulok/blulok-core/internal/infrastructure/config"
	"github.com/blulok/blulok-core/internal/infrastructure/database"
	"github.com/blulok/blulok-core/internal/infrastructure/influxdb"
	"github.com/blulok/blulok-core/internal/infrastructure/logging"
	"github.com/blulok/blulok-core/internal/infrastructure/mqtt"
	"github.com/blulok/blulok-core/internal/routepass"
	"github.com/blulok/blulok-core/internal/signing"

	_ "github.com/blulok/blulok-core/migrations"
)

// version is stamped at build time via ldflags.
var version = "dev"

// shutdownTimeout bounds the graceful teardown of the HTTP server.
const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "blulok: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("starting blulok core", "config", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}
	defer mqttClient.Close()
	mqttClient.SetLogger(logger)

	var telemetry *influxdb.Client
	switch client, err := influxdb.Connect(cfg.InfluxDB); {
	case err == nil:
		telemetry = client
		defer telemetry.Close()
	case errors.Is(err, influxdb.ErrDisabled):
		logger.Info("influxdb disabled, transition history off")
	default:
		return fmt.Errorf("connecting to influxdb: %w", err)
	}

	signer, err := signing.NewSigner(cfg.Signing.OpsKeySeed)
	if err != nil {
		return fmt.Errorf("initialising signer: %w", err)
	}

	deviceRepo := device.NewSQLiteRepository(db.DB)
	accessRepo := access.NewSQLiteRepository(db.DB)
	distRepo := distribution.NewSQLiteRepository(db.DB)
	passRepo := routepass.NewSQLiteRepository(db.DB)
	queue := dispatch.NewSQLiteQueue(db.DB)

	var drainTelemetry dispatch.Telemetry
	var workerTelemetry distribution.Telemetry
	var issueTelemetry routepass.Telemetry
	if telemetry != nil {
		drainTelemetry = telemetry
		workerTelemetry = telemetry
		issueTelemetry = telemetry
	}

	passTTL := time.Duration(cfg.Signing.RoutePassTTL) * time.Minute
	issuer := routepass.NewIssuer(signer, accessRepo, deviceRepo, passRepo, passTTL, issueTelemetry)

	qos := byte(cfg.MQTT.QoS)

	gatewaySvc := gateway.NewService(mqttClient, accessRepo, qos, gateway.DefaultAckTimeout, logger)
	if err := gatewaySvc.Start(); err != nil {
		return fmt.Errorf("starting gateway service: %w", err)
	}

	drainer := dispatch.NewDrainer(queue, mqttClient, qos, logger, drainTelemetry)
	engine := distribution.NewEngine(distRepo, deviceRepo, accessRepo, queue, logger)
	worker := distribution.NewWorker(distRepo, deviceRepo, gatewaySvc, logger, workerTelemetry)

	denylistBuilder := denylist.NewBuilder(signer)
	denylistOptimizer := denylist.NewOptimizer(passRepo, logger)
	revoker := denylist.NewDispatcher(denylistBuilder, denylistOptimizer, accessRepo, mqttClient, qos, logger)

	checks := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}
	if telemetry != nil {
		checks["influxdb"] = telemetry
	}
	server := api.NewServer(cfg.API, issuer, engine, revoker, checks, logger)

	go runWorker(ctx, logger, cfg.GetWorkerInterval(), "distribution worker", func() error {
		_, err := worker.ProcessPending(ctx)
		return err
	})
	go runWorker(ctx, logger, cfg.GetDrainInterval(), "dispatch drainer", func() error {
		_, err := drainer.Drain(ctx)
		return err
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	return nil
}

// runWorker drives a periodic task until the context ends. Task errors
// are logged; the loop keeps going.
func runWorker(ctx context.Context, logger *logging.Logger, interval time.Duration, name string, task func() error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := task(); err != nil {
				logger.Error("periodic task failed", "task", name, "error", err)
			}
		}
	}
}
