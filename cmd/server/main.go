package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/geocoin/internal/api"
	"github.com/annel0/geocoin/internal/auth"
	"github.com/annel0/geocoin/internal/config"
	"github.com/annel0/geocoin/internal/eventbus"
	"github.com/annel0/geocoin/internal/location"
	"github.com/annel0/geocoin/internal/logging"
	"github.com/annel0/geocoin/internal/observability"
	"github.com/annel0/geocoin/internal/session"
	"github.com/annel0/geocoin/internal/storage"
	"github.com/annel0/geocoin/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (or GEOCOIN_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Printf("⚠️ %v, используется INFO", err)
	}
	logging.LogDir = cfg.Logging.Dir
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	logging.SetLevel(level)

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("🪙 Запуск geocoin: origin=%.6f,%.6f tile=%g radius=%d",
		cfg.Game.OriginLat, cfg.Game.OriginLng, cfg.Game.TileDegrees, cfg.Game.Neighborhood)

	// === TELEMETRY ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry.Enabled, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// === STORAGE ===
	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	// === EVENTS ===
	bus, err := eventbus.Open(cfg.Events)
	if err != nil {
		return fmt.Errorf("eventbus: %w", err)
	}
	defer bus.Close()
	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("Event logging listener not started: %v", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, registry)
	exporter.Start()
	defer exporter.Stop()

	// === LOCATION ===
	var (
		source location.Source
		hub    *location.Hub
	)
	switch cfg.Location.Source {
	case "nats":
		source = location.NewNATSSource(cfg.Location.NATSURL, cfg.Location.NATSSubject)
	default:
		hub = location.NewHub()
		source = hub
	}

	// === SESSION ===
	grid := world.NewGrid(cfg.Game.Origin(), cfg.Game.TileDegrees)
	gen := world.NewGenerator(cfg.Game.SpawnProbability)
	gen.ContentScale = cfg.Game.ContentScale
	gen.ContentSeed = cfg.Game.ContentSeed

	ctrl, err := session.NewController(ctx, session.Config{
		Grid:        grid,
		Generator:   gen,
		Radius:      cfg.Game.Neighborhood,
		Persistence: session.NewPersistence(store, cfg.Game.SessionKey),
		Bus:         bus,
		Location:    source,
		Metrics:     session.NewMetrics(registry),
	})
	if err != nil {
		return err
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = ctrl.Run(ctx)
	}()

	// === REST API ===
	gin.SetMode(gin.ReleaseMode)
	apiCfg := api.Config{
		Port:        fmt.Sprintf(":%d", cfg.Server.RESTPort),
		Game:        ctrl,
		Registry:    registry,
		ServiceName: cfg.Telemetry.ServiceName,
		Logger:      logging.GetServerLogger(),
	}
	if hub != nil {
		apiCfg.Location = hub
	}
	if cfg.Server.AuthSecret != "" {
		signer, err := auth.NewSigner(cfg.Server.AuthSecret, cfg.Server.TokenTTL)
		if err != nil {
			stop()
			<-loopDone
			return err
		}
		apiCfg.Auth = signer
		logging.Info("🔐 API требует Bearer токен")
	}
	restServer := api.NewRestServer(apiCfg)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- restServer.Start()
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost:%d/api/state", cfg.Server.RESTPort)
	logging.Info("   ❤️  Health check: http://localhost:%d/health", cfg.Server.RESTPort)
	logging.Info("   📈 Metrics: http://localhost:%d/metrics", cfg.Server.RESTPort)

	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения, остановка...")
	case err := <-serverErr:
		if err != nil {
			stop()
			<-loopDone
			return err
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}

	stop()
	<-loopDone
	return nil
}
