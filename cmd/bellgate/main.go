package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	apihttp "ozzus/bell-gateway/internal/api/http"
	"ozzus/bell-gateway/internal/backend"
	"ozzus/bell-gateway/internal/broadcast"
	"ozzus/bell-gateway/internal/checks"
	"ozzus/bell-gateway/internal/config"
	"ozzus/bell-gateway/internal/lib/logger/sl"
	"ozzus/bell-gateway/internal/lib/logger/slogpretty"
	"ozzus/bell-gateway/internal/repository"
	"ozzus/bell-gateway/internal/repository/kafka"
	"ozzus/bell-gateway/internal/scheduler"
	"ozzus/bell-gateway/internal/service"
)

var version = "dev"

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	// Загружаем конфигурацию
	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log := setupLogger(cfg.Env)

	log.Info("starting bell gateway",
		"env", cfg.Env,
		"instance", cfg.Instance,
		"config", loader.ConfigFile(),
	)

	backendClient, err := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout)
	if err != nil {
		log.Error("failed to initialize backend client", sl.Err(err))
		os.Exit(1)
	}

	events, closeEvents := setupEvents(cfg, log)
	defer closeEvents()

	bells := service.NewBellService(
		broadcast.NewTrigger(log),
		events,
		service.Config{
			Endpoints: cfg.Endpoints(),
			Timeout:   cfg.Bells.Timeout,
		},
		log,
	)

	if loader.ConfigFile() != "" {
		loader.Watch(func(next *config.Config) {
			log.Info("config file changed, reloading bell endpoints")
			bells.Apply(service.Config{
				Endpoints: next.Endpoints(),
				Timeout:   next.Bells.Timeout,
			})
		}, func(err error) {
			log.Error("ignoring invalid config change", sl.Err(err))
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	var sched *scheduler.Service
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(scheduler.Config{
			Spec:     cfg.Scheduler.Spec,
			Grace:    cfg.Scheduler.Grace,
			Timezone: cfg.Scheduler.Timezone,
		}, backendClient, bells, log)

		if err := sched.Start(ctx); err != nil {
			log.Error("failed to start scheduler", sl.Err(err))
			os.Exit(1)
		}
	}

	if cfg.Kafka.CommandsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.CommandsTopic, cfg.Kafka.GroupID, log)
		defer consumer.Close()

		checkCtx, checkCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := consumer.CheckConnection(checkCtx); err != nil {
			log.Warn("kafka commands topic not reachable yet", sl.Err(err))
		}
		checkCancel()

		listener := service.NewCommandListener(consumer, bells, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Run(ctx); err != nil {
				log.Error("command listener failed", sl.Err(err))
			}
		}()
	}

	if cfg.Env == envProd {
		gin.SetMode(gin.ReleaseMode)
	}

	router := apihttp.NewRouter(apihttp.RouterOptions{
		Logger:         log,
		Health:         apihttp.NewHealthController(bells, backendClient, cfg.Instance, version),
		ManualControl:  apihttp.NewManualControlController(bells, log),
		Dashboard:      apihttp.NewDashboardController(backendClient, log),
		Bells:          apihttp.NewBellsController(bells, checks.NewPingChecker(cfg.Bells.Timeout, cfg.Bells.PingCount, cfg.Bells.Privileged)),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TriggerLimiter: rate.NewLimiter(rate.Limit(cfg.Server.TriggerRate), cfg.Server.TriggerBurst),
		Metrics:        true,
	})

	httpServer := &nethttp.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("starting http server", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Error("HTTP server failed", sl.Err(err))
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info("bell gateway started and ready",
		"port", cfg.Server.Port,
		"bells", len(cfg.Bells.Endpoints),
		"scheduler", cfg.Scheduler.Enabled,
	)

	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("shutting down bell gateway...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", sl.Err(err))
	}

	if sched != nil {
		sched.Stop()
	}

	wg.Wait()
	bells.Wait()
	log.Info("bell gateway stopped gracefully")
}

func setupEvents(cfg *config.Config, log *slog.Logger) (repository.EventRepository, func()) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, ring events are not published")
		return repository.NoopEventRepository{}, func() {}
	}

	log.Info("initializing kafka producer", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)

	return repository.NewKafkaEventRepository(producer, log), func() {
		if err := producer.Close(); err != nil {
			log.Error("failed to close kafka producer", sl.Err(err))
		}
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
