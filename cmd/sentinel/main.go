package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"dispatch-monitor/sentinel/internal/alerting"
	"dispatch-monitor/sentinel/internal/auth"
	"dispatch-monitor/sentinel/internal/config"
	"dispatch-monitor/sentinel/internal/notify"
	"dispatch-monitor/sentinel/internal/poller"
	"dispatch-monitor/sentinel/internal/snapshot"
	"dispatch-monitor/sentinel/internal/source"
	"dispatch-monitor/sentinel/internal/store"
	transport "dispatch-monitor/sentinel/internal/transport/http"
	"dispatch-monitor/sentinel/internal/verify"
)

func main() {
	// No .env file is fine; the system environment is enough.
	_ = godotenv.Load()

	zlog, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zlog.Sync()
	log := zlog.Sugar()

	cfg := config.Load()
	ctx := context.Background()

	history, err := store.NewHistoryStore(ctx, cfg)
	if err != nil {
		log.Fatalw("history store init failed", "error", err)
	}
	defer history.Close()

	redisStore, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		log.Fatalw("redis store init failed", "error", err)
	}
	defer redisStore.Close()

	snapshots := snapshot.New(cfg.CacheTTL())
	alertStore := alerting.NewStore()
	engine := alerting.NewEngine(alertStore, alerting.DefaultRules(alerting.RuleParams{
		StalledArrival:          cfg.StalledArrival(),
		ProximityThresholdMiles: cfg.ProximityThresholdMiles,
	}), log)
	verifier := verify.New(cfg.ProximityThresholdMiles)
	bus := notify.NewBus()

	jobs := source.NewHTTPJobSource(cfg.JobSourceURL, cfg.FetchTimeout())
	telemetry := source.NewHTTPTelemetrySource(cfg.TelemetrySourceURL, cfg.FetchTimeout())

	p := poller.New(jobs, telemetry, verifier, engine, snapshots, bus, poller.Options{
		Interval:     cfg.PollInterval(),
		FetchTimeout: cfg.FetchTimeout(),
		History:      history,
		Live:         redisStore,
	}, log)

	// Forward alert lifecycle events to Redis pub/sub for the serving layer.
	redisEvents, cancelRedisSub := bus.Subscribe(256)
	go func() {
		for ev := range redisEvents {
			if err := redisStore.PublishAlertEvent(ctx, ev); err != nil {
				log.Warnw("alert event publish failed", "error", err)
			}
		}
	}()

	authenticator := auth.NewAuthenticator(cfg, redisStore)
	hub := transport.NewHub(bus, log)
	server := transport.NewServer(alertStore, p, bus, log)

	mux := http.NewServeMux()
	server.Routes(mux, transport.NewAuthMiddleware(authenticator), hub)

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: mux,
	}

	p.Start()
	go func() {
		log.Infow("http server listening", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("http server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Infow("shutting down")
	p.Stop()
	cancelRedisSub()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http shutdown error", "error", err)
	}
}
