// Command quotad serves the quota HTTP API over an in-memory store seeded
// from a YAML file.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/quota"
	"github.com/xraph/quota/api"
	"github.com/xraph/quota/audit_hook"
	"github.com/xraph/quota/gateway"
	"github.com/xraph/quota/identity"
	"github.com/xraph/quota/lock"
	"github.com/xraph/quota/notify"
	"github.com/xraph/quota/observability"
	"github.com/xraph/quota/scheduler"
	"github.com/xraph/quota/store/memory"
)

func main() {
	configPath := flag.String("config", "quota.yaml", "Path to the YAML configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("quotad exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	// .env is optional
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env, falling back to environment variables")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	secrets := loadSecrets()
	if secrets.JWTSecret == "" {
		return errors.New("QUOTA_JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []quota.Option{
		quota.WithLogger(logger),
		quota.WithLockTimeout(cfg.LockTimeout),
		quota.WithPalette(cfg.Palette...),
		quota.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		quota.WithPlugin(audithook.New(audithook.SlogRecorder(logger), audithook.WithLogger(logger))),
	}

	if secrets.GatewayKeyID != "" {
		var gwOpts []gateway.ClientOption
		if cfg.Gateway.BaseURL != "" {
			gwOpts = append(gwOpts, gateway.WithBaseURL(cfg.Gateway.BaseURL))
		}
		opts = append(opts, quota.WithGateway(gateway.NewHTTPClient(secrets.GatewayKeyID, secrets.GatewayKeySecret, gwOpts...)))
	} else {
		logger.Warn("no gateway credentials, using the fake gateway")
		opts = append(opts, quota.WithGateway(gateway.NewFake()))
	}

	if secrets.SendGridAPIKey != "" {
		opts = append(opts, quota.WithNotifier(notify.NewSendGrid(secrets.SendGridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress)))
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		opts = append(opts, quota.WithLocker(lock.NewRedis(client, lock.WithLogger(logger))))
	}

	store := memory.New()
	eng := quota.New(store, opts...)
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = eng.Stop() }()

	if err := seed(ctx, eng, cfg); err != nil {
		return err
	}

	sweeper := scheduler.NewSweeper(store,
		scheduler.WithSchedule(cfg.SweepSchedule),
		scheduler.WithLogger(logger),
	)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	handlers := api.New(eng, identity.NewJWT([]byte(secrets.JWTSecret)), api.WithLogger(logger))

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
	quotaRoutes := router.PathPrefix(cfg.BasePath).Subrouter()
	quotaRoutes.Use(handlers.Authenticate)
	handlers.RegisterRoutes(quotaRoutes)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("quotad listening", "addr", cfg.Listen, "base_path", cfg.BasePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
