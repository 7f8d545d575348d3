package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/cache"
	sharedcache "github.com/BLE77/lobsta-fights-sub000/internal/shared/cache"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/config"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/logger"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/metrics"
	shttp "github.com/BLE77/lobsta-fights-sub000/internal/spectator-service/http"
	"github.com/BLE77/lobsta-fights-sub000/internal/spectator-service/ws"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	// Métricas do fan-out
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "spectator_messages_delivered_total", Help: "mensagens entregues por tipo de evento"}, []string{"type"})
	prometheus.MustRegister(delivered)

	// TODO: restringir origens quando o front tiver domínio fixo
	hub := ws.NewHub(log, cfg.Rumble.Slots, func(r *http.Request) bool { return true })
	hub.OnBroadcast = func(typ string, n int) { delivered.WithLabelValues(typ).Add(float64(n)) }

	if err := ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log); err != nil {
		log.Fatal("redis subscribe", zap.Error(err))
	}
	log.Info("spectator subscriber ready", zap.String("channel", cfg.RedisPubSubChannel))

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log,
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	)

	api := &shttp.API{
		Log:   log,
		Cache: cache.NewSlotCache(redisClient, cfg.Rumble.SnapshotTTL),
		WS:    hub.HandleWS,
	}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("spectator-service listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("http server failed", zap.Error(err))
	}
	log.Info("spectator-service stopped")
}
