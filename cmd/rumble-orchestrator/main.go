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
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/engine"
	rhttp "github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/http"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/orchestrator"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/producer"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/pubsub"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/recovery"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/repo"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/settlement"
	sharedcache "github.com/BLE77/lobsta-fights-sub000/internal/shared/cache"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/config"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/db"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/kafka"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/logger"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/metrics"
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
	orchCfg, recCfg, err := engine.ConfigFrom(cfg.Rumble)
	if err != nil {
		log.Fatal("invalid rumble config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	st := repo.NewPostgres(pg)
	if err := st.Migrate(ctx); err != nil {
		log.Fatal("postgres migrate", zap.Error(err))
	}

	// Redis
	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Kafka writer (topic rumble_events, chave = round id)
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRumbleEvents)
	defer writer.Close()

	m := metrics.NewRumble(prometheus.DefaultRegisterer)

	publisher := producer.NewKafkaPublisher(writer, log)
	publisher.OnPublished = m.Published
	broadcaster := pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel)
	slotCache := cache.NewSlotCache(redisClient, cfg.Rumble.SnapshotTTL)

	deps := orchestrator.Deps{
		Log:   log,
		Store: st,
		Listeners: []orchestrator.Listener{
			orchestrator.SinkListener{Sink: publisher},
			orchestrator.SinkListener{Sink: broadcaster},
		},
		Hooks: orchestrator.Hooks{
			OnTick:          m.Tick,
			OnTurn:          m.Turn,
			OnBet:           m.Bet,
			OnPayout:        m.Payout,
			OnListenerError: m.ListenerError,
			OnStoreError:    m.StoreError,
			OnSlotStates:    m.SlotStates,
		},
	}
	if cfg.Rumble.SettlementURL != "" {
		deps.Settlement = settlement.New(cfg.Rumble.SettlementURL)
		log.Info("settlement authority enabled", zap.String("url", cfg.Rumble.SettlementURL))
	}

	orch, err := orchestrator.New(orchCfg, deps)
	if err != nil {
		log.Fatal("orchestrator init", zap.Error(err))
	}
	defer orch.Close()

	rec := recovery.New(recCfg, log, st, orch, nil)
	eng := engine.New(log, orch, rec)
	eng.OnRecovery = func(res recovery.Result) { m.RecoveryErrors(len(res.Errors)) }
	eng.AfterTick = func(ctx context.Context) {
		if err := slotCache.StoreSnapshot(ctx, orch.Snapshot()); err != nil {
			log.Warn("slot snapshot cache failed", zap.Error(err))
		}
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	)

	// HTTP público
	api := rhttp.NewServer(log, orch, eng)
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("rumble-orchestrator listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server failed", zap.Error(err))
			cancel()
		}
	}()

	if err := eng.Run(ctx, cfg.Rumble.TickInterval); err != nil && ctx.Err() == nil {
		log.Error("engine stopped with error", zap.Error(err))
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	orch.Flush()
	log.Info("rumble-orchestrator stopped")
}
