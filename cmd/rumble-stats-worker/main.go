package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/shared/config"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/db"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/kafka"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/logger"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/metrics"
	"github.com/BLE77/lobsta-fights-sub000/internal/stats-worker/consumer"
	"github.com/BLE77/lobsta-fights-sub000/internal/stats-worker/repository"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	repo := repository.NewPostgresRepo(pg)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatal("postgres migrate", zap.Error(err))
	}

	// consumer group próprio: lê o mesmo tópico que outros consumidores sem dividir partições
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRumbleEvents, "rumble-stats-worker")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRumbleEventsDLQ)
	defer dlq.Close()

	// Métricas do worker
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "rumble_stats_messages_consumed_total", Help: "mensagens consumidas"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rumble_stats_fighters_updated_total", Help: "históricos de lutador atualizados por evento"}, []string{"type"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rumble_stats_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, applied, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Repo:       repo,
		DLQ:        dlq,
		OnConsumed: consumed.Inc,
		OnApplied:  func(typ string, n int) { applied.WithLabelValues(typ).Add(float64(n)) },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
	)
	defer metricsSrv.Close()

	log.Info("rumble-stats-worker started", zap.String("topic", cfg.TopicRumbleEvents))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("rumble-stats-worker stopped")
}
