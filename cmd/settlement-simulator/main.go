package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/settlement-simulator/authority"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/config"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/logger"
)

// Métricas Prometheus das chamadas recebidas
var requests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "settlement_sim_requests_total",
	Help: "Chamadas à autoridade simulada por operação e resultado",
}, []string{"op", "outcome"})

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(requests)

	s := authority.NewServer(log, cfg.Rumble.BettingDuration)
	if v := os.Getenv("SETTLEMENT_FAIL_PERCENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			log.Fatal("SETTLEMENT_FAIL_PERCENT must be 0..100", zap.String("value", v))
		}
		s.FailPercent = n
	}
	s.OnRequest = func(op, outcome string) { requests.WithLabelValues(op, outcome).Inc() }

	// ==== MUX DE MÉTRICAS (/healthz, /metrics)
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())
	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("settlement simulator (metrics) running", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("settlement simulator (public) running",
		zap.String("addr", publicAddr),
		zap.Duration("betting_window", s.BettingWindow),
		zap.Int("fail_percent", s.FailPercent),
	)
	if err := http.ListenAndServe(publicAddr, s.Router()); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
