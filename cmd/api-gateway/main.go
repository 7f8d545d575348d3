package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/shared/config"
	"github.com/BLE77/lobsta-fights-sub000/internal/shared/logger"
)

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, err
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newMux monta as rotas públicas:
// /api/rumble/*   -> rumble-orchestrator (apostas, fila, admin)
// /api/spectate/* -> spectator-service (leitura dos slots e /ws)
func newMux(rumbleURL, spectatorURL string) (*http.ServeMux, error) {
	rumble, err := rp(rumbleURL)
	if err != nil {
		return nil, err
	}
	spectate, err := rp(spectatorURL)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/rumble/", http.StripPrefix("/api/rumble", rumble))
	mux.Handle("/api/spectate/", http.StripPrefix("/api/spectate", spectate))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux, nil
}

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer log.Sync()

	mux, err := newMux(
		envOr("RUMBLE_URL", "http://localhost:8090"),
		envOr("SPECTATOR_URL", "http://localhost:8091"),
	)
	if err != nil {
		log.Fatal("gateway targets", zap.Error(err))
	}

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, withCORS(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
