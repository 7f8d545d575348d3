package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/dto"
)

// SnapshotReader é a leitura da foto que o motor grava no Redis.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, dst any) (bool, error)
	GetSlot(ctx context.Context, index int, dst any) (bool, error)
}

// API expõe a leitura dos slots para espectadores e o endpoint WebSocket.
// Cache: foto dos slots gravada pelo rumble-orchestrator
// WS: handler do hub de espectadores
type API struct {
	Log   *zap.Logger
	Cache SnapshotReader
	WS    http.HandlerFunc
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/v1/slots", a.listSlots)
	r.Get("/v1/slots/{index}", a.getSlot)
	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) listSlots(w http.ResponseWriter, r *http.Request) {
	var snap json.RawMessage
	ok, err := a.Cache.GetSnapshot(r.Context(), &snap)
	if err != nil {
		a.Log.Warn("read snapshot", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if !ok {
		// motor parado ou foto expirada
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "snapshot unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) getSlot(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid slot index"})
		return
	}
	var slot json.RawMessage
	ok, err := a.Cache.GetSlot(r.Context(), i, &slot)
	if err != nil {
		a.Log.Warn("read slot", zap.Int("slot", i), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "slot not found"})
		return
	}
	writeJSON(w, http.StatusOK, slot)
}
