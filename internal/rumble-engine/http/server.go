package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/betting"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/dto"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/orchestrator"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/queue"
)

// Engine é o que a API usa do orquestrador.
type Engine interface {
	PlaceBet(ctx context.Context, slotIndex int, bettorID, fighterID string, gross int64) (betting.Bet, error)
	JoinQueue(ctx context.Context, fighterID string, autoRequeue bool) (queue.Entry, error)
	LeaveQueue(ctx context.Context, fighterID string) bool
	ArmBettingWindow(ctx context.Context, slotIndex int, roundID string, deadline time.Time) error
	AbortBettingSlot(ctx context.Context, slotIndex int) ([]string, error)
	Snapshot() orchestrator.Snapshot
}

type Ticker interface {
	Tick(ctx context.Context)
}

// Server expõe apostas, fila, leitura dos slots e o gatilho de tick.
type Server struct {
	log    *zap.Logger
	engine Engine
	ticker Ticker
}

func NewServer(log *zap.Logger, e Engine, t Ticker) *Server {
	return &Server{log: log, engine: e, ticker: t}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/v1/slots", s.listSlots)
	r.Get("/v1/slots/{index}", s.getSlot)
	r.Post("/v1/slots/{index}/bets", s.placeBet)

	r.Get("/v1/queue", s.listQueue)
	r.Post("/v1/queue", s.joinQueue)
	r.Delete("/v1/queue/{fighterId}", s.leaveQueue)

	r.Post("/v1/tick", s.tick) // gatilho externo (cron/heartbeat)

	r.Route("/v1/admin", func(r chi.Router) {
		r.Post("/slots/{index}/abort", s.abortSlot)
		r.Post("/slots/{index}/arm", s.armWindow)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

// statusFor traduz erros do motor em status HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, queue.ErrInvalidSlot):
		return http.StatusNotFound
	case errors.Is(err, betting.ErrUnknownFighter),
		errors.Is(err, betting.ErrInvalidAmount),
		errors.Is(err, betting.ErrMissingBettor),
		errors.Is(err, queue.ErrMissingFighter):
		return http.StatusBadRequest
	case errors.Is(err, betting.ErrBettingClosed),
		errors.Is(err, queue.ErrDuplicateEntry),
		errors.Is(err, queue.ErrSlotNotBetting),
		errors.Is(err, queue.ErrRoundMismatch):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func slotIndex(r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	return i, err == nil && i >= 0
}

func (s *Server) listSlots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.NewSlotsResponse(s.engine.Snapshot()))
}

func (s *Server) getSlot(w http.ResponseWriter, r *http.Request) {
	i, ok := slotIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid slot index")
		return
	}
	snap := s.engine.Snapshot()
	if i >= len(snap.Slots) {
		writeError(w, http.StatusNotFound, "slot not found")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewSlotResponse(snap.Slots[i]))
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	i, ok := slotIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid slot index")
		return
	}
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	amount := req.Lamports
	if amount == 0 && req.AmountSOL != "" {
		v, err := dto.ParseUnits(req.AmountSOL)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		amount = v
	}

	bet, err := s.engine.PlaceBet(r.Context(), i, req.BettorID, req.FighterID, amount)
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			s.log.Warn("place bet failed", zap.Int("slot", i), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewBetResponse(bet))
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.NewQueueResponse(s.engine.Snapshot().Queue))
}

func (s *Server) joinQueue(w http.ResponseWriter, r *http.Request) {
	var req dto.JoinQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	e, err := s.engine.JoinQueue(r.Context(), req.FighterID, req.AutoRequeue)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) leaveQueue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fighterId")
	if !s.engine.LeaveQueue(r.Context(), id) {
		writeError(w, http.StatusNotFound, "fighter not queued")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) tick(w http.ResponseWriter, r *http.Request) {
	s.ticker.Tick(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) abortSlot(w http.ResponseWriter, r *http.Request) {
	i, ok := slotIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid slot index")
		return
	}
	requeued, err := s.engine.AbortBettingSlot(r.Context(), i)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dto.AbortResponse{Requeued: requeued})
}

func (s *Server) armWindow(w http.ResponseWriter, r *http.Request) {
	i, ok := slotIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid slot index")
		return
	}
	var req dto.ArmWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoundID == "" || req.Deadline.IsZero() {
		writeError(w, http.StatusBadRequest, "roundId and deadline required")
		return
	}
	if err := s.engine.ArmBettingWindow(r.Context(), i, req.RoundID, req.Deadline); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
