package authority

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/combat"
	settledto "github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/settlement/dto"
)

// Round é o que a autoridade simulada sabe de uma rodada.
type Round struct {
	RoundID         string             `json:"roundId"`
	SlotIndex       int                `json:"slotIndex"`
	Fighters        []string           `json:"fighters"`
	BettingDeadline time.Time          `json:"bettingDeadline"`
	WinnerID        string             `json:"winnerId,omitempty"`
	Placements      []combat.Placement `json:"placements,omitempty"`
	PayoutSettled   bool               `json:"payoutSettled"`
}

type reply struct {
	status int
	body   any
}

// Server simula a autoridade de liquidação para ambientes locais: abre a
// janela de apostas com prazo próprio, valida resultado e payout e responde
// repetições pela Idempotency-Key.
type Server struct {
	Log           *zap.Logger
	BettingWindow time.Duration
	FailPercent   int // 0..100, respostas 503 simuladas

	OnRequest func(op, outcome string) // métricas

	now func() time.Time
	rnd *rand.Rand

	mu      sync.Mutex
	rounds  map[string]*Round
	replies map[string]reply
}

func NewServer(log *zap.Logger, window time.Duration) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	seed := uint64(time.Now().UnixNano())
	return &Server{
		Log:           log,
		BettingWindow: window,
		now:           time.Now,
		rnd:           rand.New(rand.NewPCG(seed, seed>>13|1)),
		rounds:        map[string]*Round{},
		replies:       map[string]reply{},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/rounds", s.openRound)
	r.Get("/rounds/{id}", s.getRound)
	r.Post("/rounds/{id}/result", s.submitResult)
	r.Post("/rounds/{id}/payout", s.submitPayout)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	if v == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errBody(msg string) map[string]string { return map[string]string{"error": msg} }

// handle aplica a injeção de falha e o cache de idempotência em volta de fn.
// Só respostas 2xx ficam guardadas; erros podem ser repetidos.
func (s *Server) handle(w http.ResponseWriter, r *http.Request, op string, fn func() reply) {
	key := r.Header.Get("Idempotency-Key")

	s.mu.Lock()
	if key != "" {
		if prev, ok := s.replies[key]; ok {
			s.mu.Unlock()
			s.count(op, "replay")
			writeJSON(w, prev.status, prev.body)
			return
		}
	}
	if s.FailPercent > 0 && s.rnd.IntN(100) < s.FailPercent {
		s.mu.Unlock()
		s.count(op, "unavailable")
		writeJSON(w, http.StatusServiceUnavailable, errBody("settlement_unavailable_mock"))
		return
	}
	out := fn()
	if key != "" && out.status < 300 {
		s.replies[key] = out
	}
	s.mu.Unlock()

	outcome := "ok"
	if out.status >= 300 {
		outcome = "rejected"
	}
	s.count(op, outcome)
	writeJSON(w, out.status, out.body)
}

func (s *Server) count(op, outcome string) {
	if s.OnRequest != nil {
		s.OnRequest(op, outcome)
	}
}

func (s *Server) openRound(w http.ResponseWriter, r *http.Request) {
	var req settledto.OpenRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("bad json"))
		return
	}
	s.handle(w, r, "open", func() reply {
		if req.RoundID == "" || len(req.Fighters) < 2 {
			return reply{http.StatusBadRequest, errBody("roundId and at least 2 fighters required")}
		}
		if _, exists := s.rounds[req.RoundID]; exists {
			return reply{http.StatusConflict, errBody("round already open")}
		}
		rd := &Round{
			RoundID:         req.RoundID,
			SlotIndex:       req.SlotIndex,
			Fighters:        append([]string(nil), req.Fighters...),
			BettingDeadline: s.now().UTC().Add(s.BettingWindow),
		}
		s.rounds[req.RoundID] = rd
		s.Log.Info("round opened", zap.String("round_id", rd.RoundID), zap.Time("deadline", rd.BettingDeadline))
		return reply{http.StatusCreated, settledto.OpenRoundResponse{BettingDeadline: rd.BettingDeadline}}
	})
}

func (s *Server) getRound(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rd, ok := s.rounds[chi.URLParam(r, "id")]
	var out Round
	if ok {
		out = *rd
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, errBody("round not found"))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) submitResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req settledto.ResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("bad json"))
		return
	}
	s.handle(w, r, "result", func() reply {
		rd, ok := s.rounds[id]
		if !ok {
			return reply{http.StatusNotFound, errBody("round not found")}
		}
		if req.RoundID != id {
			return reply{http.StatusBadRequest, errBody("round id mismatch")}
		}
		res := combat.Result{WinnerID: req.WinnerID, Placements: req.Placements}
		if err := res.Validate(); err != nil {
			return reply{http.StatusBadRequest, errBody(err.Error())}
		}
		for _, p := range req.Placements {
			if !slices.Contains(rd.Fighters, p.FighterID) {
				return reply{http.StatusBadRequest, errBody("fighter not in round: " + p.FighterID)}
			}
		}
		if rd.WinnerID != "" {
			return reply{http.StatusConflict, errBody("result already reported")}
		}
		rd.WinnerID = req.WinnerID
		rd.Placements = append([]combat.Placement(nil), req.Placements...)
		return reply{status: http.StatusNoContent}
	})
}

func (s *Server) submitPayout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req settledto.PayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("bad json"))
		return
	}
	s.handle(w, r, "payout", func() reply {
		rd, ok := s.rounds[id]
		if !ok {
			return reply{http.StatusNotFound, errBody("round not found")}
		}
		switch {
		case rd.WinnerID == "":
			return reply{http.StatusConflict, errBody("result not reported")}
		case rd.PayoutSettled:
			return reply{http.StatusConflict, errBody("payout already settled")}
		case req.Payout.RoundID != id || req.Payout.WinnerID != rd.WinnerID:
			return reply{http.StatusBadRequest, errBody("payout does not match reported result")}
		}
		rd.PayoutSettled = true
		s.Log.Info("payout settled", zap.String("round_id", id), zap.Int64("net_pool", req.Payout.NetPool))
		return reply{status: http.StatusNoContent}
	})
}
