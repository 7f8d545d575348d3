package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Rumble agrupa as métricas do motor. Os métodos têm a forma dos hooks do
// orquestrador, então o main só repassa method values.
type Rumble struct {
	ticks          prometheus.Counter
	turns          prometheus.Counter
	bets           *prometheus.CounterVec
	payouts        prometheus.Counter
	jackpots       prometheus.Counter
	listenerErrors *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
	recoveryErrors prometheus.Counter
	published      *prometheus.CounterVec
	queueLength    prometheus.Gauge
	slotsByState   *prometheus.GaugeVec
}

func NewRumble(reg prometheus.Registerer) *Rumble {
	m := &Rumble{
		ticks:          prometheus.NewCounter(prometheus.CounterOpts{Name: "rumble_ticks_total", Help: "ticks processados"}),
		turns:          prometheus.NewCounter(prometheus.CounterOpts{Name: "rumble_turns_total", Help: "turnos de combate resolvidos"}),
		bets:           prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rumble_bets_total", Help: "apostas por resultado"}, []string{"result", "reason"}),
		payouts:        prometheus.NewCounter(prometheus.CounterOpts{Name: "rumble_payouts_total", Help: "payouts calculados"}),
		jackpots:       prometheus.NewCounter(prometheus.CounterOpts{Name: "rumble_ichor_showers_total", Help: "jackpots disparados"}),
		listenerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rumble_listener_errors_total", Help: "falhas de listener por evento"}, []string{"event"}),
		storeErrors:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rumble_store_errors_total", Help: "falhas de escrita por operação"}, []string{"op"}),
		recoveryErrors: prometheus.NewCounter(prometheus.CounterOpts{Name: "rumble_recovery_errors_total", Help: "passos de recuperação com erro"}),
		published:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rumble_events_published_total", Help: "eventos publicados no Kafka"}, []string{"type"}),
		queueLength:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "rumble_queue_length", Help: "lutadores na fila"}),
		slotsByState:   prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "rumble_slots", Help: "slots por estado"}, []string{"state"}),
	}
	reg.MustRegister(m.ticks, m.turns, m.bets, m.payouts, m.jackpots, m.listenerErrors,
		m.storeErrors, m.recoveryErrors, m.published, m.queueLength, m.slotsByState)
	return m
}

func (m *Rumble) Tick() { m.ticks.Inc() }
func (m *Rumble) Turn() { m.turns.Inc() }

func (m *Rumble) Bet(accepted bool, reason string) {
	if accepted {
		m.bets.WithLabelValues("accepted", "").Inc()
		return
	}
	m.bets.WithLabelValues("rejected", reason).Inc()
}

func (m *Rumble) Payout(jackpot bool) {
	m.payouts.Inc()
	if jackpot {
		m.jackpots.Inc()
	}
}

func (m *Rumble) ListenerError(event string) { m.listenerErrors.WithLabelValues(event).Inc() }
func (m *Rumble) StoreError(op string)       { m.storeErrors.WithLabelValues(op).Inc() }
func (m *Rumble) RecoveryErrors(n int)       { m.recoveryErrors.Add(float64(n)) }
func (m *Rumble) Published(eventType string) { m.published.WithLabelValues(eventType).Inc() }

// SlotStates zera os estados ausentes para o gauge não ficar preso.
func (m *Rumble) SlotStates(byState map[string]int, queueLen int) {
	for _, s := range []string{"idle", "betting", "combat", "payout"} {
		m.slotsByState.WithLabelValues(s).Set(float64(byState[s]))
	}
	m.queueLength.Set(float64(queueLen))
}
